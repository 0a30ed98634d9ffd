package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store backends.
const (
	StoreSupabase = "supabase"
	StoreAirtable = "airtable"
)

// Lock backends.
const (
	LockRedis = "redis"
	LockLocal = "local"
)

// Audit sinks.
const (
	AuditSinkPostgres = "postgres"
	AuditSinkKafka    = "kafka"
	AuditSinkLog      = "log"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store          StoreConfig
	Database       DatabaseConfig
	Airtable       AirtableConfig
	Redis          RedisConfig
	Lock           LockConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Log            LogConfig
	Calendar       CalendarConfig
	Audit          AuditConfig
	RateLimit      RateLimitConfig
	MigrateOnStart bool
}

// StoreConfig selects the IntervalStore backend.
type StoreConfig struct {
	Backend string
	Timeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// AirtableConfig points at the base holding the bookings and blocked slot tables.
type AirtableConfig struct {
	BaseURL           string
	BaseID            string
	APIKey            string
	BookingsTable     string
	BlockedSlotsTable string
	Timeout           time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LockConfig tunes per-resource mutual exclusion for stores without transactions.
type LockConfig struct {
	Backend       string
	TTL           time.Duration
	RetryInterval time.Duration
	WaitTimeout   time.Duration
	Prefix        string
}

// JWTConfig validates Supabase-issued staff tokens.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	StaffRoles []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig carries calendar defaults used when requests omit them.
type CalendarConfig struct {
	DefaultResource string
	Timezone        string
	SlotDuration    time.Duration
	ExportMaxWindow time.Duration
}

// AuditConfig wires the activity trail sinks.
type AuditConfig struct {
	Sinks        []string
	KafkaBrokers []string
	KafkaTopic   string
	Workers      int
	Retries      int
	RetryDelay   time.Duration
}

// RateLimitConfig throttles the public booking endpoint per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// HasAuditSink reports whether the named sink is enabled.
func (c AuditConfig) HasAuditSink(name string) bool {
	for _, sink := range c.Sinks {
		if strings.EqualFold(sink, name) {
			return true
		}
	}
	return false
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Store = StoreConfig{
		Backend: strings.ToLower(v.GetString("STORE_BACKEND")),
		Timeout: parseDuration(v.GetString("STORE_TIMEOUT"), 5*time.Second),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Airtable = AirtableConfig{
		BaseURL:           strings.TrimRight(v.GetString("AIRTABLE_BASE_URL"), "/"),
		BaseID:            v.GetString("AIRTABLE_BASE_ID"),
		APIKey:            v.GetString("AIRTABLE_API_KEY"),
		BookingsTable:     v.GetString("AIRTABLE_BOOKINGS_TABLE"),
		BlockedSlotsTable: v.GetString("AIRTABLE_BLOCKED_SLOTS_TABLE"),
		Timeout:           parseDuration(v.GetString("AIRTABLE_TIMEOUT"), 10*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Lock = LockConfig{
		Backend:       strings.ToLower(v.GetString("LOCK_BACKEND")),
		TTL:           parseDuration(v.GetString("LOCK_TTL"), 30*time.Second),
		RetryInterval: parseDuration(v.GetString("LOCK_RETRY_INTERVAL"), 50*time.Millisecond),
		WaitTimeout:   parseDuration(v.GetString("LOCK_WAIT_TIMEOUT"), 5*time.Second),
		Prefix:        v.GetString("LOCK_PREFIX"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Audience:   v.GetString("JWT_AUDIENCE"),
		StaffRoles: splitAndTrim(v.GetString("JWT_STAFF_ROLES")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Calendar = CalendarConfig{
		DefaultResource: v.GetString("CALENDAR_DEFAULT_RESOURCE"),
		Timezone:        v.GetString("CALENDAR_TIMEZONE"),
		SlotDuration:    parseDuration(v.GetString("CALENDAR_SLOT_DURATION"), 30*time.Minute),
		ExportMaxWindow: parseDuration(v.GetString("CALENDAR_EXPORT_MAX_WINDOW"), 93*24*time.Hour),
	}

	cfg.Audit = AuditConfig{
		Sinks:        splitAndTrim(v.GetString("AUDIT_SINKS")),
		KafkaBrokers: splitAndTrim(v.GetString("AUDIT_KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("AUDIT_KAFKA_TOPIC"),
		Workers:      v.GetInt("AUDIT_WORKERS"),
		Retries:      v.GetInt("AUDIT_RETRIES"),
		RetryDelay:   parseDuration(v.GetString("AUDIT_RETRY_DELAY"), time.Second),
	}

	cfg.RateLimit = RateLimitConfig{
		RequestsPerSecond: v.GetFloat64("RATE_LIMIT_RPS"),
		Burst:             v.GetInt("RATE_LIMIT_BURST"),
	}

	cfg.MigrateOnStart = v.GetBool("MIGRATE_ON_START")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreSupabase:
	case StoreAirtable:
		if c.Airtable.BaseID == "" || c.Airtable.APIKey == "" {
			return errors.New("airtable store requires AIRTABLE_BASE_ID and AIRTABLE_API_KEY")
		}
	default:
		return errors.New("STORE_BACKEND must be supabase or airtable")
	}
	switch c.Lock.Backend {
	case LockRedis, LockLocal:
	default:
		return errors.New("LOCK_BACKEND must be redis or local")
	}
	// A Redis lease that expires mid-scope lets a second writer through check-then-insert.
	// The scope ends at STORE_TIMEOUT and its compensation is bounded by AIRTABLE_TIMEOUT.
	if c.Store.Backend == StoreAirtable && c.Lock.Backend == LockRedis && c.Lock.TTL <= c.Store.Timeout+c.Airtable.Timeout {
		return errors.New("LOCK_TTL must exceed STORE_TIMEOUT plus AIRTABLE_TIMEOUT")
	}
	if c.Calendar.SlotDuration <= 0 {
		return errors.New("CALENDAR_SLOT_DURATION must be positive")
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		return errors.New("CALENDAR_TIMEZONE is not a valid IANA zone")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_BACKEND", StoreSupabase)
	v.SetDefault("STORE_TIMEOUT", "5s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "voyage_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("AIRTABLE_BASE_URL", "https://api.airtable.com/v0")
	v.SetDefault("AIRTABLE_BASE_ID", "")
	v.SetDefault("AIRTABLE_API_KEY", "")
	v.SetDefault("AIRTABLE_BOOKINGS_TABLE", "Bookings")
	v.SetDefault("AIRTABLE_BLOCKED_SLOTS_TABLE", "Blocked Slots")
	v.SetDefault("AIRTABLE_TIMEOUT", "10s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOCK_BACKEND", LockLocal)
	v.SetDefault("LOCK_TTL", "30s")
	v.SetDefault("LOCK_RETRY_INTERVAL", "50ms")
	v.SetDefault("LOCK_WAIT_TIMEOUT", "5s")
	v.SetDefault("LOCK_PREFIX", "voyage:lock:")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "authenticated")
	v.SetDefault("JWT_STAFF_ROLES", "admin,staff")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_DEFAULT_RESOURCE", "agency")
	v.SetDefault("CALENDAR_TIMEZONE", "UTC")
	v.SetDefault("CALENDAR_SLOT_DURATION", "30m")
	v.SetDefault("CALENDAR_EXPORT_MAX_WINDOW", "2232h")

	v.SetDefault("AUDIT_SINKS", AuditSinkLog)
	v.SetDefault("AUDIT_KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "booking-activity")
	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_RETRIES", 3)
	v.SetDefault("AUDIT_RETRY_DELAY", "1s")

	v.SetDefault("RATE_LIMIT_RPS", 2)
	v.SetDefault("RATE_LIMIT_BURST", 10)

	v.SetDefault("MIGRATE_ON_START", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
