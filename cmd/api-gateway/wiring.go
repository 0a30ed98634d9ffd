package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/voyage-admin-api/internal/repository"
	"github.com/noah-isme/voyage-admin-api/internal/service"
	"github.com/noah-isme/voyage-admin-api/migrations"
	"github.com/noah-isme/voyage-admin-api/pkg/airtable"
	"github.com/noah-isme/voyage-admin-api/pkg/cache"
	"github.com/noah-isme/voyage-admin-api/pkg/config"
	"github.com/noah-isme/voyage-admin-api/pkg/database"
	"github.com/noah-isme/voyage-admin-api/pkg/export"
	"github.com/noah-isme/voyage-admin-api/pkg/jobs"
	"github.com/noah-isme/voyage-admin-api/pkg/lock"
)

type app struct {
	store     repository.IntervalStore
	metrics   *service.MetricsService
	auth      *service.AuthService
	admission *service.AdmissionService
	audit     *service.AuditService
	exports   *service.ExportService

	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app, error) {
	a := &app{metrics: service.NewMetricsService()}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	location, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load calendar timezone: %w", err)
	}

	var db *sqlx.DB
	if cfg.Store.Backend == config.StoreSupabase || cfg.Audit.HasAuditSink(config.AuditSinkPostgres) {
		if db, err = database.NewPostgres(cfg.Database); err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if cfg.MigrateOnStart {
			if err := migrations.Apply(ctx, db); err != nil {
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logr.Info("migrations applied")
		}
	}

	store, err := buildStore(ctx, cfg, db, a, logr)
	if err != nil {
		return nil, err
	}
	a.store = repository.NewInstrumentedStore(store, a.metrics)

	if a.audit, err = buildAudit(cfg, db, a, logr); err != nil {
		return nil, err
	}

	a.auth = service.NewAuthService(logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		StaffRoles: cfg.JWT.StaffRoles,
	})
	a.admission = service.NewAdmissionService(a.store, a.audit, a.metrics, validator.New(), logr, service.AdmissionConfig{
		DefaultResource: cfg.Calendar.DefaultResource,
		Location:        location,
		SlotDuration:    cfg.Calendar.SlotDuration,
	})
	a.exports = service.NewExportService(a.admission, service.ExportConfig{
		MaxWindow: cfg.Calendar.ExportMaxWindow,
		Location:  location,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	ok = true
	return a, nil
}

func buildStore(ctx context.Context, cfg *config.Config, db *sqlx.DB, a *app, logr *zap.Logger) (repository.IntervalStore, error) {
	if cfg.Store.Backend == config.StoreSupabase {
		return repository.NewPostgresStore(db), nil
	}

	client, err := airtable.NewClient(airtable.Config{
		BaseURL: cfg.Airtable.BaseURL,
		BaseID:  cfg.Airtable.BaseID,
		APIKey:  cfg.Airtable.APIKey,
		Timeout: cfg.Airtable.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("airtable client: %w", err)
	}

	var locker lock.Locker
	switch cfg.Lock.Backend {
	case config.LockRedis:
		rdb, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		locker = lock.NewRedisLocker(rdb, lock.RedisConfig{
			Prefix:        cfg.Lock.Prefix,
			TTL:           cfg.Lock.TTL,
			RetryInterval: cfg.Lock.RetryInterval,
			WaitTimeout:   cfg.Lock.WaitTimeout,
		})
	default:
		logr.Warn("using in-process calendar locks; run a single instance or set LOCK_BACKEND=redis")
		locker = lock.NewLocalLocker(cfg.Lock.WaitTimeout)
	}

	return repository.NewAirtableStore(client, repository.AirtableTables{
		Bookings:     cfg.Airtable.BookingsTable,
		BlockedSlots: cfg.Airtable.BlockedSlotsTable,
	}, locker, logr).WithUndoTimeout(cfg.Airtable.Timeout), nil
}

func buildAudit(cfg *config.Config, db *sqlx.DB, a *app, logr *zap.Logger) (*service.AuditService, error) {
	sinks := map[string]service.AuditSink{}
	var reader *repository.AuditRepository

	if cfg.Audit.HasAuditSink(config.AuditSinkPostgres) {
		reader = repository.NewAuditRepository(db)
		sinks[config.AuditSinkPostgres] = reader
	}
	if cfg.Audit.HasAuditSink(config.AuditSinkKafka) {
		stream, err := repository.NewAuditStreamRepository(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic, logr)
		if err != nil {
			return nil, fmt.Errorf("audit stream: %w", err)
		}
		a.closers = append(a.closers, stream.Close)
		sinks[config.AuditSinkKafka] = stream
	}
	if cfg.Audit.HasAuditSink(config.AuditSinkLog) {
		sinks[config.AuditSinkLog] = service.NewLogAuditSink(logr)
	}

	queueCfg := jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		MaxRetries: cfg.Audit.Retries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	}
	if reader == nil {
		return service.NewAuditService(sinks, nil, a.metrics, queueCfg, logr), nil
	}
	return service.NewAuditService(sinks, reader, a.metrics, queueCfg, logr), nil
}
