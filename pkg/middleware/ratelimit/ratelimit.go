package ratelimit

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
	"github.com/noah-isme/voyage-admin-api/pkg/response"
)

const defaultIdleTTL = 10 * time.Minute

// Observer is notified whenever a request is throttled.
type Observer interface {
	ObserveRateLimited()
}

// Config tunes the per-client token bucket.
type Config struct {
	RequestsPerSecond float64
	Burst             int
	IdleTTL           time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client IP.
type Limiter struct {
	cfg      Config
	observer Observer
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
	sweptAt  time.Time
}

// New constructs a limiter. A non-positive rate disables throttling.
func New(cfg Config, observer Observer, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	return &Limiter{
		cfg:      cfg,
		observer: observer,
		logger:   logger,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether the client identified by key may proceed.
func (l *Limiter) Allow(key string) bool {
	if l == nil || l.cfg.RequestsPerSecond <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.sweptAt) > l.cfg.IdleTTL {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.cfg.IdleTTL {
				delete(l.visitors, k)
			}
		}
		l.sweptAt = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware throttles requests per client IP and answers 429 with a Retry-After hint.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if l.Allow(ip) {
			c.Next()
			return
		}
		l.logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.FullPath()))
		if l.observer != nil {
			l.observer.ObserveRateLimited()
		}
		c.Header("Retry-After", strconv.Itoa(l.retryAfter()))
		response.Error(c, appErrors.ErrTooManyRequests)
		c.Abort()
	}
}

func (l *Limiter) retryAfter() int {
	if l.cfg.RequestsPerSecond >= 1 {
		return 1
	}
	return int(1/l.cfg.RequestsPerSecond + 0.5)
}
