package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/voyage-admin-api/internal/handler"
	"github.com/noah-isme/voyage-admin-api/internal/middleware"
	"github.com/noah-isme/voyage-admin-api/pkg/config"
	"github.com/noah-isme/voyage-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/voyage-admin-api/pkg/middleware/cors"
	"github.com/noah-isme/voyage-admin-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/voyage-admin-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, a *app, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.AuditContext())

	ops := handler.NewMetricsHandler(a.metrics, a.store, logr)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	bookings := handler.NewBookingHandler(a.admission, a.exports)
	blocks := handler.NewBlockedSlotHandler(a.admission)
	activity := handler.NewActivityHandler(a.audit)
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}, a.metrics, logr)

	api := r.Group(cfg.APIPrefix)
	api.Use(requestTimeout(cfg.Store.Timeout))

	public := api.Group("")
	public.Use(middleware.OptionalJWT(a.auth))
	public.GET("/bookings", bookings.List)
	public.GET("/bookings/conflicts", bookings.Conflicts)
	public.POST("/bookings", limiter.Middleware(), bookings.Create)

	staff := api.Group("")
	staff.Use(middleware.JWT(a.auth), middleware.RequireStaff(a.auth))
	staff.GET("/bookings/export", bookings.Export)
	staff.GET("/bookings/:id", bookings.Get)
	staff.PUT("/bookings/:id", bookings.Update)
	staff.DELETE("/bookings/:id", bookings.Delete)
	staff.GET("/blocked-slots", blocks.List)
	staff.POST("/blocked-slots", blocks.Create)
	staff.PATCH("/blocked-slots/:id", blocks.Toggle)
	staff.DELETE("/blocked-slots/:id", blocks.Delete)
	staff.GET("/activity", activity.List)

	return r
}

// requestTimeout bounds every store round trip made on behalf of a request.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
