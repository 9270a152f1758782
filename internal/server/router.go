package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/haoyun/filedrop/internal/activity"
	"github.com/haoyun/filedrop/internal/auth"
	"github.com/haoyun/filedrop/internal/config"
	"github.com/haoyun/filedrop/internal/metrics"
	"github.com/haoyun/filedrop/internal/transfer"
)

// Dependencies groups the services required by the HTTP router.
type Dependencies struct {
	Config          config.Config
	Logger          *log.Logger
	AuthService     *auth.Service
	TransferService *transfer.Service
	ActivityLog     *activity.Log

	// Readiness probes the storage backend; nil means always ready.
	Readiness func(ctx context.Context) error
}

// NewRouter builds a Gin engine with foundational middleware and routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(deps.Logger))

	registerHealthRoutes(router, deps)
	metrics.Register(router, deps.Config.Metrics.PrometheusPath)

	public := router.Group("/")
	if deps.AuthService != nil {
		auth.RegisterRoutes(public, deps.AuthService)

		protected := router.Group("/")
		protected.Use(auth.Middleware(deps.AuthService))

		if deps.TransferService != nil {
			transfer.RegisterRoutes(protected, deps.TransferService)
		}
		if deps.ActivityLog != nil {
			activity.RegisterRoutes(protected, deps.ActivityLog)
		}
	}

	return router
}

// requestLogger tags every request with an ID and writes one access record.
func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set("request_id", requestID)
		start := time.Now()

		c.Next()

		logger.Info("request",
			"id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
