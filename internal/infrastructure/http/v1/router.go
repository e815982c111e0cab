// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"seqgen/internal/domain/sequence"
	"seqgen/internal/infrastructure/http/v1/handlers"
	"seqgen/internal/infrastructure/http/v1/middleware"
	"seqgen/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Service is the generation engine.
	Service *sequence.Service

	// ConfigRepo stores sequence configurations.
	ConfigRepo sequence.ConfigRepository

	// ConfigReader serves configs on the generation path; pass the TTL cache
	// here, or nil to read straight from ConfigRepo.
	ConfigReader handlers.ConfigReader

	// Invalidator drops cached configs after administrative writes; may be nil.
	Invalidator handlers.Invalidator

	// StorePinger backs the readiness probe; may be nil.
	StorePinger handlers.Pinger

	// Logger for request logging.
	Logger *logger.Logger

	// MetricsEnabled exposes /metrics with the default Prometheus registry.
	MetricsEnabled bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no scope required)
	healthHandler := handlers.NewHealthHandler(cfg.StorePinger)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// API v1: every sequence operation is scope-partitioned.
	base := handlers.NewBaseHandler()
	seqHandler := handlers.NewSequenceHandler(base, cfg.Service, cfg.ConfigRepo, cfg.ConfigReader, cfg.Invalidator)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Scope())
	{
		sequences := v1.Group("/sequences")
		{
			sequences.POST("", seqHandler.Provision)
			sequences.GET("", seqHandler.List)
			sequences.GET("/:name", seqHandler.Get)
			sequences.PUT("/:name", seqHandler.Update)
			sequences.POST("/:name/generate", seqHandler.Generate)
			sequences.POST("/:name/preview", seqHandler.Preview)
			sequences.GET("/:name/counter", seqHandler.GetCounter)
			sequences.PUT("/:name/counter", seqHandler.SetCounter)
			sequences.PUT("/:name/enabled", seqHandler.SetEnabled)
		}
	}

	return router
}
