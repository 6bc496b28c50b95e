package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/tokscrape/api/handler"
	"github.com/use-agent/tokscrape/api/middleware"
	"github.com/use-agent/tokscrape/config"
)

// Deps are the services the routes call into. Store and Browser may be nil.
type Deps struct {
	Jobs    handler.JobService
	Store   handler.Pinger
	Browser handler.StatsProvider
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:    Recovery → Logger
//	Protected: Auth → RateLimit
//
// Status, health and metrics stay outside auth so probes always work.
// ctx bounds the rate limiter's cleanup goroutine.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("", handler.Index())
	api.GET("/status", handler.Status(cfg.Server.Environment))
	api.GET("/health", handler.Health(deps.Store, deps.Browser, startTime))

	if cfg.Auth.APIKey == "" {
		slog.Warn("TOKSCRAPE_API_KEY is not set; scrape and job endpoints are open to anyone")
	}
	protected := api.Group("")
	protected.Use(middleware.Auth(cfg.Auth.APIKey))
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(deps.Jobs))
	protected.POST("/scrape/batch", handler.Batch(deps.Jobs, cfg.Jobs.MaxBatchURLs))
	protected.GET("/jobs/:id", handler.GetJob(deps.Jobs))

	return r
}
