package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tokscrape/models"
)

// Version is reported by /api/health and the version command.
var Version = "0.1.0"

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsProvider reports browser utilisation.
type StatsProvider interface {
	Stats() models.PoolStats
}

// Status returns a handler for GET /api/status.
func Status(environment string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.StatusResponse{
			Status:      "online",
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Environment: environment,
		})
	}
}

// Health returns a handler for GET /api/health. A failing store ping
// reports "degraded" with status 503. store and browser may be nil.
func Health(store Pinger, browser StatsProvider, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.HealthResponse{
			Status:  "healthy",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Store:   "disabled",
			Version: Version,
		}
		if browser != nil {
			resp.PoolStats = browser.Stats()
		}

		code := http.StatusOK
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				resp.Status = "degraded"
				resp.Store = "unreachable"
				code = http.StatusServiceUnavailable
			} else {
				resp.Store = "ok"
			}
		}
		c.JSON(code, resp)
	}
}

// Index returns a handler for GET /api listing the available endpoints.
func Index() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "tokscrape",
			"version": Version,
			"endpoints": []gin.H{
				{"method": "GET", "path": "/api/status", "description": "Service status"},
				{"method": "GET", "path": "/api/health", "description": "Store and browser health"},
				{"method": "POST", "path": "/api/scrape", "description": "Scrape one TikTok video URL"},
				{"method": "POST", "path": "/api/scrape/batch", "description": "Scrape a list of TikTok video URLs"},
				{"method": "GET", "path": "/api/jobs/:id", "description": "Job status and results"},
				{"method": "GET", "path": "/metrics", "description": "Prometheus metrics"},
			},
		})
	}
}
