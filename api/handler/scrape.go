package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tokscrape/models"
)

// JobService submits and looks up background scrape jobs.
// *jobs.Manager implements it.
type JobService interface {
	Submit(ctx context.Context, kind string, urls []string, webhookURL string) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
}

// Scrape returns a handler for POST /api/scrape. The URL is validated
// up front; scraping runs in the background and the response carries the
// job id to poll.
func Scrape(jobs JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "url is required", err))
			return
		}
		url := strings.TrimSpace(req.URL)
		if err := models.ValidateVideoURL(url); err != nil {
			respondError(c, err)
			return
		}

		job, err := jobs.Submit(c.Request.Context(), models.JobKindSingle, []string{url}, req.WebhookURL)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.ScrapeAccepted{
			Success:   true,
			Message:   "Processing started",
			URL:       url,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			JobID:     job.ID,
		})
	}
}

// Batch returns a handler for POST /api/scrape/batch. Non-TikTok URLs are
// dropped and reported in "skipped"; the request fails only when nothing
// valid remains.
func Batch(jobs JobService, maxURLs int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "urls must be a non-empty array", err))
			return
		}
		if maxURLs > 0 && len(req.URLs) > maxURLs {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("maximum %d URLs per batch", maxURLs), nil))
			return
		}

		var valid, skipped []string
		for _, u := range req.URLs {
			u = strings.TrimSpace(u)
			if err := models.ValidateVideoURL(u); err != nil {
				skipped = append(skipped, u)
				continue
			}
			valid = append(valid, u)
		}
		if len(skipped) > 0 {
			slog.Warn("batch contains invalid urls", "skipped", len(skipped))
		}
		if len(valid) == 0 {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "no valid TikTok URLs provided", nil))
			return
		}

		job, err := jobs.Submit(c.Request.Context(), models.JobKindBatch, valid, req.WebhookURL)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.BatchAccepted{
			Success:   true,
			Message:   fmt.Sprintf("Processing %d URLs", len(valid)),
			Count:     len(valid),
			Skipped:   skipped,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			JobID:     job.ID,
		})
	}
}

// GetJob returns a handler for GET /api/jobs/:id.
func GetJob(jobs JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := jobs.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}
