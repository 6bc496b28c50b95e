// Package metrics holds the Prometheus collectors for scrape outcomes,
// stage latency and submitted jobs.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/use-agent/tokscrape/models"
)

// Pipeline stages.
const (
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StagePersist   = "persist"
)

var (
	scrapeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokscrape_scrape_results_total",
		Help: "Scraped URLs by outcome and error code",
	}, []string{"outcome", "code"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tokscrape_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage",
		Buckets: []float64{0.01, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokscrape_jobs_total",
		Help: "Jobs submitted through the API by kind",
	}, []string{"kind"})
)

// RecordResult counts one BatchResult.
func RecordResult(r models.BatchResult) {
	if r.Success {
		scrapeResults.WithLabelValues("success", "").Inc()
		return
	}
	code := models.ErrCodeInternal
	if r.Error != nil {
		code = normalizeCodeLabel(r.Error.Code)
	}
	scrapeResults.WithLabelValues("failure", code).Inc()
}

// ObserveStage records the time since start for stage.
func ObserveStage(stage string, start time.Time) {
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordJob counts a submitted job.
func RecordJob(kind string) {
	switch kind {
	case models.JobKindSingle, models.JobKindBatch:
	default:
		kind = "unknown"
	}
	jobsTotal.WithLabelValues(kind).Inc()
}

func normalizeCodeLabel(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case models.ErrCodeConfiguration, models.ErrCodeInvalidURL, models.ErrCodeNavigationTimeout,
		models.ErrCodeFetchFailed, models.ErrCodeBrowserCrash, models.ErrCodeMissingID,
		models.ErrCodePersistence, models.ErrCodeInvalidInput, models.ErrCodeInternal:
		return strings.ToUpper(strings.TrimSpace(code))
	default:
		return "unknown"
	}
}
