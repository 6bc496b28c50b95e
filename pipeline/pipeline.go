// Package pipeline runs URLs through fetch, extract, normalize and
// persist, one isolated attempt per URL.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/use-agent/tokscrape/config"
	"github.com/use-agent/tokscrape/engine"
	"github.com/use-agent/tokscrape/metrics"
	"github.com/use-agent/tokscrape/models"
	"github.com/use-agent/tokscrape/normalize"
	"github.com/use-agent/tokscrape/store"
	"golang.org/x/sync/errgroup"
)

// Fetcher loads a rendered page. engine.Engine implementations satisfy it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.RawPage, error)
}

// Extractor turns a page into raw field values. It must not fail.
type Extractor interface {
	Extract(page *models.RawPage) *models.RawRecord
}

// Sink persists a normalized record and returns its id.
type Sink interface {
	Persist(ctx context.Context, rec *models.VideoRecord) (string, error)
}

// ProgressFunc is called once per URL as soon as its result is known.
// With concurrency above one it is called from several goroutines.
type ProgressFunc func(index int, result models.BatchResult)

type Pipeline struct {
	cfg       config.PipelineConfig
	fetcher   Fetcher
	extractor Extractor
	sink      Sink
	audit     *store.Auditor
}

// New builds a Pipeline. audit may be nil; it receives debug screenshots
// and batch summaries.
func New(cfg config.PipelineConfig, fetcher Fetcher, extractor Extractor, sink Sink, audit *store.Auditor) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		sink:      sink,
		audit:     audit,
	}
}

// Run processes urls and returns one result per URL in input order.
func (p *Pipeline) Run(ctx context.Context, urls []string) []models.BatchResult {
	return p.RunWithProgress(ctx, urls, nil)
}

// RunWithProgress is Run with a per-URL callback.
func (p *Pipeline) RunWithProgress(ctx context.Context, urls []string, progress ProgressFunc) []models.BatchResult {
	results := make([]models.BatchResult, len(urls))

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			r := p.Process(ctx, u)
			results[i] = r
			metrics.RecordResult(r)
			if progress != nil {
				progress(i, r)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("batch finished", "total", len(urls), "succeeded", Succeeded(results))

	if len(urls) > 1 && p.cfg.SaveSummary && p.audit.Enabled() {
		if _, err := p.audit.WriteSummary(context.WithoutCancel(ctx), results); err != nil {
			slog.Warn("summary write failed", "error", err)
		}
	}
	return results
}

// Process runs a single URL under its own deadline. Every failure,
// including a panic in any stage, is returned as an unsuccessful result.
func (p *Pipeline) Process(ctx context.Context, url string) (result models.BatchResult) {
	result.URL = url
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing url", "url", url, "panic", r, "stack", string(debug.Stack()))
			result = failure(url, models.NewScrapeError(models.ErrCodeInternal, fmt.Sprintf("panic: %v", r), nil))
		}
	}()

	if err := ctx.Err(); err != nil {
		return failure(url, engine.CategorizeError(err, "not started"))
	}
	if p.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ItemTimeout)
		defer cancel()
	}

	slog.Info("processing url", "url", url)

	start := time.Now()
	page, err := p.fetcher.Fetch(ctx, url)
	metrics.ObserveStage(metrics.StageFetch, start)
	if err != nil {
		return failure(url, engine.CategorizeError(err, "fetch failed"))
	}

	start = time.Now()
	raw := p.extractor.Extract(page)
	metrics.ObserveStage(metrics.StageExtract, start)

	start = time.Now()
	rec, err := normalize.Record(raw, url)
	metrics.ObserveStage(metrics.StageNormalize, start)
	if err != nil {
		return failure(url, err)
	}

	if len(page.Screenshot) > 0 && p.audit.Enabled() {
		name := rec.ID
		if rec.Username != "" {
			name = rec.Username + "-" + rec.ID
		}
		if _, err := p.audit.WriteScreenshot(ctx, name, page.Screenshot); err != nil {
			slog.Warn("screenshot write failed", "url", url, "error", err)
		}
	}

	start = time.Now()
	_, err = p.sink.Persist(ctx, rec)
	metrics.ObserveStage(metrics.StagePersist, start)
	if err != nil {
		return failure(url, err)
	}

	return models.BatchResult{URL: url, Success: true, Record: rec}
}

// Succeeded counts successful results.
func Succeeded(results []models.BatchResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}

func failure(url string, err error) models.BatchResult {
	detail := models.DetailOf(err)
	slog.Warn("url failed", "url", url, "code", detail.Code, "error", err)
	return models.BatchResult{URL: url, Error: detail}
}
