package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/use-agent/tokscrape/models"
)

// AcceptFunc decides whether a fetched page is complete enough to stop
// escalating.
type AcceptFunc func(*models.RawPage) bool

// Dispatcher tries engines in order, cheapest first, and escalates to the
// next one when an engine fails or returns a page that accept rejects. The
// last engine's page is returned even if accept rejects it.
type Dispatcher struct {
	engines []Engine
	accept  AcceptFunc
}

// NewDispatcher creates a Dispatcher. accept may be nil, in which case the
// first successful fetch wins.
func NewDispatcher(engines []Engine, accept AcceptFunc) *Dispatcher {
	return &Dispatcher{engines: engines, accept: accept}
}

// Name reports the engines in escalation order.
func (d *Dispatcher) Name() string {
	name := "dispatch"
	for i, e := range d.engines {
		if i == 0 {
			name += ":"
		} else {
			name += ">"
		}
		name += e.Name()
	}
	return name
}

// Fetch validates url, then runs the escalation chain.
func (d *Dispatcher) Fetch(ctx context.Context, url string) (*models.RawPage, error) {
	if err := models.ValidateVideoURL(url); err != nil {
		return nil, err
	}
	if len(d.engines) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeConfiguration, "no fetch engines configured", nil)
	}

	var lastErr error
	for i, eng := range d.engines {
		last := i == len(d.engines)-1

		slog.Debug("engine starting", "engine", eng.Name(), "url", url)
		page, err := eng.Fetch(ctx, url)
		if err != nil {
			slog.Debug("engine failed", "engine", eng.Name(), "url", url, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if last || d.accept == nil || d.accept(page) {
			page.Engine = eng.Name()
			return page, nil
		}
		slog.Info("engine result incomplete, escalating", "engine", eng.Name(), "url", url)
		lastErr = fmt.Errorf("%s: page not rendered", eng.Name())
	}

	if ctx.Err() != nil {
		return nil, CategorizeError(ctx.Err(), "fetch deadline exceeded")
	}
	return nil, CategorizeError(lastErr, "all fetch engines failed")
}
