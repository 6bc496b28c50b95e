package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
)

// step kinds run after navigation to let TikTok's client render.
const (
	stepWaitSelector = "wait_selector"
	stepSleep        = "sleep"
	stepScroll       = "scroll"
	stepDOMStable    = "dom_stable"
)

type step struct {
	kind     string
	selector string
	distance int
	timeout  time.Duration
}

// settleSteps builds the post-navigation sequence: poll for the readiness
// selector (or sleep when none is configured), scroll to trigger lazy
// content, then wait for the DOM to stop changing. Each wait is capped by
// the configured delay.
func (s *Scraper) settleSteps() []step {
	cfg := s.scraperCfg
	steps := make([]step, 0, 3)

	if cfg.ReadySelector != "" {
		steps = append(steps, step{kind: stepWaitSelector, selector: cfg.ReadySelector, timeout: cfg.SettleDelay})
	} else {
		steps = append(steps, step{kind: stepSleep, timeout: cfg.SettleDelay})
	}
	if cfg.ScrollDistance > 0 {
		steps = append(steps, step{kind: stepScroll, distance: cfg.ScrollDistance, timeout: cfg.ScrollSettle})
	}
	steps = append(steps, step{kind: stepDOMStable, timeout: cfg.ScrollSettle})
	return steps
}

// settle runs the steps in order. A step that misses its deadline is
// logged and skipped; the snapshot is taken with whatever has rendered.
func settle(ctx context.Context, page *rod.Page, steps []step) {
	for _, st := range steps {
		if ctx.Err() != nil {
			return
		}
		if err := runStep(ctx, page, st); err != nil {
			slog.Debug("settle step did not complete", "step", st.kind, "error", err)
		}
	}
}

// runStep dispatches a single step with its own timeout.
func runStep(ctx context.Context, page *rod.Page, st step) error {
	if st.timeout <= 0 {
		return nil
	}
	stepCtx, cancel := context.WithTimeout(ctx, st.timeout)
	defer cancel()

	p := page.Context(stepCtx)

	switch st.kind {
	case stepWaitSelector:
		return p.WaitElementsMoreThan(st.selector, 0)
	case stepSleep:
		<-stepCtx.Done()
		return nil
	case stepScroll:
		if err := p.Mouse.Scroll(0, float64(st.distance), 0); err != nil {
			_, err = p.Eval(`(d) => window.scrollBy(0, d)`, st.distance)
			return err
		}
		return nil
	case stepDOMStable:
		return p.WaitDOMStable(300*time.Millisecond, 0.1)
	default:
		return fmt.Errorf("unknown settle step: %s", st.kind)
	}
}
