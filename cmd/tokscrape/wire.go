package main

import (
	"context"
	"log/slog"

	"github.com/use-agent/tokscrape/config"
	"github.com/use-agent/tokscrape/engine"
	"github.com/use-agent/tokscrape/extractor"
	"github.com/use-agent/tokscrape/models"
	"github.com/use-agent/tokscrape/pipeline"
	"github.com/use-agent/tokscrape/scraper"
	"github.com/use-agent/tokscrape/store"
)

// app holds the components shared by the scrape and serve commands.
type app struct {
	pipeline *pipeline.Pipeline
	browser  *scraper.Scraper // nil in http fetch mode
	sql      *store.SQLStore  // nil when the store driver is "none"
	audit    *store.Auditor
}

// buildApp validates cfg and wires fetcher, extractor, sink and pipeline.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{}
	sql, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.sql = sql

	a.audit = buildAuditor(cfg.Audit)
	if err := a.audit.EnsureFolders(); err != nil {
		slog.Warn("could not create audit folders", "error", err)
	}

	var records store.RecordStore
	if a.sql != nil {
		records = a.sql
	} else {
		slog.Info("store driver is none; records are written to audit storage only")
	}

	fetcher, browser, err := buildFetcher(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.browser = browser

	a.pipeline = pipeline.New(cfg.Pipeline, fetcher, extractor.New(), store.NewSink(records, a.audit), a.audit)
	slog.Info("pipeline ready", "fetcher", fetcher.Name(), "concurrency", cfg.Pipeline.Concurrency)
	return a, nil
}

func (a *app) close() {
	if a.browser != nil {
		a.browser.Close()
	}
	if a.sql != nil {
		if err := a.sql.Close(); err != nil {
			slog.Warn("closing store", "error", err)
		}
	}
}

// openStore connects to the configured table and creates it if needed.
// It returns nil for the "none" driver.
func openStore(ctx context.Context, cfg config.StoreConfig) (*store.SQLStore, error) {
	s, err := store.Open(ctx, cfg)
	if err != nil || s == nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	slog.Info("store ready", "driver", cfg.Driver, "table", cfg.Table)
	return s, nil
}

// requireStore is openStore for commands that make no sense without one.
func requireStore(ctx context.Context, cfg *config.Config) (*store.SQLStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, models.NewScrapeError(models.ErrCodeConfiguration, "this command needs TOKSCRAPE_STORE_DRIVER=postgres or sqlite", nil)
	}
	return s, nil
}

func buildAuditor(cfg config.AuditConfig) *store.Auditor {
	var backends []store.ObjectStore
	if cfg.LocalDir != "" {
		backends = append(backends, store.NewLocalObjects(cfg.LocalDir))
	}
	if cfg.ImageKit.Enabled() {
		backends = append(backends, store.NewImageKitObjects(cfg.ImageKit))
	}
	return store.NewAuditor(backends...)
}

// buildFetcher returns the fetch chain for cfg.Scraper.FetchMode:
// "http" (plain TLS client), "browser" (Chromium) or "auto" (http first,
// browser when the page is not server rendered).
func buildFetcher(cfg *config.Config) (engine.Engine, *scraper.Scraper, error) {
	httpEngine := func() engine.Engine {
		return engine.NewHTTPEngine(cfg.Browser.UserAgent, cfg.Browser.DefaultProxy, cfg.Scraper.HTTPTimeout)
	}

	switch cfg.Scraper.FetchMode {
	case "http":
		return engine.NewDispatcher([]engine.Engine{httpEngine()}, nil), nil, nil
	case "auto":
		sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
		if err != nil {
			return nil, nil, err
		}
		return engine.NewDispatcher([]engine.Engine{httpEngine(), sc}, extractor.LooksRendered), sc, nil
	default:
		sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
		if err != nil {
			return nil, nil, err
		}
		return engine.NewDispatcher([]engine.Engine{sc}, nil), sc, nil
	}
}
