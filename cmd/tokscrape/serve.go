package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/tokscrape/api"
	"github.com/use-agent/tokscrape/config"
	"github.com/use-agent/tokscrape/jobs"
	"github.com/use-agent/tokscrape/webhook"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("tokscrape starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"fetch_mode", cfg.Scraper.FetchMode,
		"store", cfg.Store.Driver,
	)

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	jobStore, err := openJobStore(ctx, cfg.Jobs)
	if err != nil {
		return err
	}
	defer jobStore.Close()

	manager := jobs.NewManager(jobStore, a.pipeline, webhook.NewNotifier(cfg.Webhook.Secret))

	deps := api.Deps{Jobs: manager}
	if a.sql != nil {
		deps.Store = a.sql
	}
	if a.browser != nil {
		deps.Browser = a.browser
	}
	router := api.NewRouter(ctx, cfg, deps, time.Now())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give in-flight requests 5 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Running jobs get longer; whatever is still going after that is
	// cancelled and recorded as failed.
	jobsCtx, cancelJobs := context.WithTimeout(context.Background(), cfg.Pipeline.ItemTimeout)
	defer cancelJobs()
	if err := manager.Shutdown(jobsCtx); err != nil {
		slog.Warn("jobs cancelled at shutdown", "error", err)
	}

	slog.Info("tokscrape stopped")
	return nil
}

func openJobStore(ctx context.Context, cfg config.JobsConfig) (jobs.Store, error) {
	if cfg.Backend == "redis" {
		return jobs.NewRedisStore(ctx, cfg)
	}
	return jobs.NewMemoryStore(cfg.MaxEntries, cfg.TTL, 5*time.Minute), nil
}
