package engine

import (
	"context"
	"errors"

	"github.com/use-agent/tokscrape/models"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "rod").
	Name() string

	// Fetch loads the page and returns its rendered snapshot.
	Fetch(ctx context.Context, url string) (*models.RawPage, error)
}

// CategorizeError wraps raw fetch errors into typed ScrapeErrors so callers
// can tell timeouts apart from other failures. Errors that already carry a
// code pass through unchanged.
func CategorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeNavigationTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeFetchFailed, msg+": cancelled", err)
	default:
		return models.NewScrapeError(models.ErrCodeFetchFailed, msg, err)
	}
}
