package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/tokscrape/models"
)

// Audit folders, relative to every object store's root.
const (
	ResultsFolder     = "results"
	SummariesFolder   = "summaries"
	ScreenshotsFolder = "screenshots"
)

// Auditor fans JSON and screenshot blobs out to every configured object
// store. A failing backend does not stop the others.
type Auditor struct {
	stores []ObjectStore
	now    func() time.Time
}

// NewAuditor returns an Auditor writing to stores. With no stores every
// write is a no-op.
func NewAuditor(stores ...ObjectStore) *Auditor {
	return &Auditor{stores: stores, now: time.Now}
}

// Enabled reports whether at least one backend is configured.
func (a *Auditor) Enabled() bool {
	return a != nil && len(a.stores) > 0
}

// WriteRecord stores rec as results/tiktok-<name>-<id>-<ts>.json.
func (a *Auditor) WriteRecord(ctx context.Context, rec *models.VideoRecord) ([]string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	key := fmt.Sprintf("%s/tiktok-%s-%s-%s.json", ResultsFolder, recordName(rec), rec.ID, a.stamp())
	return a.put(ctx, key, "application/json", data)
}

// WriteSummary stores the full batch outcome as summaries/tiktok-summary-<ts>.json.
func (a *Auditor) WriteSummary(ctx context.Context, results []models.BatchResult) ([]string, error) {
	summary := struct {
		Total     int                  `json:"total"`
		Succeeded int                  `json:"succeeded"`
		Timestamp string               `json:"timestamp"`
		Results   []models.BatchResult `json:"results"`
	}{
		Total:     len(results),
		Timestamp: a.now().UTC().Format(time.RFC3339),
		Results:   results,
	}
	for _, r := range results {
		if r.Success {
			summary.Succeeded++
		}
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	key := fmt.Sprintf("%s/tiktok-summary-%s.json", SummariesFolder, a.stamp())
	return a.put(ctx, key, "application/json", data)
}

// WriteScreenshot stores a PNG as screenshots/tiktok-<name>-<ts>.png.
func (a *Auditor) WriteScreenshot(ctx context.Context, name string, png []byte) ([]string, error) {
	if name == "" {
		name = "page"
	}
	key := fmt.Sprintf("%s/tiktok-%s-%s.png", ScreenshotsFolder, sanitize(name), a.stamp())
	return a.put(ctx, key, "image/png", png)
}

// EnsureFolders creates the audit folders on backends that have a
// directory layout.
func (a *Auditor) EnsureFolders() error {
	var errs []error
	for _, s := range a.stores {
		if l, ok := s.(*LocalObjects); ok {
			errs = append(errs, l.EnsureFolders(ResultsFolder, SummariesFolder, ScreenshotsFolder))
		}
	}
	return errors.Join(errs...)
}

func (a *Auditor) put(ctx context.Context, key, contentType string, data []byte) ([]string, error) {
	if !a.Enabled() {
		return nil, nil
	}
	var (
		locations []string
		errs      []error
	)
	for _, s := range a.stores {
		loc, err := s.Put(ctx, key, contentType, data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		slog.Debug("audit blob written", "backend", s.Name(), "location", loc)
		locations = append(locations, loc)
	}
	return locations, errors.Join(errs...)
}

// stamp is a UTC RFC3339 timestamp with millisecond precision that is
// safe to use in file names.
func (a *Auditor) stamp() string {
	ts := a.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return strings.NewReplacer(":", "-", ".", "-").Replace(ts)
}

func recordName(rec *models.VideoRecord) string {
	if rec.Username != "" {
		return sanitize(rec.Username)
	}
	return "video"
}

// sanitize keeps names usable as a single path segment.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
