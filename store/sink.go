package store

import (
	"context"
	"log/slog"

	"github.com/use-agent/tokscrape/models"
)

// Sink persists one record: audit blobs first (best effort), then the
// upsert. records may be nil for audit-only operation.
type Sink struct {
	records RecordStore
	audit   *Auditor
}

func NewSink(records RecordStore, audit *Auditor) *Sink {
	return &Sink{records: records, audit: audit}
}

// Audit returns the sink's auditor, which may have no backends.
func (s *Sink) Audit() *Auditor { return s.audit }

// Persist writes rec and returns its id.
func (s *Sink) Persist(ctx context.Context, rec *models.VideoRecord) (string, error) {
	if rec == nil || rec.ID == "" {
		return "", models.NewScrapeError(models.ErrCodeMissingID, "record has no id", nil)
	}

	if s.audit.Enabled() {
		if _, err := s.audit.WriteRecord(ctx, rec); err != nil {
			slog.Warn("audit write failed", "id", rec.ID, "error", err)
		}
	}

	if s.records == nil {
		return rec.ID, nil
	}
	if err := s.records.Upsert(ctx, rec); err != nil {
		if models.CodeOf(err) == models.ErrCodePersistence {
			return "", err
		}
		return "", models.NewScrapeError(models.ErrCodePersistence, "upsert record "+rec.ID, err)
	}
	slog.Info("record stored", "id", rec.ID, "url", rec.URL)
	return rec.ID, nil
}
