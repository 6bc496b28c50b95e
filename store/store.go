// Package store persists VideoRecords: an upsert into a relational table
// plus optional JSON audit blobs in local or object storage.
package store

import (
	"context"

	"github.com/use-agent/tokscrape/models"
)

// RecordStore is the relational side of persistence.
type RecordStore interface {
	// Upsert inserts rec or overwrites the existing row with the same id.
	Upsert(ctx context.Context, rec *models.VideoRecord) error

	// Get loads a record by id.
	Get(ctx context.Context, id string) (*models.VideoRecord, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	Close() error
}

// ObjectStore writes opaque blobs under slash-separated keys such as
// "results/tiktok-alice-123-2026-01-01T00-00-00-000Z.json".
type ObjectStore interface {
	// Name identifies the backend in logs ("local", "imagekit").
	Name() string

	// Put stores data under key and returns its location (path or URL).
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
