package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/use-agent/tokscrape/models"
	"github.com/use-agent/tokscrape/normalize"
)

// ImportResult counts what ImportDir did.
type ImportResult struct {
	Files    int
	Imported int
	Failed   int
}

// ImportDir upserts every *.json record in dir, in file name order.
// Files that fail to decode or store are logged and counted; the rest of
// the directory is still processed.
func ImportDir(ctx context.Context, records RecordStore, dir string) (ImportResult, error) {
	var res ImportResult
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return res, fmt.Errorf("list %s: %w", dir, err)
	}
	if _, err := os.Stat(dir); err != nil {
		return res, models.NewScrapeError(models.ErrCodeInvalidInput, "cannot read directory "+dir, err)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Files++
		if err := importFile(ctx, records, p); err != nil {
			res.Failed++
			slog.Warn("import failed", "file", p, "error", err)
			continue
		}
		res.Imported++
	}
	return res, nil
}

func importFile(ctx context.Context, records RecordStore, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var rec models.VideoRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := normalize.Fill(&rec); err != nil {
		return err
	}
	return records.Upsert(ctx, &rec)
}
