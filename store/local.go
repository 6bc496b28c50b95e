package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// LocalObjects writes blobs as files under a root directory. Every write
// is atomic: readers see either the old file or the complete new one.
type LocalObjects struct {
	root string
}

// NewLocalObjects returns a LocalObjects rooted at dir.
func NewLocalObjects(dir string) *LocalObjects {
	return &LocalObjects{root: dir}
}

func (l *LocalObjects) Name() string { return "local" }

// Root returns the directory blobs are written under.
func (l *LocalObjects) Root() string { return l.root }

func (l *LocalObjects) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", key, err)
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return "", fmt.Errorf("create pending file %s: %w", key, err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("atomically replace %s: %w", key, err)
	}
	return path, nil
}

// EnsureFolders creates the given subdirectories under the root.
func (l *LocalObjects) EnsureFolders(folders ...string) error {
	for _, f := range folders {
		path, err := l.path(f)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}
	return nil
}

// path maps a slash key into the root, refusing keys that escape it.
func (l *LocalObjects) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes output directory: %s", key)
	}
	return filepath.Join(l.root, clean), nil
}
