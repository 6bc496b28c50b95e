package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/tokscrape/config"
	"github.com/use-agent/tokscrape/models"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func sqliteEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TOKSCRAPE_STORE_DRIVER", "sqlite")
	t.Setenv("TOKSCRAPE_DATABASE_URL", filepath.Join(dir, "videos.db"))
	t.Setenv("TOKSCRAPE_OUTPUT_DIR", filepath.Join(dir, "output"))
	t.Setenv("TOKSCRAPE_LOG_LEVEL", "error")
	return dir
}

func TestReadURLLines(t *testing.T) {
	in := "https://www.tiktok.com/@a/video/1\n\n  # comment\n  https://www.tiktok.com/@b/video/2  \n"

	lines, err := readURLLines(strings.NewReader(in))

	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.tiktok.com/@a/video/1", "https://www.tiktok.com/@b/video/2"}, lines)
}

func TestCollectURLs(t *testing.T) {
	file := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(file, []byte("https://www.tiktok.com/@b/video/2\nhttps://example.com/x\n"), 0o644))

	urls, err := collectURLs([]string{"https://www.tiktok.com/@a/video/1", "not a url"}, file)

	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.tiktok.com/@a/video/1", "https://www.tiktok.com/@b/video/2"}, urls)
}

func TestCollectURLsFailures(t *testing.T) {
	_, err := collectURLs(nil, "")
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))

	_, err = collectURLs([]string{"https://example.com/a"}, "")
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))

	_, err = collectURLs(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}

func TestScrapeWithoutValidURLsFails(t *testing.T) {
	sqliteEnv(t)

	_, err := runCmd(t, "scrape", "https://example.com/not-tiktok")
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}

func TestScrapeRejectsBadConfig(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("TOKSCRAPE_FETCH_MODE", "carrier-pigeon")

	_, err := runCmd(t, "scrape", "https://www.tiktok.com/@a/video/1")
	assert.Equal(t, models.ErrCodeConfiguration, models.CodeOf(err))
}

func TestSetupCheckImport(t *testing.T) {
	dir := sqliteEnv(t)
	output := filepath.Join(dir, "output")

	out, err := runCmd(t, "setup")
	require.NoError(t, err)
	assert.Contains(t, out, "table tiktok_videos ready (sqlite)")
	for _, f := range []string{"results", "summaries", "screenshots"} {
		assert.DirExists(t, filepath.Join(output, f))
	}

	require.NoError(t, os.WriteFile(filepath.Join(output, "results", "tiktok-alice-1.json"),
		[]byte(`{"url":"https://www.tiktok.com/@alice/video/1","likes":"9"}`), 0o644))

	out, err = runCmd(t, "import")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 of 1 files")

	out, err = runCmd(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "connected to sqlite: 1 records in tiktok_videos")
}

func TestMigrateNeedsStore(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("TOKSCRAPE_STORE_DRIVER", "none")

	_, err := runCmd(t, "migrate")
	assert.Equal(t, models.ErrCodeConfiguration, models.CodeOf(err))
}

func TestVersion(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tokscrape version")
}

func TestBuildFetcherHTTPModeHasNoBrowser(t *testing.T) {
	cfg := config.Load()
	cfg.Scraper.FetchMode = "http"

	f, browser, err := buildFetcher(cfg)

	require.NoError(t, err)
	assert.Nil(t, browser)
	assert.Equal(t, "dispatch:http", f.Name())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("whatever"))
}
