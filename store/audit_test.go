package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/tokscrape/models"
)

type memObjects struct {
	mu   sync.Mutex
	name string
	blob map[string][]byte
	err  error
}

func newMemObjects(name string) *memObjects {
	return &memObjects{name: name, blob: map[string][]byte{}}
}

func (m *memObjects) Name() string { return m.name }

func (m *memObjects) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob[key] = data
	return m.name + ":" + key, nil
}

func (m *memObjects) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.blob {
		out = append(out, k)
	}
	return out
}

func fixedAuditor(stores ...ObjectStore) *Auditor {
	a := NewAuditor(stores...)
	a.now = func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC) }
	return a
}

func TestLocalObjectsPut(t *testing.T) {
	dir := t.TempDir()
	l := NewLocalObjects(dir)

	loc, err := l.Put(context.Background(), "results/a.json", "application/json", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "results", "a.json"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	// Overwrite replaces the file in place.
	_, err = l.Put(context.Background(), "results/a.json", "application/json", []byte(`{"a":2}`))
	require.NoError(t, err)
	data, _ = os.ReadFile(loc)
	assert.JSONEq(t, `{"a":2}`, string(data))
}

func TestLocalObjectsRejectsEscapingKeys(t *testing.T) {
	l := NewLocalObjects(t.TempDir())

	for _, key := range []string{"../x.json", "/etc/passwd", "results/../../x"} {
		_, err := l.Put(context.Background(), key, "", nil)
		assert.Error(t, err, key)
	}
}

func TestAuditorRecordKey(t *testing.T) {
	mem := newMemObjects("mem")
	a := fixedAuditor(mem)

	locs, err := a.WriteRecord(context.Background(), sampleRecord())
	require.NoError(t, err)

	key := "results/tiktok-alice-123456-2026-03-14T09-26-53-589Z.json"
	assert.Equal(t, []string{"mem:" + key}, locs)

	var rec models.VideoRecord
	require.NoError(t, json.Unmarshal(mem.blob[key], &rec))
	assert.Equal(t, "123456", rec.ID)
}

func TestAuditorRecordKeyWithoutUsername(t *testing.T) {
	mem := newMemObjects("mem")
	a := fixedAuditor(mem)

	rec := sampleRecord()
	rec.Username = ""
	_, err := a.WriteRecord(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"results/tiktok-video-123456-2026-03-14T09-26-53-589Z.json"}, mem.keys())
}

func TestAuditorSummary(t *testing.T) {
	mem := newMemObjects("mem")
	a := fixedAuditor(mem)

	results := []models.BatchResult{
		{URL: "u1", Success: true},
		{URL: "u2", Error: &models.ErrorDetail{Code: models.ErrCodeFetchFailed, Message: "boom"}},
	}
	_, err := a.WriteSummary(context.Background(), results)
	require.NoError(t, err)

	var summary struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
	}
	require.NoError(t, json.Unmarshal(mem.blob["summaries/tiktok-summary-2026-03-14T09-26-53-589Z.json"], &summary))
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestAuditorScreenshotSanitizesName(t *testing.T) {
	mem := newMemObjects("mem")
	a := fixedAuditor(mem)

	_, err := a.WriteScreenshot(context.Background(), "a/b c", []byte{0x89})
	require.NoError(t, err)
	assert.Equal(t, []string{"screenshots/tiktok-a_b_c-2026-03-14T09-26-53-589Z.png"}, mem.keys())
}

func TestAuditorContinuesPastFailingBackend(t *testing.T) {
	bad := newMemObjects("bad")
	bad.err = errors.New("quota exceeded")
	good := newMemObjects("good")
	a := fixedAuditor(bad, good)

	locs, err := a.WriteRecord(context.Background(), sampleRecord())

	assert.ErrorContains(t, err, "bad: quota exceeded")
	assert.Len(t, locs, 1)
	assert.Len(t, good.keys(), 1)
}

func TestAuditorWithoutBackends(t *testing.T) {
	a := NewAuditor()
	assert.False(t, a.Enabled())

	locs, err := a.WriteRecord(context.Background(), sampleRecord())
	assert.NoError(t, err)
	assert.Nil(t, locs)
}

func TestAuditorEnsureFolders(t *testing.T) {
	dir := t.TempDir()
	a := NewAuditor(NewLocalObjects(dir), newMemObjects("mem"))

	require.NoError(t, a.EnsureFolders())
	for _, f := range []string{ResultsFolder, SummariesFolder, ScreenshotsFolder} {
		assert.DirExists(t, filepath.Join(dir, f))
	}
}
