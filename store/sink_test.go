package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/tokscrape/models"
)

type fakeRecords struct {
	upserts []*models.VideoRecord
	err     error
}

func (f *fakeRecords) Upsert(_ context.Context, rec *models.VideoRecord) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, rec)
	return nil
}

func (f *fakeRecords) Get(context.Context, string) (*models.VideoRecord, error) {
	return nil, models.NewScrapeError(models.ErrCodeNotFound, "not found", nil)
}

func (f *fakeRecords) Ping(context.Context) error { return nil }
func (f *fakeRecords) Close() error               { return nil }

func TestSinkRejectsMissingID(t *testing.T) {
	records := &fakeRecords{}
	mem := newMemObjects("mem")
	sink := NewSink(records, NewAuditor(mem))

	rec := sampleRecord()
	rec.ID = ""
	_, err := sink.Persist(context.Background(), rec)

	assert.Equal(t, models.ErrCodeMissingID, models.CodeOf(err))
	assert.Empty(t, records.upserts)
	assert.Empty(t, mem.keys(), "nothing is written for a record without id")
}

func TestSinkPersists(t *testing.T) {
	records := &fakeRecords{}
	mem := newMemObjects("mem")
	sink := NewSink(records, NewAuditor(mem))

	id, err := sink.Persist(context.Background(), sampleRecord())

	require.NoError(t, err)
	assert.Equal(t, "123456", id)
	assert.Len(t, records.upserts, 1)
	assert.Len(t, mem.keys(), 1)
}

func TestSinkAuditFailureIsNotFatal(t *testing.T) {
	records := &fakeRecords{}
	bad := newMemObjects("bad")
	bad.err = errors.New("disk full")
	sink := NewSink(records, NewAuditor(bad))

	id, err := sink.Persist(context.Background(), sampleRecord())

	require.NoError(t, err)
	assert.Equal(t, "123456", id)
	assert.Len(t, records.upserts, 1)
}

func TestSinkUpsertFailure(t *testing.T) {
	sink := NewSink(&fakeRecords{err: errors.New("timeout")}, NewAuditor())

	_, err := sink.Persist(context.Background(), sampleRecord())
	assert.Equal(t, models.ErrCodePersistence, models.CodeOf(err))
}

func TestSinkAuditOnly(t *testing.T) {
	mem := newMemObjects("mem")
	sink := NewSink(nil, NewAuditor(mem))

	id, err := sink.Persist(context.Background(), sampleRecord())

	require.NoError(t, err)
	assert.Equal(t, "123456", id)
	assert.Len(t, mem.keys(), 1)
}

func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("a.json", `{"url":"https://www.tiktok.com/@alice/video/111","likes":"5"}`)
	write("b.json", `{"id":"222","url":"https://www.tiktok.com/@bob/video/222"}`)
	write("c.json", `not json`)
	write("d.json", `{"url":"https://www.tiktok.com/@carol/"}`)
	write("notes.txt", `ignored`)

	records := &fakeRecords{}
	res, err := ImportDir(context.Background(), records, dir)

	require.NoError(t, err)
	assert.Equal(t, ImportResult{Files: 4, Imported: 2, Failed: 2}, res)
	require.Len(t, records.upserts, 2)

	first := records.upserts[0]
	assert.Equal(t, "111", first.ID)
	assert.Equal(t, "alice", first.Username)
	assert.Equal(t, "5", first.Likes)
	assert.Equal(t, "0", first.Comments)
	assert.Equal(t, "N/A", first.Views)
	assert.Equal(t, []string{}, first.Hashtags)
}

func TestImportDirMissing(t *testing.T) {
	_, err := ImportDir(context.Background(), &fakeRecords{}, filepath.Join(t.TempDir(), "absent"))
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}
