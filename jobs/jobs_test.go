package jobs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/tokscrape/models"
	"github.com/use-agent/tokscrape/pipeline"
	"github.com/use-agent/tokscrape/webhook"
	"go.uber.org/goleak"
)

// fakeRunner succeeds for every URL containing "/video/".
type fakeRunner struct {
	release chan struct{}
}

func (f *fakeRunner) RunWithProgress(ctx context.Context, urls []string, progress pipeline.ProgressFunc) []models.BatchResult {
	results := make([]models.BatchResult, len(urls))
	for i, u := range urls {
		if f.release != nil {
			select {
			case <-f.release:
			case <-ctx.Done():
			}
		}
		r := models.BatchResult{URL: u}
		if strings.Contains(u, "/video/") && ctx.Err() == nil {
			r.Success = true
			r.Record = &models.VideoRecord{ID: u[strings.LastIndex(u, "/")+1:]}
		} else {
			r.Error = &models.ErrorDetail{Code: models.ErrCodeMissingID, Message: "no id"}
		}
		results[i] = r
		if progress != nil {
			progress(i, r)
		}
	}
	return results
}

func waitFinished(t *testing.T, m *Manager, id string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		j, err := m.Get(context.Background(), id)
		if err != nil {
			return false
		}
		job = j
		return j.Finished()
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func newMiniRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client, time.Hour)
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func TestSubmitPollCompleted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore(10, time.Hour, 0) },
		"redis": func(t *testing.T) Store {
			_, s := newMiniRedisStore(t)
			return s
		},
	}
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			m := NewManager(store, &fakeRunner{}, nil)

			urls := []string{
				"https://www.tiktok.com/@a/video/1",
				"https://www.tiktok.com/@b/",
				"https://www.tiktok.com/@c/video/3",
			}
			job, err := m.Submit(context.Background(), models.JobKindBatch, urls, "")
			require.NoError(t, err)
			assert.Equal(t, models.JobQueued, job.Status)
			assert.NotEmpty(t, job.ID)

			final := waitFinished(t, m, job.ID)
			assert.Equal(t, models.JobPartial, final.Status)
			assert.Equal(t, 3, final.Completed)
			assert.Equal(t, 2, final.Succeeded)
			require.Len(t, final.Results, 3)
			for i, r := range final.Results {
				assert.Equal(t, urls[i], r.URL)
			}

			require.NoError(t, m.Shutdown(context.Background()))
			require.NoError(t, store.Close())
		})
	}
}

func TestProgressIsVisibleWhileRunning(t *testing.T) {
	store := NewMemoryStore(10, time.Hour, 0)
	defer store.Close()
	runner := &fakeRunner{release: make(chan struct{})}
	m := NewManager(store, runner, nil)

	job, err := m.Submit(context.Background(), models.JobKindBatch,
		[]string{"https://www.tiktok.com/@a/video/1", "https://www.tiktok.com/@a/video/2"}, "")
	require.NoError(t, err)

	runner.release <- struct{}{}
	require.Eventually(t, func() bool {
		j, _ := m.Get(context.Background(), job.ID)
		return j != nil && j.Completed == 1
	}, time.Second, 5*time.Millisecond)

	j, _ := m.Get(context.Background(), job.ID)
	assert.Equal(t, models.JobProcessing, j.Status)

	runner.release <- struct{}{}
	final := waitFinished(t, m, job.ID)
	assert.Equal(t, models.JobCompleted, final.Status)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestShutdownCancelsRunningJobs(t *testing.T) {
	store := NewMemoryStore(10, time.Hour, 0)
	defer store.Close()
	m := NewManager(store, &fakeRunner{release: make(chan struct{})}, nil)

	job, err := m.Submit(context.Background(), models.JobKindSingle, []string{"https://www.tiktok.com/@a/video/1"}, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Shutdown(ctx), context.DeadlineExceeded)

	final, err := m.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, final.Status)

	_, err = m.Submit(context.Background(), models.JobKindSingle, []string{"https://www.tiktok.com/@a/video/2"}, "")
	assert.Error(t, err)
}

func TestSubmitRejectsEmpty(t *testing.T) {
	m := NewManager(NewMemoryStore(10, time.Hour, 0), &fakeRunner{}, nil)
	_, err := m.Submit(context.Background(), models.JobKindBatch, nil, "")
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}

func TestJobWebhook(t *testing.T) {
	var (
		mu  sync.Mutex
		got webhook.Event
		sig string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		_ = json.Unmarshal(body, &got)
		sig = r.Header.Get(webhook.SignatureHeader)
	}))
	defer srv.Close()

	store := NewMemoryStore(10, time.Hour, 0)
	defer store.Close()
	m := NewManager(store, &fakeRunner{}, webhook.NewNotifier("k"))

	job, err := m.Submit(context.Background(), models.JobKindSingle, []string{"https://www.tiktok.com/@a/video/1"}, srv.URL)
	require.NoError(t, err)
	require.NoError(t, m.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, webhook.EventJobCompleted, got.Type)
	assert.Equal(t, job.ID, got.JobID)
	assert.Equal(t, models.JobCompleted, got.Job.Status)
	assert.True(t, strings.HasPrefix(sig, "sha256="))
}

func TestMemoryStoreNotFoundAndExpiry(t *testing.T) {
	s := NewMemoryStore(10, 20*time.Millisecond, 0)
	defer s.Close()

	_, err := s.Get(context.Background(), "missing")
	assert.Equal(t, models.ErrCodeNotFound, models.CodeOf(err))

	require.NoError(t, s.Save(context.Background(), &models.Job{ID: "a", Status: models.JobCompleted}))
	_, err = s.Get(context.Background(), "a")
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	_, err = s.Get(context.Background(), "a")
	assert.Equal(t, models.ErrCodeNotFound, models.CodeOf(err))
}

func TestMemoryStoreKeepsRunningJobPastTTL(t *testing.T) {
	s := NewMemoryStore(10, 50*time.Millisecond, 0)
	defer s.Close()
	ctx := context.Background()

	job := &models.Job{ID: "a", Status: models.JobProcessing, Total: 2}
	require.NoError(t, s.Save(ctx, job))
	time.Sleep(80 * time.Millisecond)
	job.Completed = 1
	require.NoError(t, s.Save(ctx, job))
	time.Sleep(80 * time.Millisecond)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Completed)

	// The TTL counts from the final save.
	job.Status, job.Completed = models.JobCompleted, 2
	require.NoError(t, s.Save(ctx, job))
	_, err = s.Get(ctx, "a")
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond)
	_, err = s.Get(ctx, "a")
	assert.Equal(t, models.ErrCodeNotFound, models.CodeOf(err))
}

func TestMemoryStoreCleanupLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := NewMemoryStore(10, 10*time.Millisecond, 5*time.Millisecond)
	require.NoError(t, s.Save(context.Background(), &models.Job{ID: "running", Status: models.JobProcessing}))
	require.NoError(t, s.Save(context.Background(), &models.Job{ID: "done", Status: models.JobFailed}))

	assert.Eventually(t, func() bool { return s.Len() == 1 }, time.Second, 5*time.Millisecond)
	_, err := s.Get(context.Background(), "running")
	assert.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestMemoryStoreEvictsFinishedFirst(t *testing.T) {
	s := NewMemoryStore(2, time.Hour, 0)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &models.Job{ID: "running", Status: models.JobProcessing}))
	require.NoError(t, s.Save(ctx, &models.Job{ID: "done", Status: models.JobCompleted}))
	require.NoError(t, s.Save(ctx, &models.Job{ID: "new", Status: models.JobQueued}))

	_, err := s.Get(ctx, "done")
	assert.Error(t, err)
	_, err = s.Get(ctx, "running")
	assert.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStoreStoresCopies(t *testing.T) {
	s := NewMemoryStore(10, time.Hour, 0)
	defer s.Close()

	job := &models.Job{ID: "a", URLs: []string{"u"}}
	require.NoError(t, s.Save(context.Background(), job))
	job.URLs[0] = "changed"

	got, err := s.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"u"}, got.URLs)
}

func TestRedisStore(t *testing.T) {
	mr, s := newMiniRedisStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "nope")
	assert.Equal(t, models.ErrCodeNotFound, models.CodeOf(err))

	job := &models.Job{ID: "r1", Kind: models.JobKindSingle, Status: models.JobCompleted, Total: 1}
	require.NoError(t, s.Save(ctx, job))
	assert.True(t, mr.Exists(redisKeyPrefix+"r1"))
	assert.Equal(t, time.Hour, mr.TTL(redisKeyPrefix+"r1"))

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, got.Status)

	mr.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, "r1")
	assert.Equal(t, models.ErrCodeNotFound, models.CodeOf(err))
}
