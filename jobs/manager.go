package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/tokscrape/metrics"
	"github.com/use-agent/tokscrape/models"
	"github.com/use-agent/tokscrape/pipeline"
	"github.com/use-agent/tokscrape/webhook"
)

// Runner processes a list of URLs. *pipeline.Pipeline satisfies it.
type Runner interface {
	RunWithProgress(ctx context.Context, urls []string, progress pipeline.ProgressFunc) []models.BatchResult
}

// Manager runs submitted jobs in the background and records their
// progress in a Store.
type Manager struct {
	store    Store
	runner   Runner
	notifier *webhook.Notifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager returns a Manager. notifier may be nil to disable webhooks.
func NewManager(store Store, runner Runner, notifier *webhook.Notifier) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    store,
		runner:   runner,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit records a queued job and starts it. The returned job is a
// snapshot; poll Get for progress.
func (m *Manager) Submit(ctx context.Context, kind string, urls []string, webhookURL string) (*models.Job, error) {
	if len(urls) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "no urls to process", nil)
	}
	if err := m.ctx.Err(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "job manager is shutting down", err)
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:         uuid.NewString(),
		Kind:       kind,
		Status:     models.JobQueued,
		URLs:       append([]string(nil), urls...),
		Total:      len(urls),
		Results:    make([]models.BatchResult, len(urls)),
		WebhookURL: webhookURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.Save(ctx, job); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "save job", err)
	}
	metrics.RecordJob(kind)
	slog.Info("job submitted", "job_id", job.ID, "kind", kind, "urls", len(urls))

	snapshot := clone(job)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(job)
	}()
	return snapshot, nil
}

// Get returns the current state of a job.
func (m *Manager) Get(ctx context.Context, id string) (*models.Job, error) {
	return m.store.Get(ctx, id)
}

// Shutdown waits for running jobs until ctx is done, then cancels them
// and waits for them to record their results.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

func (m *Manager) run(job *models.Job) {
	var mu sync.Mutex
	save := func() {
		job.UpdatedAt = time.Now().UTC()
		if err := m.store.Save(context.WithoutCancel(m.ctx), job); err != nil {
			slog.Warn("job state save failed", "job_id", job.ID, "error", err)
		}
	}

	mu.Lock()
	job.Status = models.JobProcessing
	save()
	mu.Unlock()

	results := m.runner.RunWithProgress(m.ctx, job.URLs, func(i int, r models.BatchResult) {
		mu.Lock()
		defer mu.Unlock()
		job.Results[i] = r
		job.Completed++
		if r.Success {
			job.Succeeded++
		}
		save()
	})

	mu.Lock()
	job.Results = results
	job.Completed = len(results)
	job.Succeeded = pipeline.Succeeded(results)
	job.Status = models.FinalStatus(job.Succeeded, job.Total)
	save()
	final := clone(job)
	mu.Unlock()

	slog.Info("job finished", "job_id", job.ID, "status", final.Status,
		"succeeded", final.Succeeded, "total", final.Total)

	if final.WebhookURL != "" && m.notifier != nil {
		_ = m.notifier.DeliverWithRetry(m.ctx, final.WebhookURL, webhook.NewJobEvent(final))
	}
}
