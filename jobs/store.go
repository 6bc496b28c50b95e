// Package jobs tracks asynchronous scrape submissions: submit, receive a
// job id, poll until the job reaches a terminal status.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/use-agent/tokscrape/models"
)

// Store keeps job snapshots. Implementations store copies, so callers may
// keep mutating the job they saved.
type Store interface {
	Save(ctx context.Context, job *models.Job) error

	// Get returns NOT_FOUND for unknown or expired ids.
	Get(ctx context.Context, id string) (*models.Job, error)

	Close() error
}

func notFound(id string) error {
	return models.NewScrapeError(models.ErrCodeNotFound, "job not found: "+id, nil)
}

func clone(job *models.Job) *models.Job {
	cp := *job
	cp.URLs = append([]string(nil), job.URLs...)
	cp.Results = append([]models.BatchResult(nil), job.Results...)
	return &cp
}

type memEntry struct {
	job       *models.Job
	createdAt time.Time
	savedAt   time.Time
}

// expired reports whether a finished job has outlived ttl since its last
// save. Jobs that are still queued or processing never expire.
func (e *memEntry) expired(ttl time.Duration, now time.Time) bool {
	return ttl > 0 && e.job.Finished() && now.Sub(e.savedAt) > ttl
}

// MemoryStore is an in-process Store with TTL expiry and a size cap.
// It is safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*memEntry
	maxEntries int
	ttl        time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewMemoryStore starts a cleanup goroutine that evicts, every interval,
// finished jobs not saved within ttl. Close stops it.
func NewMemoryStore(maxEntries int, ttl, interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:    make(map[string]*memEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.cleanupLoop(interval)
	return s
}

func (s *MemoryStore) Save(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if e, ok := s.entries[job.ID]; ok {
		e.job = clone(job)
		e.savedAt = now
		return nil
	}
	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictOldest()
	}
	s.entries[job.ID] = &memEntry{job: clone(job), createdAt: now, savedAt: now}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.expired(s.ttl, time.Now()) {
		return nil, notFound(id)
	}
	return clone(e.job), nil
}

// Len returns the number of stored jobs, expired ones included until the
// next cleanup.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
	return nil
}

// evictOldest drops the oldest finished job, or the oldest job when none
// has finished. Caller holds mu.
func (s *MemoryStore) evictOldest() {
	var (
		victim      string
		victimAt    time.Time
		victimFinal bool
	)
	for id, e := range s.entries {
		final := e.job.Finished()
		switch {
		case victim == "",
			final && !victimFinal,
			final == victimFinal && e.createdAt.Before(victimAt):
			victim, victimAt, victimFinal = id, e.createdAt, final
		}
	}
	delete(s.entries, victim)
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	defer close(s.done)
	if interval <= 0 || s.ttl <= 0 {
		<-s.stop
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, e := range s.entries {
				if e.expired(s.ttl, now) {
					delete(s.entries, id)
				}
			}
			s.mu.Unlock()
		}
	}
}
