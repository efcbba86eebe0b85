// Package memstore keeps job state in process memory.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"videograb/internal/core/domain"
)

// DefaultMaxEntries caps the store when no bound is configured.
const DefaultMaxEntries = 1000

// Store is a bounded, concurrency-safe job map. When full, Put makes room by
// dropping the oldest finished jobs; in-flight jobs are never dropped, so the
// bound can be exceeded while every tracked job is still running.
type Store struct {
	mu         sync.RWMutex
	jobs       map[string]domain.Job
	maxEntries int
}

// New creates a store holding at most maxEntries jobs.
func New(maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{jobs: make(map[string]domain.Job), maxEntries: maxEntries}
}

// Put stores job, replacing any job with the same id.
func (s *Store) Put(_ context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists && len(s.jobs) >= s.maxEntries {
		s.evictOldestFinished(len(s.jobs) - s.maxEntries + 1)
	}
	s.jobs[job.ID] = job
	return nil
}

// Get returns a copy of the job with id.
func (s *Store) Get(_ context.Context, id string) (domain.Job, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	return job, ok, nil
}

// Update applies fn to the job under the write lock. It reports false for
// unknown ids.
func (s *Store) Update(_ context.Context, id string, fn func(*domain.Job)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	fn(&job)
	s.jobs[id] = job
	return true, nil
}

// EvictFinished drops terminal jobs last updated before cutoff.
func (s *Store) EvictFinished(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, job := range s.jobs {
		if job.Status.IsFinished() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored jobs.
func (s *Store) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs), nil
}

// evictOldestFinished must be called with mu held.
func (s *Store) evictOldestFinished(n int) {
	finished := make([]domain.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if job.Status.IsFinished() {
			finished = append(finished, job)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].UpdatedAt.Before(finished[j].UpdatedAt)
	})
	for i := 0; i < n && i < len(finished); i++ {
		delete(s.jobs, finished[i].ID)
	}
}
