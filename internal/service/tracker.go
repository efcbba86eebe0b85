package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"videograb/internal/core/domain"
	"videograb/internal/core/ports"
)

// Tracker owns job progress and status. Each job is written by the single
// worker running it; readers may poll concurrently.
type Tracker struct {
	store  ports.JobStore
	logger *log.Logger
	now    func() time.Time
}

// NewTracker creates a tracker on top of store.
func NewTracker(store ports.JobStore, logger *log.Logger) *Tracker {
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// Create registers a new job at progress 0, status downloading.
func (t *Tracker) Create(ctx context.Context, id, url, selector string) error {
	now := t.now()
	job := domain.Job{
		ID:        id,
		URL:       url,
		Selector:  selector,
		Status:    domain.StatusDownloading,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.Put(ctx, job); err != nil {
		return fmt.Errorf("failed to create job %s: %w", id, err)
	}
	return nil
}

// SetProgress raises the job's progress to percent, clamped to [0,100].
// Lower values are ignored so the reported progress never goes back.
func (t *Tracker) SetProgress(ctx context.Context, id string, percent int) {
	percent = clamp(percent, 0, 100)
	t.update(ctx, id, func(j *domain.Job) {
		if percent > j.Progress {
			j.Progress = percent
		}
	})
}

// Complete marks the job done with its artifact at progress 100.
func (t *Tracker) Complete(ctx context.Context, id, filePath, filename string) {
	t.update(ctx, id, func(j *domain.Job) {
		j.Progress = 100
		j.Status = domain.StatusCompleted
		j.FilePath = filePath
		j.Filename = filename
		j.Error = ""
	})
}

// Fail marks the job as errored. Progress is left as is.
func (t *Tracker) Fail(ctx context.Context, id, message string) {
	t.update(ctx, id, func(j *domain.Job) {
		j.Status = domain.StatusError
		j.Error = message
	})
}

// Get returns the job's progress and status record; unknown ids yield
// progress 0 and status "unknown".
func (t *Tracker) Get(ctx context.Context, id string) (int, domain.StatusRecord) {
	job, ok, err := t.store.Get(ctx, id)
	if err != nil {
		t.logger.Printf("[JOB %s] status lookup failed: %v", id, err)
		return 0, domain.UnknownRecord
	}
	if !ok {
		return 0, domain.UnknownRecord
	}
	return job.Progress, job.Record()
}

// Evict drops finished jobs not updated within olderThan.
func (t *Tracker) Evict(ctx context.Context, olderThan time.Duration) (int, error) {
	return t.store.EvictFinished(ctx, t.now().Add(-olderThan))
}

// Len returns the number of tracked jobs.
func (t *Tracker) Len(ctx context.Context) (int, error) {
	return t.store.Len(ctx)
}

func (t *Tracker) update(ctx context.Context, id string, fn func(*domain.Job)) {
	found, err := t.store.Update(ctx, id, func(j *domain.Job) {
		fn(j)
		j.UpdatedAt = t.now()
	})
	if err != nil {
		t.logger.Printf("[JOB %s] failed to update state: %v", id, err)
		return
	}
	if !found {
		t.logger.Printf("[JOB %s] update for untracked job ignored", id)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
