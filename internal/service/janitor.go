package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJanitorSchedule runs every five minutes (cron with seconds field).
const DefaultJanitorSchedule = "0 */5 * * * *"

// Janitor periodically evicts finished jobs older than the retention period.
type Janitor struct {
	cron      *cron.Cron
	tracker   *Tracker
	retention time.Duration
	logger    *log.Logger
}

// NewJanitor schedules eviction on schedule. Nothing runs until Start.
func NewJanitor(tracker *Tracker, schedule string, retention time.Duration, logger *log.Logger) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	j := &Janitor{
		cron:      cron.New(cron.WithSeconds()),
		tracker:   tracker,
		retention: retention,
		logger:    logger,
	}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep evicts expired jobs once.
func (j *Janitor) Sweep() {
	n, err := j.tracker.Evict(context.Background(), j.retention)
	if err != nil {
		j.logger.Printf("Error evicting finished jobs: %v", err)
		return
	}
	if n > 0 {
		j.logger.Printf("Evicted %d finished jobs older than %s", n, j.retention)
	}
}
