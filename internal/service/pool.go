package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueFull  = errors.New("server busy, try again later")
	ErrPoolClosed = errors.New("worker pool is shut down")
)

// Task is one unit of work. ctx is cancelled when a shutdown deadline passes.
type Task struct {
	JobID string
	Run   func(ctx context.Context)
}

// PoolStats is a point-in-time snapshot of the pool.
type PoolStats struct {
	Workers int `json:"workers"`
	Active  int `json:"active"`
	Queued  int `json:"queued"`
}

// WorkerPool runs tasks on a fixed number of goroutines fed by a bounded
// queue.
type WorkerPool struct {
	jobChan chan Task
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *log.Logger
	workers int
	active  atomic.Int32

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool starts workerCount workers with room for queueSize waiting
// tasks.
func NewWorkerPool(workerCount, queueSize int, logger *log.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		jobChan: make(chan Task, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		workers: workerCount,
	}
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit enqueues t without blocking. It returns ErrQueueFull when every
// worker is busy and the queue is at capacity.
func (p *WorkerPool) Submit(t Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobChan <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued and running ones.
// If ctx expires first, running tasks see their context cancelled.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobChan)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

// Stats reports worker, running and queued counts.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers: p.workers,
		Active:  int(p.active.Load()),
		Queued:  len(p.jobChan),
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for t := range p.jobChan {
		p.run(id, t)
	}
}

func (p *WorkerPool) run(id int, t Task) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("Worker %d: [JOB %s] recovered from panic: %v", id, t.JobID, r)
		}
	}()

	p.logger.Printf("Worker %d: [JOB %s] started", id, t.JobID)
	t.Run(p.ctx)
	p.logger.Printf("Worker %d: [JOB %s] finished", id, t.JobID)
}
