package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsTasks(t *testing.T) {
	p := NewWorkerPool(3, 10, discardLogger())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(Task{JobID: "j", Run: func(context.Context) { ran.Add(1) }}))
	}
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(10), ran.Load())
}

func TestWorkerPool_QueueFull(t *testing.T) {
	p := NewWorkerPool(1, 1, discardLogger())
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(Task{JobID: "running", Run: func(context.Context) {
		close(started)
		<-release
	}}))
	<-started
	require.NoError(t, p.Submit(Task{JobID: "queued", Run: func(context.Context) {}}))

	err := p.Submit(Task{JobID: "rejected", Run: func(context.Context) {}})
	assert.ErrorIs(t, err, ErrQueueFull)

	stats := p.Stats()
	assert.Equal(t, PoolStats{Workers: 1, Active: 1, Queued: 1}, stats)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	p := NewWorkerPool(1, 1, discardLogger())
	require.NoError(t, p.Shutdown(context.Background()))
	assert.ErrorIs(t, p.Submit(Task{Run: func(context.Context) {}}), ErrPoolClosed)
	require.NoError(t, p.Shutdown(context.Background()), "shutdown is idempotent")
}

func TestWorkerPool_SurvivesPanics(t *testing.T) {
	p := NewWorkerPool(1, 2, discardLogger())

	var ran atomic.Bool
	require.NoError(t, p.Submit(Task{JobID: "bad", Run: func(context.Context) { panic("boom") }}))
	require.NoError(t, p.Submit(Task{JobID: "good", Run: func(context.Context) { ran.Store(true) }}))
	require.NoError(t, p.Shutdown(context.Background()))
	assert.True(t, ran.Load())
}

func TestWorkerPool_ShutdownDeadlineCancelsTasks(t *testing.T) {
	p := NewWorkerPool(1, 0, discardLogger())
	started := make(chan struct{})
	cancelled := make(chan struct{})

	require.Eventually(t, func() bool {
		return p.Submit(Task{JobID: "slow", Run: func(ctx context.Context) {
			close(started)
			<-ctx.Done()
			close(cancelled)
		}}) == nil
	}, time.Second, 5*time.Millisecond)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("running task was not cancelled")
	}
}
