package parallel

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsEveryJob(t *testing.T) {
	pool := NewWorkerPool(3)
	assert.Equal(t, 3, pool.Size())

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() { ran.Add(1) }))
	}
	pool.Shutdown()
	assert.EqualValues(t, 20, ran.Load(), "shutdown drains queued jobs")
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Shutdown()
	pool.Shutdown()
	assert.ErrorIs(t, pool.Submit(context.Background(), func() {}), ErrPoolShutdown)
}

func TestWorkerPool_SubmitHonorsContext(t *testing.T) {
	pool := NewWorkerPool(1)
	release := make(chan struct{})
	// one running job plus a full queue
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Submit(context.Background(), func() { <-release }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Submit(ctx, func() {}), context.DeadlineExceeded)

	close(release)
	pool.Shutdown()
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		highest int
	)
	err := ForEach(context.Background(), 2, 12, func(_ context.Context, _ int) {
		mu.Lock()
		active++
		highest = max(highest, active)
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, highest, 2)
}

func TestForEach_VisitsEachIndexOnce(t *testing.T) {
	seen := make([]int32, 50)
	require.NoError(t, ForEach(context.Background(), 4, len(seen), func(_ context.Context, i int) {
		atomic.AddInt32(&seen[i], 1)
	}))
	for i, n := range seen {
		assert.EqualValues(t, 1, n, "index %d", i)
	}
	assert.NoError(t, ForEach(context.Background(), 4, 0, nil))
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	err := ForEach(ctx, 1, 100, func(context.Context, int) { calls.Add(1) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}
