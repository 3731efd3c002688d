// Package parallel bounds the number of problems solved at once when a
// batch of files is handed to the CLI. Each solve may itself run a
// portfolio of engine workers, so the pool is usually small.
package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrPoolShutdown is returned when submitting to a pool that was shut down.
var ErrPoolShutdown = errors.New("worker pool has been shutdown")

// WorkerPool runs submitted jobs on a fixed set of goroutines.
type WorkerPool struct {
	maxWorkers int
	taskChan   chan func()
	workerWg   sync.WaitGroup

	mu       sync.RWMutex
	closed   bool
	done     chan struct{}
	stopOnce sync.Once
}

// NewWorkerPool starts maxWorkers goroutines. If maxWorkers is 0 or
// negative, it defaults to the number of CPU cores.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		maxWorkers: maxWorkers,
		taskChan:   make(chan func(), maxWorkers*2),
		done:       make(chan struct{}),
	}
	for i := 0; i < maxWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker()
	}
	return pool
}

// Size is the number of worker goroutines.
func (wp *WorkerPool) Size() int { return wp.maxWorkers }

func (wp *WorkerPool) worker() {
	defer wp.workerWg.Done()
	for task := range wp.taskChan {
		if task != nil {
			task()
		}
	}
}

// Submit queues a job. It blocks while the queue is full, until ctx is done
// or the pool shuts down.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolShutdown
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case wp.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.done:
		return ErrPoolShutdown
	}
}

// Shutdown stops accepting jobs and waits for the queued ones to finish.
// It is safe to call more than once.
func (wp *WorkerPool) Shutdown() {
	wp.stopOnce.Do(func() { close(wp.done) })
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.taskChan)
	}
	wp.mu.Unlock()
	wp.workerWg.Wait()
}

// ForEach calls fn(ctx, i) for i in [0, n) on a pool of the given size and
// returns once every call has returned. Indices not yet submitted when ctx
// is cancelled are skipped and ctx.Err() is returned.
func ForEach(ctx context.Context, workers, n int, fn func(ctx context.Context, i int)) error {
	if n == 0 {
		return nil
	}
	pool := NewWorkerPool(min(workers, n))
	defer pool.Shutdown()

	for i := 0; i < n; i++ {
		i := i
		if err := pool.Submit(ctx, func() { fn(ctx, i) }); err != nil {
			return err
		}
	}
	return nil
}
