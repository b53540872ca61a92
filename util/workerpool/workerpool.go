// Package workerpool runs tasks on a fixed set of goroutines fed from a
// bounded queue.
package workerpool

import (
	"context"
	"sync"
)

// Task represents a unit of work to be executed by the worker pool
type Task func(ctx context.Context) error

// WorkerPool is a fixed-size pool of goroutines that execute tasks
type WorkerPool struct {
	numWorkers int
	tasks      chan taskWrapper
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	// mu guards stopped and the close of tasks against concurrent sends
	mu      sync.RWMutex
	stopped bool
}

type taskWrapper struct {
	task   Task
	result chan error
}

// New creates a pool of numWorkers goroutines whose queue holds up to
// queueSize tasks. A non-positive queueSize selects twice the worker count.
// The pool stops running tasks once ctx is done.
func New(ctx context.Context, numWorkers, queueSize int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = numWorkers * 2
	}

	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		numWorkers: numWorkers,
		tasks:      make(chan taskWrapper, queueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start initializes and starts all worker goroutines
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return
		case tw, ok := <-wp.tasks:
			if !ok {
				return
			}
			tw.result <- tw.task(wp.ctx)
		}
	}
}

// Submit queues task, waiting for room in the queue. The returned channel
// receives the task's error, or the pool's context error if the pool stopped
// first.
func (wp *WorkerPool) Submit(task Task) <-chan error {
	result := make(chan error, 1)
	tw := taskWrapper{task: task, result: result}

	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		result <- context.Canceled
		return result
	}
	if err := wp.ctx.Err(); err != nil {
		result <- err
		return result
	}

	select {
	case <-wp.ctx.Done():
		result <- wp.ctx.Err()
	case wp.tasks <- tw:
	}
	return result
}

// TrySubmit queues task only if the queue has room and the pool is running.
func (wp *WorkerPool) TrySubmit(task Task) (<-chan error, bool) {
	result := make(chan error, 1)
	tw := taskWrapper{task: task, result: result}

	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped || wp.ctx.Err() != nil {
		return nil, false
	}

	select {
	case wp.tasks <- tw:
		return result, true
	default:
		return nil, false
	}
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (wp *WorkerPool) Pending() int {
	return len(wp.tasks)
}

// Stop cancels the pool and waits for running tasks to return. Tasks still
// queued are not run; their result channels receive context.Canceled.
func (wp *WorkerPool) Stop() {
	wp.cancel()

	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.wg.Wait()
	for tw := range wp.tasks {
		tw.result <- context.Canceled
	}
}
