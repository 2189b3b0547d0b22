package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

const defaultQueueSize = 1000

var (
	// ErrPoolClosed is returned by Submit after Shutdown
	ErrPoolClosed = errors.New("worker pool is closed")
	// ErrQueueFull is returned when the backlog of accepted tasks is at capacity
	ErrQueueFull = errors.New("worker pool queue is full")
)

// WorkerPool bounds the number of pipelines running at once. Submitted
// tasks wait in a bounded queue, so Submit never waits for a free worker.
type WorkerPool struct {
	pool   *ants.Pool
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan func()
	done   chan struct{}
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

func NewWorkerPool(config WorkerPoolConfig, logger *slog.Logger) (*WorkerPool, error) {
	pool, err := ants.NewPool(config.Size,
		ants.WithPanicHandler(func(p interface{}) {
			logger.Error("Recovered panic in worker", "panic", fmt.Sprint(p))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	w := &WorkerPool{
		pool:   pool,
		logger: logger,
		queue:  make(chan func(), queueSize),
		done:   make(chan struct{}),
	}
	go w.dispatch()
	return w, nil
}

// dispatch hands queued tasks to the pool, waiting for free workers on
// behalf of the callers.
func (w *WorkerPool) dispatch() {
	defer close(w.done)
	for task := range w.queue {
		if err := w.pool.Submit(task); err != nil {
			w.logger.Error("Failed to submit task to worker pool", "error", err)
		}
	}
}

// Submit queues task and returns at once
func (w *WorkerPool) Submit(task func()) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrPoolClosed
	}
	select {
	case w.queue <- task:
		return nil
	default:
		w.logger.Error("Worker pool queue is full", "queued", len(w.queue), "running_workers", w.pool.Running())
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits up to timeout for the queue to
// drain and running tasks to finish, then releases the pool.
func (w *WorkerPool) Shutdown(timeout time.Duration) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.logger.Info("Shutting down worker pool", "running_workers", w.pool.Running(), "queued", len(w.queue))
	deadline := time.Now().Add(timeout)

	select {
	case <-w.done:
	case <-time.After(timeout):
		w.pool.Release()
		return fmt.Errorf("worker pool did not drain within %s: %d tasks still queued", timeout, len(w.queue))
	}

	if err := w.pool.ReleaseTimeout(time.Until(deadline)); err != nil {
		return fmt.Errorf("worker pool did not drain within %s: %w", timeout, err)
	}
	return nil
}

// Running returns the number of running workers in the pool.
func (w *WorkerPool) Running() int {
	return w.pool.Running()
}

// Queued returns the number of tasks waiting for a worker
func (w *WorkerPool) Queued() int {
	return len(w.queue)
}

// Capacity returns the capacity of the worker pool.
func (w *WorkerPool) Capacity() int {
	return w.pool.Cap()
}
