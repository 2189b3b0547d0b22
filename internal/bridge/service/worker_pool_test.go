package service

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool(t *testing.T) {
	pool, err := NewWorkerPool(WorkerPoolConfig{Size: 2}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Capacity())

	var done atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(func() {
			time.Sleep(2 * time.Millisecond)
			done.Add(1)
		}))
	}

	require.NoError(t, pool.Shutdown(5*time.Second))
	assert.EqualValues(t, 5, done.Load())
	assert.Equal(t, 0, pool.Running())

	assert.ErrorIs(t, pool.Submit(func() {}), ErrPoolClosed, "closed pool refuses work")
	assert.NoError(t, pool.Shutdown(time.Second), "shutdown is idempotent")
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	pool, err := NewWorkerPool(WorkerPoolConfig{Size: 1}, discardLogger())
	require.NoError(t, err)

	var ran atomic.Bool
	require.NoError(t, pool.Submit(func() { panic("boom") }))
	require.NoError(t, pool.Submit(func() { ran.Store(true) }))

	require.NoError(t, pool.Shutdown(5*time.Second))
	assert.True(t, ran.Load())
}

func TestWorkerPool_SubmitDoesNotWaitForBusyWorkers(t *testing.T) {
	pool, err := NewWorkerPool(WorkerPoolConfig{Size: 1, QueueSize: 2}, discardLogger())
	require.NoError(t, err)

	release := make(chan struct{})
	var done atomic.Int32
	blocking := func() {
		<-release
		done.Add(1)
	}

	// One task occupies the only worker and a second is held by the dispatcher
	require.NoError(t, pool.Submit(blocking))
	require.NoError(t, pool.Submit(blocking))
	require.Eventually(t, func() bool { return pool.Running() == 1 && pool.Queued() == 0 },
		time.Second, 5*time.Millisecond)

	returned := make(chan error, 3)
	go func() {
		for i := 0; i < 3; i++ {
			returned <- pool.Submit(blocking)
		}
	}()

	for i := 0; i < 2; i++ {
		select {
		case err := <-returned:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("Submit blocked while the worker was busy")
		}
	}
	select {
	case err := <-returned:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(release)
	require.NoError(t, pool.Shutdown(5*time.Second))
	assert.EqualValues(t, 4, done.Load())
}

func TestWorkerPool_ShutdownTimeout(t *testing.T) {
	pool, err := NewWorkerPool(WorkerPoolConfig{Size: 1}, discardLogger())
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, pool.Submit(func() { <-release }))
	require.NoError(t, pool.Submit(func() {}))

	assert.Error(t, pool.Shutdown(50*time.Millisecond))
}
