// Package lock serializes work on a single handle. Every action pipeline for
// a handle runs while holding that handle's lock, closing the read-modify-write
// race between concurrent requests for the same entry.
package lock

import (
	"context"
	"sync"
)

// UnlockFunc releases a held lock
type UnlockFunc func(ctx context.Context) error

// Locker acquires a mutual-exclusion scope keyed by handle
type Locker interface {
	Lock(ctx context.Context, handle string) (UnlockFunc, error)
}

// KeyedMutex is the in-process Locker. Idle keys are dropped so the map
// only holds handles that are locked or awaited.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // buffered(1); holding the token means holding the lock
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

// Lock blocks until the handle is free or ctx is done
func (k *KeyedMutex) Lock(ctx context.Context, handle string) (UnlockFunc, error) {
	k.mu.Lock()
	s, ok := k.slots[handle]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[handle] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(handle, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-s.ch
			k.release(handle, s)
		})
		return nil
	}, nil
}

func (k *KeyedMutex) release(handle string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, handle)
	}
}

// Held returns the number of handles currently tracked
func (k *KeyedMutex) Held() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
