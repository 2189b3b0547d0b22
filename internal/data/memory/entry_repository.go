// Package memory holds the single-process stores used when no durable
// backend is configured.
package memory

import (
	"context"
	"sync"

	"github.com/ledger-rail-bridge/internal/domain/entry"
)

// EntryRepository keeps entries in a map. Entries are copied on the way in
// and out so callers never share state with the store.
type EntryRepository struct {
	mu      sync.RWMutex
	entries map[string]*entry.Entry
}

// NewEntryRepository creates an empty in-memory entry store
func NewEntryRepository() *EntryRepository {
	return &EntryRepository{entries: make(map[string]*entry.Entry)}
}

func (r *EntryRepository) Get(_ context.Context, handle string) (*entry.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[handle]
	if !ok {
		return nil, entry.ErrEntryNotFound{Handle: handle}
	}
	return e.Clone(), nil
}

func (r *EntryRepository) Create(_ context.Context, e *entry.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.Handle]; exists {
		return entry.ErrDuplicateHandle{Handle: e.Handle}
	}
	r.entries[e.Handle] = e.Clone()
	return nil
}

func (r *EntryRepository) Update(_ context.Context, e *entry.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.Handle]; !exists {
		return entry.ErrEntryNotFound{Handle: e.Handle}
	}
	r.entries[e.Handle] = e.Clone()
	return nil
}

// Len returns the number of stored entries
func (r *EntryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

var _ entry.Repository = (*EntryRepository)(nil)
