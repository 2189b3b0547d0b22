package memory

import (
	"context"
	"sync"

	"github.com/ledger-rail-bridge/internal/domain/intent"
)

// IntentRepository keeps the latest intent per handle
type IntentRepository struct {
	mu      sync.RWMutex
	intents map[string]intent.Intent
}

func NewIntentRepository() *IntentRepository {
	return &IntentRepository{intents: make(map[string]intent.Intent)}
}

func (r *IntentRepository) Upsert(_ context.Context, in *intent.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents[in.Handle] = *in
	return nil
}

func (r *IntentRepository) Get(_ context.Context, handle string) (*intent.Intent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.intents[handle]
	if !ok {
		return nil, intent.ErrIntentNotFound{Handle: handle}
	}
	return &in, nil
}

var _ intent.Repository = (*IntentRepository)(nil)
