package service

import (
	"context"
	"encoding/json"

	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/intent"
)

// Command is one inbound protocol action
type Command struct {
	Action        entry.Action
	Handle        string
	Hash          string
	Data          json.RawMessage
	Meta          json.RawMessage
	CorrelationID string
}

// ActionService runs the prepare/commit/abort pipeline of one bridge side
type ActionService interface {
	// Submit schedules the pipeline in the background and returns once it is
	// queued. The pipeline does not inherit cancellation from ctx.
	Submit(ctx context.Context, cmd Command) error

	// Execute runs the pipeline to completion
	// Returns ErrEntryNotFound for commit or abort on an unknown handle
	Execute(ctx context.Context, cmd Command) (*entry.Entry, error)

	// GetEntry returns the stored entry for handle
	GetEntry(ctx context.Context, handle string) (*entry.Entry, error)
}

// IntentService keeps the latest intent pushed by the ledger
type IntentService interface {
	// Submit stores the payload in the background
	Submit(ctx context.Context, handle string, payload json.RawMessage) error

	// Get returns ErrIntentNotFound when nothing was received for handle
	Get(ctx context.Context, handle string) (*intent.Intent, error)
}

// Executor runs tasks detached from the caller
type Executor interface {
	Submit(task func()) error
}

// ActionProcessor applies a decision to an entry
type ActionProcessor interface {
	Apply(ctx context.Context, e *entry.Entry, action entry.Action, accepted bool) (*entry.Entry, error)
}

// LedgerNotifier reports terminal outcomes
type LedgerNotifier interface {
	Notify(ctx context.Context, e *entry.Entry, action entry.Action, notifyStates ...entry.State) string
}
