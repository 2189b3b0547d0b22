// Package processor applies a decided action to an entry.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledger-rail-bridge/internal/domain/entry"
)

// Processor moves an action record to its terminal state and persists the
// entry. It performs no financial validation.
type Processor struct {
	repo   entry.Repository
	logger *slog.Logger
	now    func() time.Time
}

// New creates a processor writing through repo
func New(logger *slog.Logger, repo entry.Repository) *Processor {
	return &Processor{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Apply records the outcome of action on e and persists it. A rejected
// action fails with the entry-rejected reason; an accepted one reaches the
// action's success state. The entry state always follows the record.
func (p *Processor) Apply(ctx context.Context, e *entry.Entry, action entry.Action, accepted bool) (*entry.Entry, error) {
	record := e.Record(action)
	if record == nil {
		// Apply without a prior stamp still leaves a consistent record
		record = e.Begin(action, "", nil, nil)
	}
	from := e.State

	if accepted {
		record.State = action.SuccessState()
		record.Error = nil
	} else {
		record.State = entry.StateFailed
		record.Error = &entry.ActionError{
			Reason: entry.ReasonEntryRejected,
			Detail: entry.DetailEntryRejected,
		}
	}
	e.State = record.State
	e.UpdatedAt = p.now().UTC()

	if err := p.repo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to persist %s outcome: %w", action, err)
	}

	p.logger.Info("State transition",
		"handle", e.Handle,
		"action", action,
		"from", from,
		"to", e.State,
	)
	return e, nil
}
