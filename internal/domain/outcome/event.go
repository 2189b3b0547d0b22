// Package outcome holds the audit events emitted by the action pipeline.
package outcome

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/shared"
)

// Event records the terminal outcome of one action
type Event struct {
	ID         uuid.UUID          `json:"id"`
	Side       shared.Side        `json:"side"`
	Handle     string             `json:"handle"`
	Action     entry.Action       `json:"action"`
	State      entry.State        `json:"state"`
	Error      *entry.ActionError `json:"error,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// NewEvent captures the current record of action on e
func NewEvent(side shared.Side, e *entry.Entry, action entry.Action, now time.Time) *Event {
	ev := &Event{
		ID:         uuid.New(),
		Side:       side,
		Handle:     e.Handle,
		Action:     action,
		State:      e.State,
		OccurredAt: now.UTC(),
	}
	if record := e.Record(action); record != nil {
		ev.State = record.State
		if record.Error != nil {
			errCopy := *record.Error
			ev.Error = &errCopy
		}
	}
	return ev
}

// DeadLetter is a ledger notification that could not be delivered
type DeadLetter struct {
	ID         uuid.UUID       `json:"id"`
	Side       shared.Side     `json:"side"`
	Handle     string          `json:"handle"`
	Action     entry.Action    `json:"action"`
	Report     json.RawMessage `json:"report"`
	Reason     string          `json:"reason"`
	Status     int             `json:"status,omitempty"`
	StatusText string          `json:"status_text,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	FailedAt   time.Time       `json:"failed_at"`
}
