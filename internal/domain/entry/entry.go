package entry

import (
	"bytes"
	"encoding/json"
	"time"
)

// State is the lifecycle state of an entry or of a single action on it.
// The zero value is the uninitialized state and is rendered as JSON null.
type State string

const (
	StateNull       State = ""
	StateProcessing State = "processing"
	StatePrepared   State = "prepared"
	StateCommitted  State = "committed"
	StateAborted    State = "aborted"
	StateFailed     State = "failed"
)

// MarshalJSON renders the uninitialized state as null
func (s State) MarshalJSON() ([]byte, error) {
	if s == StateNull {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts null as the uninitialized state
func (s *State) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = StateNull
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = State(v)
	return nil
}

// IsTerminal reports whether no further automatic transition follows s
func (s State) IsTerminal() bool {
	switch s {
	case StatePrepared, StateCommitted, StateAborted, StateFailed:
		return true
	}
	return false
}

// Action is one of the two-phase protocol operations
type Action string

const (
	ActionPrepare Action = "prepare"
	ActionCommit  Action = "commit"
	ActionAbort   Action = "abort"
)

// Actions lists every protocol action in protocol order
var Actions = []Action{ActionPrepare, ActionCommit, ActionAbort}

// SuccessState maps an action to the state it reaches when accepted
func (a Action) SuccessState() State {
	switch a {
	case ActionPrepare:
		return StatePrepared
	case ActionCommit:
		return StateCommitted
	case ActionAbort:
		return StateAborted
	}
	return StateFailed
}

// Valid reports whether a names a known action
func (a Action) Valid() bool {
	switch a {
	case ActionPrepare, ActionCommit, ActionAbort:
		return true
	}
	return false
}

// Rejection codes reported to the ledger
const (
	ReasonEntryRejected = "bridge.entry-rejected"
	DetailEntryRejected = "Operation rejected by user"
)

// ActionError describes why an action failed
type ActionError struct {
	Reason string `json:"reason,omitempty" bson:"reason,omitempty"`
	Detail string `json:"detail,omitempty" bson:"detail,omitempty"`
	FailID string `json:"failId,omitempty" bson:"fail_id,omitempty"`
}

// ActionRecord holds the latest attempt of one action on an entry
type ActionRecord struct {
	Action Action          `json:"action"`
	Hash   string          `json:"hash,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Meta   json.RawMessage `json:"meta,omitempty"`
	State  State           `json:"state"`
	Error  *ActionError    `json:"error,omitempty"`
	CoreID string          `json:"coreId,omitempty"`
}

// Entry is the unit of work of the bridge, keyed by the caller supplied handle
type Entry struct {
	Handle    string                   `json:"handle"`
	Hash      string                   `json:"hash,omitempty"`
	Data      json.RawMessage          `json:"data,omitempty"`
	Meta      json.RawMessage          `json:"meta,omitempty"`
	State     State                    `json:"state"`
	Actions   map[Action]*ActionRecord `json:"actions"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Seed carries the fields an entry is created from
type Seed struct {
	Handle string
	Hash   string
	Data   json.RawMessage
	Meta   json.RawMessage
}

// New builds an uninitialized entry from a seed
func New(seed Seed, now time.Time) *Entry {
	return &Entry{
		Handle:    seed.Handle,
		Hash:      seed.Hash,
		Data:      seed.Data,
		Meta:      seed.Meta,
		State:     StateNull,
		Actions:   make(map[Action]*ActionRecord),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Record returns the record of the given action, or nil
func (e *Entry) Record(action Action) *ActionRecord {
	if e.Actions == nil {
		return nil
	}
	return e.Actions[action]
}

// Begin overwrites the record of action with a fresh processing attempt and
// moves the entry into processing.
func (e *Entry) Begin(action Action, hash string, data, meta json.RawMessage) *ActionRecord {
	if e.Actions == nil {
		e.Actions = make(map[Action]*ActionRecord)
	}
	record := &ActionRecord{
		Action: action,
		Hash:   hash,
		Data:   data,
		Meta:   meta,
		State:  StateProcessing,
	}
	e.Actions[action] = record
	e.State = StateProcessing
	return record
}

// Clone returns a deep copy of the entry
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Data = cloneRaw(e.Data)
	c.Meta = cloneRaw(e.Meta)
	c.Actions = make(map[Action]*ActionRecord, len(e.Actions))
	for name, record := range e.Actions {
		if record == nil {
			continue
		}
		r := *record
		r.Data = cloneRaw(record.Data)
		r.Meta = cloneRaw(record.Meta)
		if record.Error != nil {
			errCopy := *record.Error
			r.Error = &errCopy
		}
		c.Actions[name] = &r
	}
	return &c
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
