package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"time"
)

// Intent is the latest ledger-side intent record pushed to the bridge
type Intent struct {
	Handle     string          `json:"handle"`
	Hash       string          `json:"hash,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	Status     string          `json:"status,omitempty"`
	Record     json.RawMessage `json:"record,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// FromPayload builds an intent from the raw body of an intent update.
// The path handle wins over any handle inside the payload.
func FromPayload(handle string, payload json.RawMessage, now time.Time) (*Intent, error) {
	var body struct {
		Hash string          `json:"hash"`
		Data json.RawMessage `json:"data"`
		Meta json.RawMessage `json:"meta"`
	}
	if len(bytes.TrimSpace(payload)) > 0 {
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, err
		}
	}

	var status struct {
		Status string `json:"status"`
	}
	if len(body.Data) > 0 {
		// A non-object data field simply has no status
		_ = json.Unmarshal(body.Data, &status)
	}

	return &Intent{
		Handle:     handle,
		Hash:       body.Hash,
		Data:       body.Data,
		Meta:       body.Meta,
		Status:     status.Status,
		Record:     payload,
		ReceivedAt: now,
	}, nil
}

// Repository stores the latest intent per handle
type Repository interface {
	Upsert(ctx context.Context, intent *Intent) error
	Get(ctx context.Context, handle string) (*Intent, error)
}

// ErrIntentNotFound indicates no intent was received for the handle
type ErrIntentNotFound struct {
	Handle string
}

func (e ErrIntentNotFound) Error() string {
	return "intent not found: " + e.Handle
}

// Is implements the errors.Is interface for ErrIntentNotFound
func (e ErrIntentNotFound) Is(target error) bool {
	t, ok := target.(ErrIntentNotFound)
	if !ok {
		return false
	}
	return t.Handle == "" || t.Handle == e.Handle
}
