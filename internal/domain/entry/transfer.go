package entry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Transfer is the typed view of the fields the bridge reads from an
// action payload. Everything else in the payload stays opaque.
type Transfer struct {
	Handle string          `json:"handle"`
	Amount any             `json:"amount,omitempty"`
	Symbol Ref             `json:"symbol"`
	Source Ref             `json:"source"`
	Target Ref             `json:"target"`
	Intent json.RawMessage `json:"intent,omitempty"`
}

// Ref is a handle reference such as {"handle":"usd"}
type Ref struct {
	Handle string `json:"handle"`
}

// ParseTransfer decodes the known fields of a data payload. An empty payload
// yields a zero Transfer.
func ParseTransfer(data json.RawMessage) (Transfer, error) {
	var t Transfer
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return t, nil
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return Transfer{}, fmt.Errorf("failed to parse transfer data: %w", err)
	}
	return t, nil
}

// HasIntent reports whether the payload carries a non-null intent reference
func (t Transfer) HasIntent() bool {
	trimmed := bytes.TrimSpace(t.Intent)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// DisplayAmount renders the amount for humans, empty when absent
func (t Transfer) DisplayAmount() string {
	if t.Amount == nil {
		return ""
	}
	return fmt.Sprint(t.Amount)
}

// Or fills the display fields missing in t from fallback
func (t Transfer) Or(fallback Transfer) Transfer {
	if t.Handle == "" {
		t.Handle = fallback.Handle
	}
	if t.Amount == nil {
		t.Amount = fallback.Amount
	}
	if t.Symbol.Handle == "" {
		t.Symbol = fallback.Symbol
	}
	if t.Source.Handle == "" {
		t.Source = fallback.Source
	}
	if t.Target.Handle == "" {
		t.Target = fallback.Target
	}
	if !t.HasIntent() {
		t.Intent = fallback.Intent
	}
	return t
}
