package intent

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPayload(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	payload := json.RawMessage(`{"hash":"h","data":{"handle":"other","status":"completed"},"meta":{"proofs":[]}}`)

	in, err := FromPayload("I1", payload, now)
	require.NoError(t, err)
	assert.Equal(t, "I1", in.Handle)
	assert.Equal(t, "h", in.Hash)
	assert.Equal(t, "completed", in.Status)
	assert.JSONEq(t, `{"proofs":[]}`, string(in.Meta))
	assert.Equal(t, now, in.ReceivedAt)
	assert.JSONEq(t, string(payload), string(in.Record))
}

func TestFromPayload_EdgeCases(t *testing.T) {
	in, err := FromPayload("I1", nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, in.Status)

	in, err = FromPayload("I1", json.RawMessage(`{"data":"opaque"}`), time.Now())
	require.NoError(t, err)
	assert.Empty(t, in.Status)

	_, err = FromPayload("I1", json.RawMessage(`not-json`), time.Now())
	assert.Error(t, err)
}

func TestErrIntentNotFound_Is(t *testing.T) {
	err := ErrIntentNotFound{Handle: "I1"}
	assert.True(t, errors.Is(err, ErrIntentNotFound{}))
	assert.False(t, errors.Is(err, ErrIntentNotFound{Handle: "I2"}))
}
