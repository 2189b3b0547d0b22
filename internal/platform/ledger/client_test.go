package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, maxFailures uint32) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(logger, ClientConfig{
		ServerURL:          url + "/",
		Ledger:             "tfy-stg",
		Timeout:            2 * time.Second,
		BreakerMaxFailures: maxFailures,
		BreakerOpenTimeout: time.Minute,
	}, newTestSigner(t))
}

type sentRecord struct {
	Hash string          `json:"hash"`
	Data json.RawMessage `json:"data"`
	Meta struct {
		Moment string  `json:"moment"`
		Proofs []Proof `json:"proofs"`
	} `json:"meta"`
}

func TestClient_Send(t *testing.T) {
	var got sentRecord
	var headers http.Header
	var path string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)
	intentRef := json.RawMessage(`{
		"data": {"handle": "I1", "claims": [{"action": "transfer"}]},
		"meta": {"moment": "2024-01-01T00:00:00.000Z", "proofs": [{"method": "ed25519-v2", "public": "x"}]}
	}`)

	resp, err := client.Send(context.Background(), intentRef, map[string]string{"handle": "H1", "status": "prepared"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))

	assert.Equal(t, "/intents", path)
	assert.Equal(t, "tfy-stg", headers.Get("x-ledger"))
	assert.True(t, strings.HasPrefix(headers.Get("Authorization"), "Bearer "))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))

	wantHash, err := Hash(json.RawMessage(`{"handle":"I1","claims":[{"action":"transfer"}]}`))
	require.NoError(t, err)
	assert.Equal(t, wantHash, got.Hash)
	assert.Equal(t, "2024-01-01T00:00:00.000Z", got.Meta.Moment)

	require.Len(t, got.Meta.Proofs, 2)
	proof := got.Meta.Proofs[1]
	assert.Equal(t, client.Signer().Public(), proof.Public)
	assert.True(t, Verify(got.Hash, proof))
	assert.JSONEq(t, `{"handle":"H1","status":"prepared"}`, string(proof.Custom))
}

func TestClient_Send_BareIntentData(t *testing.T) {
	var got sentRecord
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, 5).Send(context.Background(), json.RawMessage(`{"handle":"I2"}`), nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{"handle":"I2"}`, string(got.Data))
	require.Len(t, got.Meta.Proofs, 1)
	assert.Empty(t, got.Meta.Proofs[0].Custom)
}

func TestClient_Send_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad proof"}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, 5).Send(context.Background(), json.RawMessage(`{"data":{}}`), nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Bad Request", apiErr.StatusText)
	assert.JSONEq(t, `{"error":"bad proof"}`, string(apiErr.Body))
}

func TestClient_Send_InvalidReference(t *testing.T) {
	_, err := newTestClient(t, "http://127.0.0.1:0", 5).Send(context.Background(), json.RawMessage(`[1,2]`), nil)
	assert.ErrorContains(t, err, "failed to decode intent reference")
}

func TestClient_Breaker(t *testing.T) {
	var calls, status atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	t.Run("client errors keep the breaker closed", func(t *testing.T) {
		status.Store(http.StatusConflict)
		client := newTestClient(t, server.URL, 2)
		for i := 0; i < 3; i++ {
			_, err := client.Send(context.Background(), json.RawMessage(`{"data":{}}`), nil)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
		}
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("server errors open it", func(t *testing.T) {
		calls.Store(0)
		status.Store(http.StatusBadGateway)
		client := newTestClient(t, server.URL, 2)
		for i := 0; i < 2; i++ {
			_, err := client.Send(context.Background(), json.RawMessage(`{"data":{}}`), nil)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.JSONEq(t, `"upstream down"`, string(apiErr.Body))
		}

		_, err := client.Send(context.Background(), json.RawMessage(`{"data":{}}`), nil)
		assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
		assert.EqualValues(t, 2, calls.Load())
	})
}
