// Package ledger talks to the external ledger: it hashes and signs intent
// records and submits them with a bearer token of the bridge side.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// APIError is a non-2xx ledger reply
type APIError struct {
	Status     int
	StatusText string
	Body       json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger responded %d %s", e.Status, e.StatusText)
}

// Response is a successful ledger reply
type Response struct {
	Status int
	Body   json.RawMessage
}

// ClientConfig holds the connection settings of a Client
type ClientConfig struct {
	ServerURL          string
	Ledger             string
	Timeout            time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
}

// Client submits signed intent proofs to the ledger
type Client struct {
	httpClient *http.Client
	baseURL    string
	ledger     string
	signer     *Signer
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a ledger client signing with signer
func NewClient(logger *slog.Logger, cfg ClientConfig, signer *Signer) *Client {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Ledger circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
		// A 4xx reply means the ledger is reachable, so it does not count
		// towards opening the breaker.
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http.StatusInternalServerError
			}
			return err == nil
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		ledger:     cfg.Ledger,
		signer:     signer,
		breaker:    breaker,
		logger:     logger,
		now:        time.Now,
	}
}

// Signer returns the identity requests are signed with
func (c *Client) Signer() *Signer {
	return c.signer
}

// intentRecord is the ledger representation of an intent
type intentRecord struct {
	Hash string                     `json:"hash"`
	Data json.RawMessage            `json:"data"`
	Meta map[string]json.RawMessage `json:"meta,omitempty"`
}

// Send hashes the referenced intent, appends a proof carrying custom and
// submits the record. intentRef is either a full record with a data field or
// the intent data itself.
func (c *Client) Send(ctx context.Context, intentRef json.RawMessage, custom any) (*Response, error) {
	record, err := decodeIntent(intentRef)
	if err != nil {
		return nil, err
	}

	if record.Hash, err = Hash(record.Data); err != nil {
		return nil, fmt.Errorf("failed to hash intent: %w", err)
	}

	proof, err := c.signer.Sign(record.Hash, custom)
	if err != nil {
		return nil, err
	}
	if err := appendProof(record, proof); err != nil {
		return nil, err
	}

	body, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode intent record: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, "/intents", body)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

func decodeIntent(intentRef json.RawMessage) (*intentRecord, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(intentRef, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode intent reference: %w", err)
	}

	record := &intentRecord{}
	if data, ok := probe["data"]; ok {
		record.Data = data
		if meta, ok := probe["meta"]; ok && !bytes.Equal(meta, []byte("null")) {
			if err := json.Unmarshal(meta, &record.Meta); err != nil {
				return nil, fmt.Errorf("failed to decode intent meta: %w", err)
			}
		}
	} else {
		record.Data = intentRef
	}
	return record, nil
}

func appendProof(record *intentRecord, proof Proof) error {
	if record.Meta == nil {
		record.Meta = make(map[string]json.RawMessage)
	}
	var proofs []json.RawMessage
	if existing, ok := record.Meta["proofs"]; ok {
		if err := json.Unmarshal(existing, &proofs); err != nil {
			return fmt.Errorf("failed to decode intent proofs: %w", err)
		}
	}
	encoded, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("failed to encode proof: %w", err)
	}
	proofs = append(proofs, encoded)

	all, err := json.Marshal(proofs)
	if err != nil {
		return fmt.Errorf("failed to encode intent proofs: %w", err)
	}
	record.Meta["proofs"] = all
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*Response, error) {
	token, err := c.signer.Token(c.now())
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-ledger", c.ledger)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ledger: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger response: %w", err)
	}
	if !json.Valid(respBody) {
		// Keep non JSON replies loggable as a JSON string
		respBody, _ = json.Marshal(string(respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	return &Response{Status: resp.StatusCode, Body: respBody}, nil
}
