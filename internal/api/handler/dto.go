package handler

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin/binding"

	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/ledger-rail-bridge/internal/domain/intent"
)

// ActionRequest is the body of prepare, commit and abort
type ActionRequest struct {
	Hash string          `json:"hash"`
	Data json.RawMessage `json:"data"`
	Meta json.RawMessage `json:"meta"`
}

// decodeActionRequest binds body with gin's JSON binding. An empty body is
// an empty request.
func decodeActionRequest(body []byte) (ActionRequest, error) {
	var req ActionRequest
	if err := binding.JSON.BindBody(body, &req); err != nil && !errors.Is(err, io.EOF) {
		return ActionRequest{}, err
	}
	return req, nil
}

// dataHandle reads data.handle, empty when data is absent or not an object
func (r ActionRequest) dataHandle() string {
	var d struct {
		Handle string `json:"handle"`
	}
	if len(r.Data) == 0 || json.Unmarshal(r.Data, &d) != nil {
		return ""
	}
	return d.Handle
}

// AcceptedResponse acknowledges a queued action
type AcceptedResponse struct {
	Handle string `json:"handle"`
	Action string `json:"action,omitempty"`
	Status string `json:"status"`
}

// ActionResponse represents one action record in API responses
type ActionResponse struct {
	Action string             `json:"action"`
	Hash   string             `json:"hash,omitempty"`
	State  entry.State        `json:"state"`
	Error  *entry.ActionError `json:"error,omitempty"`
	CoreID string             `json:"coreId,omitempty"`
}

// EntryResponse represents an entry in API responses
type EntryResponse struct {
	Handle    string           `json:"handle"`
	Hash      string           `json:"hash,omitempty"`
	State     entry.State      `json:"state"`
	Data      json.RawMessage  `json:"data,omitempty"`
	Meta      json.RawMessage  `json:"meta,omitempty"`
	Actions   []ActionResponse `json:"actions"`
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

func toEntryResponse(e *entry.Entry) EntryResponse {
	resp := EntryResponse{
		Handle:    e.Handle,
		Hash:      e.Hash,
		State:     e.State,
		Data:      e.Data,
		Meta:      e.Meta,
		Actions:   make([]ActionResponse, 0, len(e.Actions)),
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
	for _, action := range entry.Actions {
		record := e.Record(action)
		if record == nil {
			continue
		}
		resp.Actions = append(resp.Actions, ActionResponse{
			Action: string(action),
			Hash:   record.Hash,
			State:  record.State,
			Error:  record.Error,
			CoreID: record.CoreID,
		})
	}
	return resp
}

// IntentResponse represents a stored intent in API responses
type IntentResponse struct {
	Handle     string          `json:"handle"`
	Hash       string          `json:"hash,omitempty"`
	Status     string          `json:"status,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	ReceivedAt string          `json:"received_at"`
}

func toIntentResponse(in *intent.Intent) IntentResponse {
	return IntentResponse{
		Handle:     in.Handle,
		Hash:       in.Hash,
		Status:     in.Status,
		Data:       in.Data,
		Meta:       in.Meta,
		ReceivedAt: in.ReceivedAt.UTC().Format(time.RFC3339Nano),
	}
}
