package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledger-rail-bridge/internal/api/middleware"
	"github.com/ledger-rail-bridge/internal/bridge/service"
	"github.com/ledger-rail-bridge/internal/domain/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockActionService struct {
	mock.Mock
}

func (m *MockActionService) Submit(ctx context.Context, cmd service.Command) error {
	return m.Called(ctx, cmd).Error(0)
}

func (m *MockActionService) Execute(ctx context.Context, cmd service.Command) (*entry.Entry, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entry.Entry), args.Error(1)
}

func (m *MockActionService) GetEntry(ctx context.Context, handle string) (*entry.Entry, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entry.Entry), args.Error(1)
}

type acceptedEnvelope struct {
	Data          AcceptedResponse `json:"data"`
	Error         *ErrorInfo       `json:"error"`
	CorrelationID string           `json:"correlation_id"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newEntryRouter(svc service.ActionService) *gin.Engine {
	h := NewEntryHandler(discardLogger(), svc)
	router := gin.New()
	router.Use(middleware.CorrelationID())
	credits := router.Group("/api/v2/credits")
	credits.POST("", h.Prepare)
	credits.GET("/:handle", h.GetByHandle)
	credits.POST("/:handle/commit", h.Commit)
	credits.POST("/:handle/abort", h.Abort)
	return router
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CorrelationIDHeader, "corr-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestEntryHandler_Prepare(t *testing.T) {
	t.Run("AcceptsAndQueues", func(t *testing.T) {
		svc := new(MockActionService)
		body := `{"hash":"h1","data":{"handle":"H1","amount":10,"symbol":{"handle":"USD"},"intent":{"data":{}}},"meta":{"m":1}}`

		svc.On("Submit", mock.Anything, mock.MatchedBy(func(cmd service.Command) bool {
			return cmd.Action == entry.ActionPrepare &&
				cmd.Handle == "H1" &&
				cmd.Hash == "h1" &&
				cmd.CorrelationID == "corr-1" &&
				string(cmd.Meta) == `{"m":1}`
		})).Return(nil).Once()

		rr := do(newEntryRouter(svc), http.MethodPost, "/api/v2/credits", body)

		require.Equal(t, http.StatusAccepted, rr.Code)
		var resp acceptedEnvelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, AcceptedResponse{Handle: "H1", Action: "prepare", Status: "accepted"}, resp.Data)
		assert.Equal(t, "corr-1", resp.CorrelationID)
		svc.AssertExpectations(t)
	})

	t.Run("StillAcknowledgesWhenQueueFails", func(t *testing.T) {
		svc := new(MockActionService)
		svc.On("Submit", mock.Anything, mock.Anything).Return(errors.New("pool closed")).Once()

		rr := do(newEntryRouter(svc), http.MethodPost, "/api/v2/credits", `{"data":{"handle":"H1"}}`)
		assert.Equal(t, http.StatusAccepted, rr.Code)
		svc.AssertExpectations(t)
	})

	badRequests := map[string]string{
		"MalformedJSON":   `{"data":`,
		"NotAnObject":     `[1,2]`,
		"MissingData":     `{"hash":"h"}`,
		"MissingHandle":   `{"data":{"amount":1}}`,
		"DataNotAnObject": `{"data":"H1"}`,
	}
	for name, body := range badRequests {
		t.Run(name, func(t *testing.T) {
			svc := new(MockActionService)
			rr := do(newEntryRouter(svc), http.MethodPost, "/api/v2/credits", body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), "BAD_REQUEST")
			svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
		})
	}

	t.Run("TypeMismatchNamesTheField", func(t *testing.T) {
		svc := new(MockActionService)
		rr := do(newEntryRouter(svc), http.MethodPost, "/api/v2/credits", `{"hash":42,"data":{"handle":"H1"}}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "ActionRequest.hash")
		assert.NotContains(t, rr.Body.String(), "JSON object")
		svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})
}

func TestEntryHandler_CommitAndAbort(t *testing.T) {
	testCases := []struct {
		name   string
		path   string
		body   string
		action entry.Action
	}{
		{"CommitUsesPathHandle", "/api/v2/credits/H1/commit", `{"data":{"handle":"OTHER"}}`, entry.ActionCommit},
		{"CommitWithEmptyBody", "/api/v2/credits/H1/commit", ``, entry.ActionCommit},
		{"Abort", "/api/v2/credits/H1/abort", `{"hash":"x","data":{"handle":"H1"}}`, entry.ActionAbort},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockActionService)
			svc.On("Submit", mock.Anything, mock.MatchedBy(func(cmd service.Command) bool {
				return cmd.Action == tc.action && cmd.Handle == "H1"
			})).Return(nil).Once()

			rr := do(newEntryRouter(svc), http.MethodPost, tc.path, tc.body)

			require.Equal(t, http.StatusAccepted, rr.Code)
			var resp acceptedEnvelope
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, string(tc.action), resp.Data.Action)
			svc.AssertExpectations(t)
		})
	}

	t.Run("MalformedBody", func(t *testing.T) {
		svc := new(MockActionService)
		rr := do(newEntryRouter(svc), http.MethodPost, "/api/v2/credits/H1/abort", `nope`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	})
}

func TestEntryHandler_GetByHandle(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		svc := new(MockActionService)
		now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		e := entry.New(entry.Seed{Handle: "H1", Hash: "h"}, now)
		record := e.Begin(entry.ActionPrepare, "h", nil, nil)
		record.State = entry.StateFailed
		record.Error = &entry.ActionError{Reason: entry.ReasonEntryRejected, Detail: entry.DetailEntryRejected}
		e.State = entry.StateFailed
		svc.On("GetEntry", mock.Anything, "H1").Return(e, nil).Once()

		rr := do(newEntryRouter(svc), http.MethodGet, "/api/v2/credits/H1", "")

		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Data EntryResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, entry.StateFailed, resp.Data.State)
		require.Len(t, resp.Data.Actions, 1)
		assert.Equal(t, entry.ReasonEntryRejected, resp.Data.Actions[0].Error.Reason)
		assert.Equal(t, "2024-01-02T03:04:05Z", resp.Data.CreatedAt)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := new(MockActionService)
		svc.On("GetEntry", mock.Anything, "H2").Return(nil, entry.ErrEntryNotFound{Handle: "H2"}).Once()

		rr := do(newEntryRouter(svc), http.MethodGet, "/api/v2/credits/H2", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("StoreError", func(t *testing.T) {
		svc := new(MockActionService)
		svc.On("GetEntry", mock.Anything, "H3").Return(nil, errors.New("db down")).Once()

		rr := do(newEntryRouter(svc), http.MethodGet, "/api/v2/credits/H3", "")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
