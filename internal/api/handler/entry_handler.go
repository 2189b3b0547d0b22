package handler

import (
	"errors"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ledger-rail-bridge/internal/api/middleware"
	"github.com/ledger-rail-bridge/internal/bridge/service"
	"github.com/ledger-rail-bridge/internal/domain/entry"
)

const statusAccepted = "accepted"

// EntryHandler serves the two-phase actions of one side
type EntryHandler struct {
	actionService service.ActionService
	logger        *slog.Logger
}

// NewEntryHandler creates a new entry handler
func NewEntryHandler(logger *slog.Logger, actionService service.ActionService) *EntryHandler {
	return &EntryHandler{
		actionService: actionService,
		logger:        logger,
	}
}

// Prepare acknowledges a prepare request and queues its pipeline. The
// handle is taken from data.handle.
func (h *EntryHandler) Prepare(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	handle := req.dataHandle()
	if handle == "" {
		h.logger.Warn("Prepare without handle", "correlation_id", middleware.GetCorrelationID(c))
		RespondBadRequest(c, "data.handle is required")
		return
	}

	h.accept(c, entry.ActionPrepare, handle, req)
}

// Commit acknowledges a commit request for the path handle
func (h *EntryHandler) Commit(c *gin.Context) {
	h.finish(c, entry.ActionCommit)
}

// Abort acknowledges an abort request for the path handle
func (h *EntryHandler) Abort(c *gin.Context) {
	h.finish(c, entry.ActionAbort)
}

func (h *EntryHandler) finish(c *gin.Context, action entry.Action) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	handle := c.Param("handle")
	if handle == "" {
		handle = req.dataHandle()
	}
	if handle == "" {
		RespondBadRequest(c, "handle is required")
		return
	}

	h.accept(c, action, handle, req)
}

// GetByHandle returns the current state of an entry
func (h *EntryHandler) GetByHandle(c *gin.Context) {
	handle := c.Param("handle")

	e, err := h.actionService.GetEntry(c.Request.Context(), handle)
	if err != nil {
		if errors.Is(err, entry.ErrEntryNotFound{}) {
			RespondNotFound(c, "Entry not found")
			return
		}
		h.logger.Error("Failed to get entry", "handle", handle, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toEntryResponse(e))
}

func (h *EntryHandler) bind(c *gin.Context) (ActionRequest, bool) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid request body", "path", c.Request.URL.Path, "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return ActionRequest{}, false
	}
	return req, true
}

// accept answers 202 before the pipeline is queued, so the caller never
// waits on a decision.
func (h *EntryHandler) accept(c *gin.Context, action entry.Action, handle string, req ActionRequest) {
	correlationID := middleware.GetCorrelationID(c)

	RespondAccepted(c, AcceptedResponse{
		Handle: handle,
		Action: string(action),
		Status: statusAccepted,
	})

	cmd := service.Command{
		Action:        action,
		Handle:        handle,
		Hash:          req.Hash,
		Data:          req.Data,
		Meta:          req.Meta,
		CorrelationID: correlationID,
	}
	if err := h.actionService.Submit(c.Request.Context(), cmd); err != nil {
		h.logger.Error("Failed to queue action",
			"handle", handle,
			"action", action,
			"correlation_id", correlationID,
			"error", err,
		)
		return
	}

	h.logger.Info("Action accepted",
		"handle", handle,
		"action", action,
		"correlation_id", correlationID,
	)
}
