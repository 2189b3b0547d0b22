package handler

import (
	"bytes"
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/ledger-rail-bridge/internal/bridge/service"
	"github.com/ledger-rail-bridge/internal/domain/intent"
)

// IntentHandler receives intent updates pushed by the ledger
type IntentHandler struct {
	intentService service.IntentService
	logger        *slog.Logger
}

func NewIntentHandler(logger *slog.Logger, intentService service.IntentService) *IntentHandler {
	return &IntentHandler{
		intentService: intentService,
		logger:        logger,
	}
}

// Update acknowledges an intent payload and stores it in the background
func (h *IntentHandler) Update(c *gin.Context) {
	handle := c.Param("handle")

	body, err := c.GetRawData()
	if err != nil {
		RespondBadRequest(c, "Unable to read request body")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	if _, err := decodeActionRequest(body); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	RespondAccepted(c, AcceptedResponse{Handle: handle, Status: statusAccepted})

	if err := h.intentService.Submit(c.Request.Context(), handle, body); err != nil {
		h.logger.Error("Failed to queue intent update", "handle", handle, "error", err)
	}
}

// Get returns the last intent received for the handle
func (h *IntentHandler) Get(c *gin.Context) {
	handle := c.Param("handle")

	in, err := h.intentService.Get(c.Request.Context(), handle)
	if err != nil {
		if errors.Is(err, intent.ErrIntentNotFound{}) {
			RespondNotFound(c, "Intent not found")
			return
		}
		h.logger.Error("Failed to get intent", "handle", handle, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, toIntentResponse(in))
}
