package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledger-rail-bridge/internal/api/middleware"
)

// Response is the envelope of every JSON body the bridge returns. Exactly one
// of Data and Error is set.
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorCodes = map[int]string{
	http.StatusBadRequest:          "BAD_REQUEST",
	http.StatusNotFound:            "NOT_FOUND",
	http.StatusInternalServerError: "INTERNAL_SERVER_ERROR",
}

func respond(c *gin.Context, status int, resp Response) {
	resp.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(status, &resp)
}

func RespondWithData(c *gin.Context, status int, data interface{}) {
	respond(c, status, Response{Data: data})
}

func RespondWithError(c *gin.Context, status int, code, message string) {
	respond(c, status, Response{Error: &ErrorInfo{Code: code, Message: message}})
}

func respondStatus(c *gin.Context, status int, message string) {
	RespondWithError(c, status, errorCodes[status], message)
}

func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondAccepted acknowledges an action or intent queued for processing
func RespondAccepted(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusAccepted, data)
}

func RespondBadRequest(c *gin.Context, message string) {
	respondStatus(c, http.StatusBadRequest, message)
}

// RespondNotFound reports an unknown entry or intent handle
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	respondStatus(c, http.StatusNotFound, message)
}

// RespondInternalError hides the cause; callers log it first
func RespondInternalError(c *gin.Context) {
	respondStatus(c, http.StatusInternalServerError, "An internal server error occurred")
}
