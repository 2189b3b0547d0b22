package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	RequestIDHeader     = "X-Request-ID" // fallback for callers that only send a request id
	CorrelationIDKey    = "correlation_id"

	maxCorrelationIDLength = 128
)

// CorrelationID tags the request with the caller's id, or a fresh uuid when
// none usable was sent. The id is echoed in the response header and follows
// the queued action into logs and outcome events.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := incomingID(c)
		c.Header(CorrelationIDHeader, id)
		c.Set(CorrelationIDKey, id)
		c.Next()
	}
}

func incomingID(c *gin.Context) string {
	for _, header := range []string{CorrelationIDHeader, RequestIDHeader} {
		id := c.GetHeader(header)
		if id == "" {
			continue
		}
		if len(id) > maxCorrelationIDLength {
			break
		}
		return id
	}
	return uuid.NewString()
}

// GetCorrelationID returns the id set by CorrelationID, or "" outside it
func GetCorrelationID(c *gin.Context) string {
	id, _ := c.Get(CorrelationIDKey)
	s, _ := id.(string)
	return s
}
