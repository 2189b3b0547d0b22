package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCorrelationID(t *testing.T) {
	newRouter := func(captured *string) *gin.Engine {
		router := gin.New()
		router.Use(CorrelationID())
		router.GET("/test", func(c *gin.Context) {
			*captured = GetCorrelationID(c)
			c.Status(http.StatusOK)
		})
		return router
	}

	t.Run("GeneratesCorrelationIDIfNotProvided", func(t *testing.T) {
		var captured string
		rr := serve(newRouter(&captured), httptest.NewRequest(http.MethodGet, "/test", nil))

		header := rr.Header().Get(CorrelationIDHeader)
		_, err := uuid.Parse(header)
		assert.NoError(t, err)
		assert.Equal(t, header, captured)
	})

	t.Run("UsesCorrelationIDIfProvided", func(t *testing.T) {
		var captured string
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(CorrelationIDHeader, "corr-1")
		req.Header.Set(RequestIDHeader, "req-1")

		rr := serve(newRouter(&captured), req)
		assert.Equal(t, "corr-1", rr.Header().Get(CorrelationIDHeader))
		assert.Equal(t, "corr-1", captured)
	})

	t.Run("FallsBackToRequestID", func(t *testing.T) {
		var captured string
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "req-1")

		serve(newRouter(&captured), req)
		assert.Equal(t, "req-1", captured)
	})

	t.Run("ReplacesOversizedID", func(t *testing.T) {
		var captured string
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(CorrelationIDHeader, strings.Repeat("x", maxCorrelationIDLength+1))

		serve(newRouter(&captured), req)
		_, err := uuid.Parse(captured)
		assert.NoError(t, err)
	})
}

func TestGetCorrelationID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetCorrelationID(c))

	c.Set(CorrelationIDKey, 12345)
	assert.Empty(t, GetCorrelationID(c), "non string values are ignored")

	c.Set(CorrelationIDKey, "abc")
	assert.Equal(t, "abc", GetCorrelationID(c))
}

func TestLogger(t *testing.T) {
	var logBuffer bytes.Buffer
	testLogger := slog.New(slog.NewJSONHandler(&logBuffer, &slog.HandlerOptions{Level: slog.LevelDebug}))

	router := gin.New()
	router.Use(CorrelationID())
	router.Use(Logger(testLogger, "/metrics"))
	router.POST("/api/v2/credits/:handle/commit", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	router.GET("/api/v2/credits/:handle", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("LogsRequestDetails", func(t *testing.T) {
		logBuffer.Reset()
		req := httptest.NewRequest(http.MethodPost, "/api/v2/credits/H1/commit?debug=1", nil)
		req.Header.Set("User-Agent", "test-agent")
		req.Header.Set(CorrelationIDHeader, "corr-9")
		serve(router, req)

		out := logBuffer.String()
		assert.Contains(t, out, `"level":"INFO"`)
		assert.Contains(t, out, `"msg":"HTTP request"`)
		assert.Contains(t, out, `"path":"/api/v2/credits/H1/commit?debug=1"`)
		assert.Contains(t, out, `"route":"/api/v2/credits/:handle/commit"`)
		assert.Contains(t, out, `"status":202`)
		assert.Contains(t, out, `"handle":"H1"`)
		assert.Contains(t, out, `"user_agent":"test-agent"`)
		assert.Contains(t, out, `"correlation_id":"corr-9"`)
	})

	t.Run("ClientErrorsLogAtWarn", func(t *testing.T) {
		logBuffer.Reset()
		serve(router, httptest.NewRequest(http.MethodGet, "/api/v2/credits/H404", nil))
		assert.Contains(t, logBuffer.String(), `"level":"WARN"`)
	})

	t.Run("SkipsConfiguredPaths", func(t *testing.T) {
		logBuffer.Reset()
		serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Empty(t, logBuffer.String())
	})
}

func TestRecovery(t *testing.T) {
	var logBuffer bytes.Buffer
	testLogger := slog.New(slog.NewJSONHandler(&logBuffer, nil))

	router := gin.New()
	router.Use(CorrelationID())
	router.Use(Recovery(testLogger))
	router.GET("/panic", func(c *gin.Context) { panic("test panic") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(CorrelationIDHeader, "corr-p")
	rr := serve(router, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	errorField, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", errorField["code"])
	assert.Equal(t, "corr-p", body["correlation_id"])

	out := logBuffer.String()
	assert.Contains(t, out, `"msg":"Panic recovered"`)
	assert.Contains(t, out, `"error":"test panic"`)
	assert.Contains(t, out, `"stack":`)
}
