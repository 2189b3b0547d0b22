package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledger-rail-bridge/internal/api/handler"
	"github.com/ledger-rail-bridge/internal/api/middleware"
	"github.com/ledger-rail-bridge/internal/domain/shared"
	"github.com/ledger-rail-bridge/internal/metrics"
)

type routes struct {
	side          shared.Side
	liveness      string
	entryHandler  *handler.EntryHandler
	intentHandler *handler.IntentHandler
	metrics       *metrics.Metrics
	metricsPath   string
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, rt routes) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger, "/health", rt.metricsPath))
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware())
	}

	api := r.Group("/api")
	{
		api.GET("", func(c *gin.Context) {
			c.String(http.StatusOK, rt.liveness)
		})

		v2 := api.Group("/v2")
		{
			// Two-phase actions of this side, e.g. /api/v2/credits
			entries := v2.Group("/" + rt.side.Resource())
			{
				entries.POST("", rt.entryHandler.Prepare)
				entries.GET("/:handle", rt.entryHandler.GetByHandle)
				entries.POST("/:handle/commit", rt.entryHandler.Commit)
				entries.POST("/:handle/abort", rt.entryHandler.Abort)
			}

			intents := v2.Group("/intents")
			{
				intents.PUT("/:handle", rt.intentHandler.Update)
				intents.GET("/:handle", rt.intentHandler.Get)
			}
		}
	}

	if rt.metrics != nil && rt.metricsPath != "" {
		r.GET(rt.metricsPath, gin.WrapH(rt.metrics.Handler()))
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "side": rt.side, "timestamp": time.Now().UTC()})
	})
}
