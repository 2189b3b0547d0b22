package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledger-rail-bridge/internal/app"
	"github.com/ledger-rail-bridge/internal/config"
	"github.com/ledger-rail-bridge/internal/domain/shared"
	"github.com/ledger-rail-bridge/internal/logger"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("credit_bridge")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// This binary always serves the credit side
	cfg.Bridge.Side = shared.SideCredit.String()

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Credit Bridge",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	bridge, err := app.New(appCtx, log, cfg)
	if err != nil {
		log.Error("Failed to initialize bridge", "error", err)
		os.Exit(1)
	}

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		if err := bridge.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")
	err = bridge.Shutdown(shutdownCtx)

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Bridge shutdown completed with errors", "error", err)
		os.Exit(1)
	}
	log.Info("Bridge shutdown completed successfully")
}
