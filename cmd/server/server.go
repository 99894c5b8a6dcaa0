package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/revivephoto/revive-api/internal/platform/logger"
)

// startHTTPServer starts the background engine loops and the HTTP server
// with graceful shutdown support. On SIGINT or SIGTERM it stops accepting
// requests, cancels the engine loops, and waits for in-flight work.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	// The scheduler and reaper log through the context logger.
	engineCtx := logger.WithLogger(serverCtx, app.logger)

	var engineWg sync.WaitGroup
	engineWg.Add(2)
	go func() {
		defer engineWg.Done()
		app.scheduler.Run(engineCtx)
	}()
	go func() {
		defer engineWg.Done()
		app.reaper.Run(engineCtx)
	}()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error("Server failed", "error", err)
			cancelServer()
		}
	}()

	select {
	case <-shutdownCh:
		app.logger.Info("Shutting down server...")
	case <-serverCtx.Done():
		app.logger.Info("Server context canceled, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("Server shutdown failed", "error", err)
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// Stop the engine loops and wait for in-flight tasks to settle.
	cancelServer()
	engineWg.Wait()

	app.cleanup()

	app.logger.Info("Server shutdown completed")
	return nil
}
