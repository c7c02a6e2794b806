package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/roboto-ai-actions/internal/pkg/config"
	"github.com/tjfontaine/roboto-ai-actions/internal/runtime"
	"github.com/tjfontaine/roboto-ai-actions/internal/server"
	"github.com/tjfontaine/roboto-ai-actions/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := runtime.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	app, err := runtime.New(cfg, runtime.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create runtime: %v", err)
	}
	defer app.Close()

	if cfg.Server.AuthToken == "" {
		logger.Warn("server.auth_token not set, action routes are unauthenticated")
	}

	srv := server.New(cfg.Server.Port, logger, app.Service(),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
		server.WithAuthToken(cfg.Server.AuthToken),
		server.WithServiceName(cfg.Telemetry.ServiceName),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	case <-sigChan:
	}

	logger.Info("Shutdown signal received, stopping server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Server shutdown complete")
}
