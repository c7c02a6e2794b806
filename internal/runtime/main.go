package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/roboto-ai-actions/internal/core/domain"
	"github.com/tjfontaine/roboto-ai-actions/internal/pkg/config"
	"github.com/tjfontaine/roboto-ai-actions/internal/telemetry"
)

// NewLogger creates the structured logger described by cfg, writing to w.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Main runs a one-shot action invocation and returns the process exit code.
func Main(action string) int {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		return 1
	}

	logger := NewLogger(cfg.Log, os.Stdout).With(slog.String("action", action))
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled, logger)
	if err != nil {
		logger.Error("failed to initialize tracer", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return RunAction(ctx, cfg, action, WithLogger(logger))
}

// RunAction builds an App from cfg, runs action and returns the exit code. An
// invocation without a dataset is logged and treated as success.
func RunAction(ctx context.Context, cfg *config.Config, action string, opts ...Option) int {
	app, err := New(cfg, opts...)
	if err != nil {
		slog.Error("failed to create runtime", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.logger.Error("failed to close runtime", slog.String("error", err.Error()))
		}
	}()

	report, err := app.Run(ctx, action)
	switch {
	case errors.Is(err, domain.ErrNoDataset):
		app.logger.Warn("no dataset to process, nothing to do", slog.String("error", err.Error()))
		return 0
	case err != nil:
		app.logger.Error("action failed", slog.String("error", err.Error()))
		return 1
	}

	app.logger.Info("action complete", slog.Any("report", report))
	return 0
}
