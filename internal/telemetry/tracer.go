// Package telemetry configures OpenTelemetry tracing for the actions.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Option configures InitTracer.
type Option func(*options)

type options struct {
	writer io.Writer
	pretty bool
}

// WithWriter sends spans to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithPrettyPrint indents exported spans.
func WithPrettyPrint() Option {
	return func(o *options) {
		o.pretty = true
	}
}

// InitTracer installs a global tracer provider exporting to stderr. Logs own
// stdout, so spans never interleave with them. When enabled is false the global
// no-op provider is left in place.
func InitTracer(serviceName string, enabled bool, logger *slog.Logger, opts ...Option) (ShutdownFunc, error) {
	if !enabled {
		logger.Debug("OpenTelemetry disabled")
		return func(context.Context) error { return nil }, nil
	}

	o := &options{writer: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(o.writer)}
	if o.pretty {
		exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	// Create resource with service name
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized", slog.String("service", serviceName))

	return tp.Shutdown, nil
}
