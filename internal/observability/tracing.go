package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "profitcalc"
	ServiceVersion = "2.0.0"
	TracerName     = "profitcalc"
)

// Tracer returns the process tracer. It is a no-op until SetupTracing
// installs a provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// TracingConfig configures SetupTracing.
type TracingConfig struct {
	Enabled bool
	// Output receives exported spans; stdout when nil.
	Output io.Writer
	// Sync exports spans as they end instead of batching.
	Sync bool
}

// SetupTracing installs a stdout-exporting tracer provider when enabled.
// The returned function flushes and shuts it down.
func SetupTracing(ctx context.Context, cfg TracingConfig, logger *slog.Logger) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if cfg.Output != nil {
		opts = append(opts, stdouttrace.WithWriter(cfg.Output))
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return noop, fmt.Errorf("create trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
	)

	spanProcessor := sdktrace.WithBatcher(exporter)
	if cfg.Sync {
		spanProcessor = sdktrace.WithSyncer(exporter)
	}
	tp := sdktrace.NewTracerProvider(spanProcessor, sdktrace.WithResource(res))

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "Tracing initialized", "exporter", "stdout")
	return tp.Shutdown, nil
}
