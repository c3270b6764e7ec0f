// Package observability wires the process-global OpenTelemetry tracer
// provider. The sandbox and agent loop create spans through the global
// tracer; without this setup those spans are no-ops, which is the correct
// default for one-shot CLI invocations.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TraceConfig configures span export. An empty Endpoint disables export
// entirely and leaves the global no-op provider in place.
type TraceConfig struct {
	ServiceName string
	// Endpoint is the OTLP collector endpoint (e.g. "localhost:4317").
	Endpoint string
	// Insecure disables TLS for the OTLP connection.
	Insecure bool
}

// SetupTracing installs a batching OTLP trace provider as the global
// tracer provider and returns a shutdown function that flushes pending
// spans. When cfg.Endpoint is empty, or the exporter cannot be built, the
// returned shutdown is a no-op and spans stay unexported.
func SetupTracing(ctx context.Context, cfg TraceConfig) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" {
		return noop
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "boxedin"
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		res = resource.Default()
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider.Shutdown
}
