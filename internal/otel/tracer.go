package otel

import (
	"context"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer scoped to build and composition
// spans. "stdout" (development) and "none" (traces generated, not
// exported — useful in tests) are the only supported exporters; there
// is no RPC server boundary in this library for an OTLP exporter to
// cross.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer for serviceName using exporter ("stdout" or
// "none"; anything else behaves like "none").
func NewTracer(serviceName, exporter string) (*Tracer, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("error building trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter == "stdout" {
		stdoutExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("error building stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(stdoutExporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	return &Tracer{provider: provider, tracer: provider.Tracer(serviceName)}, nil
}

// NoopTracer returns a Tracer whose spans are generated but never
// exported, the default a Builder/Provider/Watcher falls back to when
// no Tracer is configured.
func NoopTracer() *Tracer {
	tracer, _ := NewTracer("optify", "none")
	return tracer
}

// Start begins a span named name, mirroring trace.Tracer.Start.
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name)
}

// Shutdown flushes and stops the underlying trace provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
