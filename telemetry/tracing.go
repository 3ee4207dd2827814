package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps an OpenTelemetry tracer for the two spans the orchestrator
// cares about: one refresh cycle, and the prognosis sweep inside it.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer installs a TracerProvider tagged with serviceName (no exporter
// wired — spans are recorded but not shipped anywhere until a caller
// registers one via the returned provider's RegisterSpanProcessor, kept out
// of this constructor's surface to avoid forcing a backend choice here) and
// returns a Tracer drawing spans from it.
func NewTracer(serviceName string) *Tracer {
	res := sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return &Tracer{tracer: tp.Tracer(serviceName)}
}

// StartRefreshCycle opens a span around one orchestrator refresh cycle.
func (t *Tracer) StartRefreshCycle(ctx context.Context) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "orchestrator.refresh_cycle")
}

// StartPrognose opens a span around one prognose.Run sweep, tagging the
// event count so long sweeps are easy to spot in a trace viewer.
func (t *Tracer) StartPrognose(ctx context.Context, eventCount int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "prognose.run", trace.WithAttributes(
		attribute.Int("dispocore.event_count", eventCount),
	))
}
