// Package telemetry is the ambient observability stack: structured logging
// via log/slog correlated to the active trace, Prometheus counters/gauges
// for the refresh cycle and prognosis sweep, and OpenTelemetry spans around
// the same two operations. Grounded on the teacher's telemetry/logging,
// telemetry/metrics and monitoring packages.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Logger wraps an *slog.Logger, attaching the active span's trace/span id
// to every record when ctx carries one.
type Logger struct {
	base *slog.Logger
}

// NewLogger wraps base, or slog.Default() if base is nil.
func NewLogger(base *slog.Logger) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{base: base}
}

func (l *Logger) withTrace(ctx context.Context, attrs []any) []any {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return attrs
	}
	return append(attrs, slog.String("trace_id", sc.TraceID().String()), slog.String("span_id", sc.SpanID().String()))
}

// Info logs msg at info level, correlated to ctx's active span if any.
func (l *Logger) Info(ctx context.Context, msg string, attrs ...any) {
	l.base.InfoContext(ctx, msg, l.withTrace(ctx, attrs)...)
}

// Error logs msg at error level, correlated to ctx's active span if any.
func (l *Logger) Error(ctx context.Context, msg string, attrs ...any) {
	l.base.ErrorContext(ctx, msg, l.withTrace(ctx, attrs)...)
}

// Func adapts Logger to the func(msg string) diagnostic sink every core
// package (prognose, ingest, dispo, zielgraph) accepts, losing trace
// correlation in exchange for fitting that signature exactly.
func (l *Logger) Func(ctx context.Context) func(msg string) {
	return func(msg string) { l.Info(ctx, msg) }
}
