package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the stock-maven application.
var tracer = otel.Tracer("stock-maven")

// GetTracer returns the global tracer for creating spans.
// This tracer can be used throughout the application to create new spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "operation-name")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// StartOperationSpan starts a span for a guarded outbound operation.
// The caller must end the returned span.
func StartOperationSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, operation,
		trace.WithAttributes(attribute.String("resilience.operation", operation)))
}

// RecordError records a classified error on the current span, if one is
// recording. The span status is set to Error so trace backends surface the
// failure.
func RecordError(ctx context.Context, err error, errorKind, severity string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, trace.WithAttributes(
		attribute.String("error.kind", errorKind),
		attribute.String("error.severity", severity),
	))
	span.SetStatus(codes.Error, err.Error())
}
