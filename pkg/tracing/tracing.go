// Package tracing provides a scoped span helper for outbound calls.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WithSpan starts a client span named name, runs fn with the span context,
// and ends the span on every exit path. A non-nil error from fn is recorded
// on the span before it closes.
func WithSpan[T any](ctx context.Context, tracer trace.Tracer, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	val, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return val, err
}
