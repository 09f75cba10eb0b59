package tracing

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return recorder, provider
}

func TestWithSpan_ClosesOnSuccess(t *testing.T) {
	recorder, provider := newRecordingTracer()
	tracer := provider.Tracer("test")

	got, err := WithSpan(context.Background(), tracer, "lookup", func(context.Context) (int, error) {
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "lookup", ended[0].Name())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)
}

func TestWithSpan_ClosesAndRecordsOnFailure(t *testing.T) {
	recorder, provider := newRecordingTracer()
	tracer := provider.Tracer("test")

	_, err := WithSpan(context.Background(), tracer, "lookup", func(context.Context) (int, error) {
		return 0, errors.New("remote down")
	})

	require.Error(t, err)

	ended := recorder.Ended()
	require.Len(t, ended, 1, "the span must close even when the body fails")
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	require.Len(t, ended[0].Events(), 1)
}
