package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(t *testing.T) (*Logger, *observer.ObservedLogs) {
	t.Helper()
	core, observed := observer.New(zap.InfoLevel)
	return &Logger{Logger: zap.New(core)}, observed
}

func TestLoggerCorrelatesWithActiveSpan(t *testing.T) {
	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer("logging-test")

	logger, observed := newObservedLogger(t)

	ctx, span := tracer.Start(context.Background(), "submission_create")
	defer span.End()

	logger.Info(ctx, "submission stored", map[string]interface{}{"category": "complaint"})

	entries := observed.All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "submission stored", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "complaint", fields["category"])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}

func TestLoggerWithoutSpanOmitsTraceFields(t *testing.T) {
	logger, observed := newObservedLogger(t)

	logger.Info(context.Background(), "no span here", nil)

	entries := observed.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotContains(t, fields, "trace_id")
	assert.NotContains(t, fields, "span_id")
}

func TestLoggerErrorIncludesErrorField(t *testing.T) {
	logger, observed := newObservedLogger(t)

	logger.Error(context.Background(), "enrichment failed", errors.New("api timeout"), map[string]interface{}{
		"submission_id": 42,
	})

	entries := observed.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "api timeout", fields["error"])
	assert.EqualValues(t, 42, fields["submission_id"])
}

func TestMergeFieldsLaterMapsWin(t *testing.T) {
	logger, _ := newObservedLogger(t)
	merged := logger.mergeFields(
		map[string]interface{}{"a": 1, "b": 1},
		nil,
		map[string]interface{}{"b": 2},
	)
	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, 2, merged["b"])
}
