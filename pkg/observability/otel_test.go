package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, NewLogger(InfoLevel, io.Discard))
	assert.NoError(t, err)
	assert.Nil(t, providers)
}

func TestInitOTel_RequiresEndpoint(t *testing.T) {
	_, err := InitOTel(context.Background(), OTelConfig{Enabled: true}, NewLogger(InfoLevel, io.Discard))
	assert.Error(t, err)
}

func TestShutdownOTel(t *testing.T) {
	logger := NewLogger(InfoLevel, io.Discard)
	ctx := context.Background()

	assert.NoError(t, ShutdownOTel(ctx, nil, logger))

	providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}
	assert.NoError(t, ShutdownOTel(ctx, providers, logger))
}

func TestWithTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	WithTraceContext(context.Background(), logger).Info("no span")
	assert.NotContains(t, buf.String(), "trace_id")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "saga")
	defer span.End()

	buf.Reset()
	WithTraceContext(ctx, logger).Info("in span")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}
