package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeadersRoundTripSpanContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "produce")
	defer span.End()

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "event_type", Value: []byte("x")}})
	require.Len(t, headers, 2)
	assert.NotEmpty(t, HeaderValue(headers, TraceparentHeader))

	extracted := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	assert.True(t, extracted.IsRemote())
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
	assert.Equal(t, span.SpanContext().SpanID(), extracted.SpanID())
}

func TestHeaderCarrierSetReplaces(t *testing.T) {
	headers := []kafka.Header{{Key: TraceparentHeader, Value: []byte("old")}}
	c := HeaderCarrier{Headers: &headers}

	c.Set(TraceparentHeader, "new")
	c.Set("tracestate", "k=v")

	assert.Equal(t, []string{TraceparentHeader, "tracestate"}, c.Keys())
	assert.Equal(t, "new", c.Get(TraceparentHeader))
	assert.Empty(t, HeaderValue(headers, "missing"))
}
