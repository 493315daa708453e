package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryops/operation/internal/telemetry/tracing"
)

func TestNewTracer_DisabledIsNoop(t *testing.T) {
	tr := tracing.NewTracer(false)
	assert.True(t, tr.Noop())

	_, span := tr.StartSpan(context.Background(), "op")
	assert.True(t, span.IsEnded())
	span.End()
	span.SetAttribute("k", "v")
	assert.Equal(t, tracing.SpanContext{}, span.Context())
}

func TestNewTracer_EnabledStartsRealSpan(t *testing.T) {
	tr := tracing.NewTracer(true)
	assert.False(t, tr.Noop())

	ctx, span := tr.StartSpan(context.Background(), "op")
	require.False(t, span.IsEnded())
	assert.NotEmpty(t, span.Context().TraceID)
	assert.NotEmpty(t, span.Context().SpanID)

	span.End()
	assert.True(t, span.IsEnded())

	traceID, spanID := tracing.ExtractIDs(ctx)
	assert.Equal(t, span.Context().TraceID, traceID)
	assert.Equal(t, span.Context().SpanID, spanID)
}

func TestTracer_ChildSpanSharesTraceIDAndLinksParent(t *testing.T) {
	tr := tracing.NewTracer(true)
	ctx, parent := tr.StartSpan(context.Background(), "parent")
	_, child := tr.StartSpan(ctx, "child")

	assert.Equal(t, parent.Context().TraceID, child.Context().TraceID)
	assert.Equal(t, parent.Context().SpanID, child.Context().ParentSpanID)
	assert.NotEqual(t, parent.Context().SpanID, child.Context().SpanID)
}

func TestAdaptiveTracer_ZeroPercentAlwaysNoop(t *testing.T) {
	tr := tracing.NewAdaptiveTracer(func() float64 { return 0 })
	_, span := tr.StartSpan(context.Background(), "op")
	assert.True(t, span.IsEnded())
	assert.Empty(t, span.Context().TraceID)
}

func TestAdaptiveTracer_HundredPercentAlwaysSamples(t *testing.T) {
	tr := tracing.NewAdaptiveTracer(func() float64 { return 100 })
	for i := 0; i < 10; i++ {
		_, span := tr.StartSpan(context.Background(), "op")
		assert.NotEmpty(t, span.Context().TraceID)
	}
}

func TestAdaptiveTracer_PropagatesExistingTraceRegardlessOfPercent(t *testing.T) {
	tr := tracing.NewAdaptiveTracer(func() float64 { return 100 })
	ctx, parent := tr.StartSpan(context.Background(), "parent")

	zeroTr := tracing.NewAdaptiveTracer(func() float64 { return 0 })
	_, child := zeroTr.StartSpan(ctx, "child")
	assert.Equal(t, parent.Context().TraceID, child.Context().TraceID, "a span already in the context must propagate even under a zero sample rate")
}

func TestNewAdaptiveTracer_NilPolicyFnIsNoop(t *testing.T) {
	tr := tracing.NewAdaptiveTracer(nil)
	assert.True(t, tr.Noop())
}

func TestSpanFromContext_EmptyContextReturnsZeroValue(t *testing.T) {
	traceID, spanID := tracing.ExtractIDs(context.Background())
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}
