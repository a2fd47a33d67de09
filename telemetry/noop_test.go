package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoopImplementationsDoNotPanic(t *testing.T) {
	ctx := context.Background()

	logger := NewNoopLogger()
	logger.Debug(ctx, "debug", "key", "value")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn", "k", 1)
	logger.Error(ctx, "error", "err", context.Canceled)

	metrics := NewNoopMetrics()
	metrics.IncCounter("node.dispatch", 1, "kind", "standard-agent")
	metrics.RecordTimer("node.duration", 10*time.Millisecond, "kind", "fork")
	metrics.RecordGauge("plan.queue_depth", 3)

	tracer := NewNoopTracer()
	spanCtx, span := tracer.Start(ctx, "execution.step")
	require.Equal(t, ctx, spanCtx)
	span.AddEvent("transition", "to", "end")
	span.RecordError(context.Canceled)
	span.End()

	require.NotNil(t, tracer.Span(ctx))
}
