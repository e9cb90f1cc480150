package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevTracer, prevProvider, prevProp := Tracer, otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		Tracer = prevTracer
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevProp)
	})
}

func TestInitTracing_Disabled(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := InitTracing(context.Background(), TracingConfig{ServiceName: "emojifeed-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	EndSpan(span, nil)
}

func TestInitTracing_UnknownExporter(t *testing.T) {
	restoreGlobals(t)

	_, err := InitTracing(context.Background(), TracingConfig{
		ServiceName: "emojifeed-test",
		Enabled:     true,
		Exporter:    "zipkin",
	})
	assert.ErrorContains(t, err, "zipkin")
}

func TestInitTracing_Stdout(t *testing.T) {
	restoreGlobals(t)

	shutdown, err := InitTracing(context.Background(), TracingConfig{
		ServiceName:    "emojifeed-test",
		ServiceVersion: "test",
		Environment:    "test",
		Enabled:        true,
		Exporter:       "stdout",
		SamplerRatio:   1,
	})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "feed.enrich")
	assert.True(t, span.SpanContext().IsSampled())
	EndSpan(span, errors.New("boom"))

	assert.NoError(t, shutdown(context.Background()))
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, newSampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(1.5).Description(), "AlwaysOnSampler")
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestInitMetrics_Memoized(t *testing.T) {
	assert.Same(t, InitMetrics("emojifeed-test"), InitMetrics("emojifeed-test"))
}

func TestObserveIdentityLookup(t *testing.T) {
	before := testutil.CollectAndCount(IdentityLookupLatency)

	ObserveIdentityLookup("observe_test", time.Now(), nil)
	ObserveIdentityLookup("observe_test", time.Now(), errors.New("down"))

	assert.Equal(t, before+2, testutil.CollectAndCount(IdentityLookupLatency))
}
