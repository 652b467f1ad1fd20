package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/codemod/pkg/observability"
)

func newTestMeter() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()

	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for i := range rm.ScopeMetrics {
		for j := range rm.ScopeMetrics[i].Metrics {
			if rm.ScopeMetrics[i].Metrics[j].Name == name {
				return &rm.ScopeMetrics[i].Metrics[j]
			}
		}
	}

	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

func TestREDMetrics(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeter()

	red, err := observability.NewREDMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()

	done := red.TrackInflight(ctx, "codemod_scan")
	red.RecordRequest(ctx, "codemod_scan", observability.StatusOK, 10*time.Millisecond)
	red.RecordRequest(ctx, "codemod_rewrite", observability.StatusError, time.Second)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "codemod.requests.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "codemod.errors.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "codemod.inflight.requests")))
	assert.NotNil(t, findMetric(rm, "codemod.request.duration.seconds"))

	done()

	assert.Equal(t, int64(0), sumOf(t, findMetric(collectMetrics(t, reader), "codemod.inflight.requests")))
}

func TestRewriteMetrics(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeter()

	m, err := observability.NewRewriteMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()

	m.RecordFile(ctx, "java", observability.OutcomeRewritten, time.Millisecond)
	m.RecordFile(ctx, "java", observability.OutcomeFailed, time.Millisecond)
	m.RecordMatches(ctx, "map-loop", 3)
	m.RecordMatches(ctx, "unused", 0)
	m.RecordCache(ctx, true)
	m.RecordCache(ctx, false)
	m.RecordRewritten(ctx, 128)

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "codemod.files.total")))
	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "codemod.file.errors.total")))
	assert.Equal(t, int64(3), sumOf(t, findMetric(rm, "codemod.matches.total")))
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "codemod.cache.lookups.total")))
	assert.Equal(t, int64(128), sumOf(t, findMetric(rm, "codemod.rewritten.bytes.total")))
}

func TestRewriteMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *observability.RewriteMetrics

	assert.NotPanics(t, func() {
		m.RecordFile(context.Background(), "go", observability.OutcomeSkipped, 0)
		m.RecordMatches(context.Background(), "r", 1)
		m.RecordCache(context.Background(), true)
		m.RecordRewritten(context.Background(), 1)
	})
}
