package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest installs a meter provider backed by a manual reader.
func setupMetricsTest(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the counter value of the data point carrying attr.
func sumFor(t *testing.T, m *metricdata.Metrics, attr attribute.KeyValue) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
			total += dp.Value
		}
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	setupMetricsTest(t)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop)
}

func TestRecordNodeExecution(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordNodeExecution(ctx, "intake", 20*time.Millisecond, nil)
	m.RecordNodeExecution(ctx, "intake", 5*time.Millisecond, errors.New("failed"))

	rm := collectMetrics(t, reader)
	node := attribute.String("node_id", "intake")
	assert.Equal(t, int64(2), sumFor(t, findMetric(rm, "brdflow.node.executions"), node))
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "brdflow.node.errors"), node))

	latency := findMetric(rm, "brdflow.node.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestRecordGraphRun(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordGraphRun(context.Background(), true, time.Second)
	m.RecordGraphRun(context.Background(), false, time.Second)

	rm := collectMetrics(t, reader)
	runs := findMetric(rm, "brdflow.graph.runs")
	assert.Equal(t, int64(1), sumFor(t, runs, attribute.Bool("success", true)))
	assert.Equal(t, int64(1), sumFor(t, runs, attribute.Bool("success", false)))
}

func TestRecordCheckpoint(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordCheckpoint(context.Background(), "gap_checker", 512)

	rm := collectMetrics(t, reader)
	size := findMetric(rm, "brdflow.checkpoint.size_bytes")
	require.NotNil(t, size)
	hist, ok := size.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(512), hist.DataPoints[0].Sum)
}

func TestRecordLoopReentry(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordLoopReentry(context.Background(), "fact_extractor")
	m.RecordLoopReentry(context.Background(), "fact_extractor")
	m.RecordLoopReentry(context.Background(), "outline_builder")

	rm := collectMetrics(t, reader)
	reentries := findMetric(rm, "brdflow.loop.reentries")
	assert.Equal(t, int64(2), sumFor(t, reentries, attribute.String("node_id", "fact_extractor")))
	assert.Equal(t, int64(1), sumFor(t, reentries, attribute.String("node_id", "outline_builder")))
}

func TestRecordGeneration(t *testing.T) {
	reader := setupMetricsTest(t)
	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordGeneration(ctx, "intake", 1, false, 300)
	m.RecordGeneration(ctx, "intake", 2, true, 40)
	m.RecordGeneration(ctx, "gap_checker", 1, false, 0)

	rm := collectMetrics(t, reader)
	intake := attribute.String("stage", "intake")
	assert.Equal(t, int64(2), sumFor(t, findMetric(rm, "brdflow.llm.generations"), intake))
	assert.Equal(t, int64(1), sumFor(t, findMetric(rm, "brdflow.llm.fallbacks"), intake))
	assert.Equal(t, int64(340), sumFor(t, findMetric(rm, "brdflow.llm.tokens"), intake))
	assert.Equal(t, int64(0), sumFor(t, findMetric(rm, "brdflow.llm.tokens"), attribute.String("stage", "gap_checker")))
}
