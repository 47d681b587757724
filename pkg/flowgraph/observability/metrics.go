package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope for all brdflow metrics.
const MeterName = "brdflow"

// MetricsRecorder records run and generation metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error)

	// RecordGraphRun records a graph run completion.
	RecordGraphRun(ctx context.Context, success bool, duration time.Duration)

	// RecordCheckpoint records a checkpoint save operation.
	RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64)

	// RecordLoopReentry records a cycle re-entering nodeID.
	RecordLoopReentry(ctx context.Context, nodeID string)

	// RecordGeneration records one delegated generation call for a stage.
	RecordGeneration(ctx context.Context, stage string, attempts int, fallback bool, tokens int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	graphRuns      metric.Int64Counter
	graphLatency   metric.Float64Histogram
	checkpointSize metric.Int64Histogram
	loopReentries  metric.Int64Counter
	generations    metric.Int64Counter
	fallbacks      metric.Int64Counter
	tokens         metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates the instruments on the global meter provider.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter(MeterName)
	m := &otelMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.nodeExecutions, "brdflow.node.executions", "Number of stage executions"},
		{&m.nodeErrors, "brdflow.node.errors", "Number of stage execution errors"},
		{&m.graphRuns, "brdflow.graph.runs", "Number of pipeline runs"},
		{&m.loopReentries, "brdflow.loop.reentries", "Number of cycle re-entries"},
		{&m.generations, "brdflow.llm.generations", "Number of delegated generation calls"},
		{&m.fallbacks, "brdflow.llm.fallbacks", "Number of generations resolved by fallback"},
		{&m.tokens, "brdflow.llm.tokens", "Tokens used by delegated generation"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	m.nodeLatency, err = meter.Float64Histogram("brdflow.node.latency_ms",
		metric.WithDescription("Stage execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.graphLatency, err = meter.Float64Histogram("brdflow.graph.latency_ms",
		metric.WithDescription("Pipeline run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.checkpointSize, err = meter.Int64Histogram("brdflow.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(ctx context.Context, nodeID string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("node_id", nodeID))

	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

// RecordGraphRun records a graph run.
func (m *otelMetrics) RecordGraphRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.graphRuns.Add(ctx, 1, attrs)
	m.graphLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordCheckpoint records a checkpoint save.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, nodeID string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

// RecordLoopReentry records a cycle re-entry.
func (m *otelMetrics) RecordLoopReentry(ctx context.Context, nodeID string) {
	m.loopReentries.Add(ctx, 1, metric.WithAttributes(attribute.String("node_id", nodeID)))
}

// RecordGeneration records a delegated generation call.
func (m *otelMetrics) RecordGeneration(ctx context.Context, stage string, attempts int, fallback bool, tokens int) {
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Int("attempts", attempts),
	)
	m.generations.Add(ctx, 1, attrs)
	if fallback {
		m.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
	}
	if tokens > 0 {
		m.tokens.Add(ctx, int64(tokens), metric.WithAttributes(attribute.String("stage", stage)))
	}
}
