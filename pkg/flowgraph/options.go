package flowgraph

import (
	"log/slog"

	"github.com/randalmurphal/brdflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/observability"
)

// DefaultMaxIterations bounds the total number of node executions per run.
const DefaultMaxIterations = 1000

// runConfig holds configuration for one graph execution.
type runConfig struct {
	maxIterations int
	loopLimits    map[string]int

	checkpointStore        checkpoint.Store
	runID                  string
	sequence               int
	checkpointFailureFatal bool

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: DefaultMaxIterations,
		loopLimits:    make(map[string]int),
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of node executions.
// Default: 1000. Exceeding it fails the run with a MaxIterationsError.
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithLoopLimit bounds the cycle whose entry node is nodeID: the node may be
// re-entered (executed again after its first visit) at most n times.
// One more re-entry fails the run with a LoopLimitError.
//
// n = 0 forbids re-entry entirely. Negative values are ignored.
//
// Example:
//
//	// gap loop re-enters "extract"; allow three extra passes
//	compiled.Run(ctx, s, flowgraph.WithLoopLimit("extract", 3))
func WithLoopLimit(nodeID string, n int) RunOption {
	return func(c *runConfig) {
		if n >= 0 {
			c.loopLimits[nodeID] = n
		}
	}
}

// WithCheckpointing saves a checkpoint after every successful node.
// Requires WithRunID.
func WithCheckpointing(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = store
	}
}

// WithRunID sets the run identifier used as the checkpoint key.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithCheckpointFailureFatal makes checkpoint failures abort the run.
// By default they are logged and execution continues.
func WithCheckpointFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = fatal
	}
}

// WithObservabilityLogger sets the logger for run and node lifecycle events.
// Defaults to the Context logger.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics records node, run, loop and checkpoint metrics.
func WithMetrics(recorder observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithTracing emits a span per run and per node through the global
// OpenTelemetry tracer provider.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}
