package flowgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/observability"
)

// Context provides execution context to stages.
// It extends context.Context with a logger and run metadata.
//
// Context is immutable after creation. The executor derives a context per
// node with the node ID, visit number and an enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil.
	Logger() *slog.Logger

	// RunID returns the unique identifier for this execution run.
	RunID() string

	// NodeID returns the node being executed.
	// Empty outside of node execution.
	NodeID() string

	// Visit returns how many times the current node has started in this
	// run, including the current execution (1 = first visit).
	Visit() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger *slog.Logger
	runID  string
	nodeID string
	visit  int
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Visit returns the visit number of the current node.
func (c *executionContext) Visit() int {
	return c.visit
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// During execution it is enriched with run_id, node_id and visit.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithContextRunID sets the run identifier used for logging and tracing.
// If not set, a UUID is generated. Checkpointing uses WithRunID instead.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := flowgraph.NewContext(context.Background(),
//	    flowgraph.WithLogger(logger),
//	    flowgraph.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// forNode derives a per-node context with an enriched logger.
func forNode(ctx Context, tracingCtx context.Context, nodeID string, visit int) *executionContext {
	return &executionContext{
		Context: tracingCtx,
		logger:  observability.EnrichLogger(ctx.Logger(), ctx.RunID(), nodeID, visit),
		runID:   ctx.RunID(),
		nodeID:  nodeID,
		visit:   visit,
	}
}
