package flowgraph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/randalmurphal/brdflow/pkg/flowgraph/checkpoint"
)

// resumeConfig holds options for Resume and ResumeFrom.
type resumeConfig struct {
	replayNode    bool
	stateOverride func(any) any
	validateState func(any) error
	runOpts       []RunOption
}

// ResumeOption configures resume behavior.
type ResumeOption func(*resumeConfig)

// WithReplayNode re-executes the checkpointed node instead of continuing
// with its successor. The node's visit count is rolled back so the replay
// does not count as a loop re-entry.
func WithReplayNode() ResumeOption {
	return func(c *resumeConfig) {
		c.replayNode = true
	}
}

// WithStateOverride modifies the restored state before execution continues.
// The function receives and must return the run's state type.
func WithStateOverride(fn func(any) any) ResumeOption {
	return func(c *resumeConfig) {
		c.stateOverride = fn
	}
}

// WithStateValidation rejects a restored state before execution continues.
func WithStateValidation(fn func(any) error) ResumeOption {
	return func(c *resumeConfig) {
		c.validateState = fn
	}
}

// WithRunOptions applies run options (loop limits, metrics, logger) to the
// resumed execution. Checkpointing and the run ID are always taken from
// the Resume arguments.
func WithRunOptions(opts ...RunOption) ResumeOption {
	return func(c *resumeConfig) {
		c.runOpts = append(c.runOpts, opts...)
	}
}

// Resume continues execution from the last checkpoint for a run.
// It loads the latest checkpoint and starts execution from the next node,
// with loop visit counts restored so loop limits span the whole run.
//
// Example:
//
//	// Previous run crashed after node B
//	// Resume continues from node C with state from B's checkpoint
//	result, err := compiled.Resume(ctx, store, "run-123")
func (cg *CompiledGraph[S]) Resume(ctx Context, store checkpoint.Store, runID string, opts ...ResumeOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	infos, err := store.List(runID)
	if err != nil {
		return zero, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(infos) == 0 {
		return zero, fmt.Errorf("%w: %s", ErrNoCheckpoints, runID)
	}

	latest := infos[len(infos)-1]
	return cg.resume(ctx, store, runID, latest.NodeID, opts)
}

// ResumeFrom continues execution from a specific checkpoint.
// Unlike Resume, this loads the checkpoint at a specific node rather than the latest.
//
// Example:
//
//	// Retry from a specific node
//	result, err := compiled.ResumeFrom(ctx, store, "run-123", "outline_builder", flowgraph.WithReplayNode())
func (cg *CompiledGraph[S]) ResumeFrom(ctx Context, store checkpoint.Store, runID, nodeID string, opts ...ResumeOption) (S, error) {
	var zero S

	if ctx == nil {
		return zero, ErrNilContext
	}

	return cg.resume(ctx, store, runID, nodeID, opts)
}

func (cg *CompiledGraph[S]) resume(ctx Context, store checkpoint.Store, runID, nodeID string, opts []ResumeOption) (S, error) {
	var zero S

	cfg := resumeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	data, err := store.Load(runID, nodeID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return zero, fmt.Errorf("%w: %s at node %s", ErrNoCheckpoints, runID, nodeID)
		}
		return zero, fmt.Errorf("load checkpoint: %w", err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cp.Version != checkpoint.Version {
		return zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cfg.stateOverride != nil {
		if typed, ok := cfg.stateOverride(state).(S); ok {
			state = typed
		}
	}

	if cfg.validateState != nil {
		if err := cfg.validateState(state); err != nil {
			return state, fmt.Errorf("state validation failed: %w", err)
		}
	}

	visits := make(map[string]int, len(cp.Visits))
	for id, n := range cp.Visits {
		visits[id] = n
	}

	startNode := cp.NextNode
	if cfg.replayNode {
		startNode = cp.NodeID
		if visits[startNode] > 0 {
			visits[startNode]--
		}
	}

	if startNode != END && !cg.HasNode(startNode) {
		return zero, fmt.Errorf("%w: %s", ErrInvalidResumeNode, startNode)
	}

	runCfg := defaultRunConfig()
	for _, opt := range cfg.runOpts {
		opt(&runCfg)
	}
	runCfg.checkpointStore = store
	runCfg.runID = runID
	runCfg.sequence = cp.Sequence

	return cg.execute(ctx, state, startNode, visits, &runCfg)
}
