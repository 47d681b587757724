package flowgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/brdflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/observability"
	"go.opentelemetry.io/otel/trace"
)

// Run executes the graph from the entry node with the given initial state.
//
// On success it returns the state produced by the last node before END.
// On error it returns the state at the point of failure, which is useful for
// inspection; callers must not persist it as a finished result.
//
// Execution flow:
//  1. Start at the entry node
//  2. Check the total iteration budget and the node's loop limit
//  3. Check for cancellation
//  4. Execute the node
//  5. Resolve the next node through its conditional or fixed edge
//  6. Checkpoint (if enabled) and repeat until END
func (cg *CompiledGraph[S]) Run(ctx Context, state S, opts ...RunOption) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.checkpointStore != nil && cfg.runID == "" {
		return state, ErrRunIDRequired
	}

	return cg.execute(ctx, state, cg.entryPoint, nil, &cfg)
}

// execute runs the graph from startNode with run-level observability.
// visits seeds the per-node visit counters when resuming.
func (cg *CompiledGraph[S]) execute(ctx Context, state S, startNode string, visits map[string]int, cfg *runConfig) (result S, runErr error) {
	if cfg.logger == nil {
		cfg.logger = ctx.Logger()
	}

	runID := cfg.runID
	if runID == "" {
		runID = ctx.RunID()
	}

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, runID)

	var tracingCtx context.Context = ctx
	if cfg.tracingEnabled {
		var runSpan trace.Span
		tracingCtx, runSpan = cfg.spans.StartRunSpan(ctx, "brdflow", runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	result, nodeCount, runErr := cg.runLoop(tracingCtx, ctx, state, startNode, visits, cfg)

	duration := time.Since(startTime)
	cfg.metrics.RecordGraphRun(ctx, runErr == nil, duration)

	if runErr != nil {
		observability.LogRunError(cfg.logger, runID, runErr, float64(duration.Milliseconds()), lastNodeOf(runErr))
	} else {
		observability.LogRunComplete(cfg.logger, runID, float64(duration.Milliseconds()), nodeCount)
	}

	return result, runErr
}

// lastNodeOf extracts the failing node from the executor's error types.
func lastNodeOf(err error) string {
	var (
		nodeErr   *NodeError
		panicErr  *PanicError
		maxErr    *MaxIterationsError
		loopErr   *LoopLimitError
		cancelErr *CancellationError
		routerErr *RouterError
		cpErr     *CheckpointError
	)
	switch {
	case errors.As(err, &loopErr):
		return loopErr.NodeID
	case errors.As(err, &maxErr):
		return maxErr.LastNodeID
	case errors.As(err, &cancelErr):
		return cancelErr.NodeID
	case errors.As(err, &routerErr):
		return routerErr.FromNode
	case errors.As(err, &panicErr):
		return panicErr.NodeID
	case errors.As(err, &cpErr):
		return cpErr.NodeID
	case errors.As(err, &nodeErr):
		return nodeErr.NodeID
	}
	return ""
}

// runLoop is the executor's main loop. It returns the final state and the
// number of nodes that completed successfully.
func (cg *CompiledGraph[S]) runLoop(tracingCtx context.Context, fgCtx Context, state S, startNode string, seed map[string]int, cfg *runConfig) (S, int, error) {
	visits := make(map[string]int, len(cg.nodes))
	for id, n := range seed {
		visits[id] = n
	}

	current := startNode
	prevNode := ""
	iterations := 0
	nodeCount := 0

	for current != END {
		iterations++
		if iterations > cfg.maxIterations {
			return state, nodeCount, &MaxIterationsError{
				Max:        cfg.maxIterations,
				LastNodeID: current,
				State:      state,
			}
		}

		visits[current]++
		visit := visits[current]
		if visit > 1 {
			reentries := visit - 1
			if limit, bounded := cfg.loopLimits[current]; bounded && reentries > limit {
				return state, nodeCount, &LoopLimitError{
					NodeID:    current,
					Limit:     limit,
					Reentries: reentries,
					State:     state,
				}
			}
			observability.LogLoopReentry(cfg.logger, current, reentries)
			cfg.metrics.RecordLoopReentry(fgCtx, current)
		}

		select {
		case <-fgCtx.Done():
			return state, nodeCount, &CancellationError{
				NodeID: current,
				State:  state,
				Cause:  fgCtx.Err(),
			}
		default:
		}

		observability.LogNodeStart(cfg.logger, current)

		nodeTracingCtx := tracingCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeTracingCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, current)
		}

		nodeStart := time.Now()
		nodeCtx := forNode(fgCtx, nodeTracingCtx, current, visit)

		var nodeErr error
		state, nodeErr = cg.executeNode(nodeCtx, current, state)

		nodeDuration := time.Since(nodeStart)
		cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, nodeDuration, nodeErr)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}

		if nodeErr != nil {
			observability.LogNodeError(cfg.logger, current, nodeErr)
			return state, nodeCount, nodeErr
		}
		observability.LogNodeComplete(cfg.logger, current, float64(nodeDuration.Milliseconds()))
		nodeCount++

		next, err := cg.nextNode(nodeCtx, state, current)
		if err != nil {
			return state, nodeCount, err
		}

		if cfg.checkpointStore != nil {
			if err := cg.saveCheckpoint(fgCtx, cfg, current, prevNode, state, next, visits); err != nil {
				return state, nodeCount, err
			}
		}

		prevNode = current
		current = next
	}

	return state, nodeCount, nil
}

// saveCheckpoint persists the state and loop counters after a node.
// Failures are logged unless the run was configured to treat them as fatal.
func (cg *CompiledGraph[S]) saveCheckpoint(ctx Context, cfg *runConfig, nodeID, prevNodeID string, state S, nextNode string, visits map[string]int) error {
	fail := func(op string, err error) error {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{NodeID: nodeID, Op: op, Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, op, err)
		return nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fail("serialize", err)
	}

	cfg.sequence++
	cp := checkpoint.New(cfg.runID, nodeID, cfg.sequence, stateBytes, nextNode).
		WithPrevNode(prevNodeID).
		WithVisits(visits)

	data, err := cp.Marshal()
	if err != nil {
		return fail("marshal", err)
	}

	if err := cfg.checkpointStore.Save(cfg.runID, nodeID, data); err != nil {
		return fail("save", err)
	}

	observability.LogCheckpoint(cfg.logger, nodeID, len(data))
	cfg.metrics.RecordCheckpoint(ctx, nodeID, int64(len(data)))
	return nil
}

// executeNode executes a single node with panic recovery.
func (cg *CompiledGraph[S]) executeNode(ctx Context, nodeID string, state S) (result S, err error) {
	fn, exists := cg.nodes[nodeID]
	if !exists {
		return state, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("node not found: %s", nodeID),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	result, err = fn(ctx, state)
	if err != nil {
		return result, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return result, nil
}

// nextNode resolves the successor of current.
// A conditional edge is consulted first, then the fixed edge.
func (cg *CompiledGraph[S]) nextNode(ctx Context, state S, current string) (string, error) {
	if router, exists := cg.routers[current]; exists {
		next := router(ctx, state)

		if next == "" {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrInvalidRouterResult,
			}
		}

		if declared, ok := cg.routeTargets[current]; ok && !declared[next] {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrRouterTargetNotFound,
			}
		}

		if next != END && !cg.HasNode(next) {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrRouterTargetNotFound,
			}
		}

		return next, nil
	}

	next, ok := cg.edges[current]
	if !ok {
		return "", &NodeError{
			NodeID: current,
			Op:     "routing",
			Err:    fmt.Errorf("no outgoing edge from node %s", current),
		}
	}
	return next, nil
}
