package flowgraph

import (
	"errors"
	"fmt"

	fgerrors "github.com/randalmurphal/brdflow/pkg/flowgraph/errors"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrAmbiguousEdge indicates a node declares more than one fixed edge.
	ErrAmbiguousEdge = errors.New("multiple fixed edges from node")

	// ErrNoPathToEnd indicates no path exists from the entry point to END.
	ErrNoPathToEnd = errors.New("no path to END from entry")
)

// Sentinel errors for execution.
var (
	// ErrMaxIterations indicates the run exceeded its total node budget.
	ErrMaxIterations = errors.New("exceeded maximum iterations")

	// ErrLoopLimitExceeded indicates a cycle re-entered its entry node more
	// often than its configured bound.
	ErrLoopLimitExceeded = errors.New("loop limit exceeded")

	// ErrNilContext indicates Run() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidRouterResult indicates a router function returned an empty string.
	ErrInvalidRouterResult = errors.New("router returned empty string")

	// ErrRouterTargetNotFound indicates a router returned an unknown or undeclared node.
	ErrRouterTargetNotFound = errors.New("router returned unknown node")
)

// Sentinel errors for checkpointing and resume.
var (
	// ErrRunIDRequired indicates checkpointing was enabled without a run ID.
	ErrRunIDRequired = errors.New("run ID required for checkpointing")

	// ErrDeserializeState indicates state deserialization failed.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrNoCheckpoints indicates no checkpoints exist for the run.
	ErrNoCheckpoints = errors.New("no checkpoints found for run")

	// ErrInvalidResumeNode indicates the resume node doesn't exist in the graph.
	ErrInvalidResumeNode = errors.New("invalid resume node")

	// ErrCheckpointVersionMismatch indicates the checkpoint version is incompatible.
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")
)

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// NodeID is the node after which checkpointing failed.
	NodeID string
	// Op is the operation that failed ("serialize", "marshal", "save").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at node %s: %v", e.Op, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error returned by a stage.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed ("execute", "lookup", "routing").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised inside a stage.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError records where the run stopped when its context ended.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// State is the state at cancellation (type-assert to the run's state type).
	State any
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError wraps errors from conditional edge routing.
type RouterError struct {
	// FromNode is the node with the conditional edge.
	FromNode string
	// Returned is the value the router returned.
	Returned string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// MaxIterationsError is returned when the run executes more nodes than the
// configured total budget.
type MaxIterationsError struct {
	// Max is the configured iteration limit.
	Max int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
	// State is the state at termination.
	State any
}

// Error implements the error interface.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrMaxIterations for errors.Is support.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}

// LoopLimitError is returned when a cycle re-enters its entry node more
// times than allowed. It signals an operational problem (a human never
// resolving a gated loop) rather than bad data.
type LoopLimitError struct {
	// NodeID is the cycle entry node whose bound was exceeded.
	NodeID string
	// Limit is the configured number of permitted re-entries.
	Limit int
	// Reentries is the re-entry count that tripped the bound.
	Reentries int
	// State is the state at termination.
	State any
}

// Error implements the error interface.
func (e *LoopLimitError) Error() string {
	return fmt.Sprintf("loop limit exceeded at node %s: %d re-entries (limit %d)", e.NodeID, e.Reentries, e.Limit)
}

// Unwrap returns ErrLoopLimitExceeded for errors.Is support.
func (e *LoopLimitError) Unwrap() error {
	return ErrLoopLimitExceeded
}

// Category reports that a person has to intervene.
func (e *LoopLimitError) Category() fgerrors.Category {
	return fgerrors.CategoryHumanRequired
}
