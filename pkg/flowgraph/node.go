package flowgraph

// END is the terminal node identifier.
// Use it as an edge target to finish the run.
const END = "__end__"

// NodeFunc is the signature of every stage.
//
// The stage receives the state by value and returns the updated value.
// The executor owns the state between stages; a stage must not retain
// references into it after returning, and must rebuild (not append in place
// to) any slice it replaces so earlier snapshots stay intact.
//
// Stages must be safe to re-run: loops re-invoke earlier stages with the
// updated state.
//
// Example:
//
//	func clearDrafts(ctx flowgraph.Context, d Doc) (Doc, error) {
//	    d.Drafts = nil
//	    return d, nil
//	}
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// RouterFunc picks the next node for a conditional edge.
// It must be a pure function of the state: the same state yields the same
// successor. It returns a node ID or END; an empty string or an unknown ID
// fails the run with a RouterError.
type RouterFunc[S any] func(ctx Context, state S) string
