package flowgraph

import (
	"context"
)

// Counter is a minimal state for counting executions.
type Counter struct {
	Value int
}

// Doc is a document-shaped state used by branching and loop tests.
type Doc struct {
	Trail    []string
	Gaps     int
	Force    bool
	Approved bool
	Rounds   int
	Output   string
}

// increment is a node that increments the counter.
func increment(ctx Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

// passthrough returns the state unchanged.
func passthrough[S any](ctx Context, s S) (S, error) {
	return s, nil
}

// record returns a node that appends its name to the trail.
func record(name string) NodeFunc[Doc] {
	return func(ctx Context, d Doc) (Doc, error) {
		trail := make([]string, len(d.Trail), len(d.Trail)+1)
		copy(trail, d.Trail)
		d.Trail = append(trail, name)
		return d, nil
	}
}

// makeFailingNode creates a node that returns the given error.
func makeFailingNode(err error) NodeFunc[Doc] {
	return func(ctx Context, d Doc) (Doc, error) {
		return d, err
	}
}

// makePanicNode creates a node that panics with the given value.
func makePanicNode(value any) NodeFunc[Doc] {
	return func(ctx Context, d Doc) (Doc, error) {
		panic(value)
	}
}

// testCtx creates a simple test context.
func testCtx() Context {
	return NewContext(context.Background())
}
