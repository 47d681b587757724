package flowgraph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRun_Linear tests sequential execution to END.
func TestRun_Linear(t *testing.T) {
	compiled, err := NewGraph[Doc]().
		AddNode("load", record("load")).
		AddNode("intake", record("intake")).
		AddNode("persist", record("persist")).
		AddEdge("load", "intake").
		AddEdge("intake", "persist").
		AddEdge("persist", END).
		SetEntry("load").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(testCtx(), Doc{})

	require.NoError(t, err)
	assert.Equal(t, []string{"load", "intake", "persist"}, result.Trail)
}

// TestRun_NilContext tests that a nil context is rejected.
func TestRun_NilContext(t *testing.T) {
	compiled, err := NewGraph[Counter]().AddNode("a", increment).AddEdge("a", END).SetEntry("a").Compile()
	require.NoError(t, err)

	_, err = compiled.Run(nil, Counter{})
	assert.ErrorIs(t, err, ErrNilContext)
}

// TestRun_StateIsolation tests that the caller's value is not mutated.
func TestRun_StateIsolation(t *testing.T) {
	compiled, err := NewGraph[Doc]().AddNode("a", record("a")).AddEdge("a", END).SetEntry("a").Compile()
	require.NoError(t, err)

	initial := Doc{Trail: []string{"seed"}}
	result, err := compiled.Run(testCtx(), initial)

	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, initial.Trail)
	assert.Equal(t, []string{"seed", "a"}, result.Trail)
}

// TestRun_ConditionalBranch tests that routers pick the successor.
func TestRun_ConditionalBranch(t *testing.T) {
	router := func(ctx Context, d Doc) string {
		if d.Gaps == 0 || d.Force {
			return "outline"
		}
		return "facts"
	}

	build := func() *CompiledGraph[Doc] {
		compiled, err := NewGraph[Doc]().
			AddNode("gaps", record("gaps")).
			AddNode("outline", record("outline")).
			AddNode("facts", record("facts")).
			AddConditionalEdge("gaps", router, "outline", "facts").
			AddEdge("outline", END).
			AddEdge("facts", END).
			SetEntry("gaps").
			Compile()
		require.NoError(t, err)
		return compiled
	}

	testCases := []struct {
		name string
		doc  Doc
		want []string
	}{
		{"no gaps", Doc{}, []string{"gaps", "outline"}},
		{"gaps forced", Doc{Gaps: 2, Force: true}, []string{"gaps", "outline"}},
		{"gaps not forced", Doc{Gaps: 2}, []string{"gaps", "facts"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := build().Run(testCtx(), tc.doc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.Trail)
		})
	}
}

// TestRun_ConditionalWinsOverFixedEdge tests edge precedence.
func TestRun_ConditionalWinsOverFixedEdge(t *testing.T) {
	compiled, err := NewGraph[Doc]().
		AddNode("a", record("a")).
		AddNode("b", record("b")).
		AddNode("c", record("c")).
		AddEdge("a", "b").
		AddConditionalEdge("a", func(ctx Context, d Doc) string { return "c" }).
		AddEdge("b", END).
		AddEdge("c", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(testCtx(), Doc{})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, result.Trail)
}

// TestRun_RouterErrors tests run-time router validation.
func TestRun_RouterErrors(t *testing.T) {
	testCases := []struct {
		name    string
		returns string
		targets []string
		want    error
	}{
		{"empty result", "", nil, ErrInvalidRouterResult},
		{"unknown node", "ghost", nil, ErrRouterTargetNotFound},
		{"undeclared node", "b", []string{END}, ErrRouterTargetNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			returns := tc.returns
			compiled, err := NewGraph[Doc]().
				AddNode("a", record("a")).
				AddNode("b", record("b")).
				AddConditionalEdge("a", func(ctx Context, d Doc) string { return returns }, tc.targets...).
				AddEdge("b", END).
				SetEntry("a").
				Compile()
			require.NoError(t, err)

			_, err = compiled.Run(testCtx(), Doc{})

			var routerErr *RouterError
			require.ErrorAs(t, err, &routerErr)
			assert.Equal(t, "a", routerErr.FromNode)
			assert.Equal(t, tc.returns, routerErr.Returned)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

// TestRun_NodeError tests that a stage error fails the run with context.
func TestRun_NodeError(t *testing.T) {
	boom := errors.New("malformed output")
	compiled, err := NewGraph[Doc]().
		AddNode("a", record("a")).
		AddNode("b", makeFailingNode(boom)).
		AddNode("c", record("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(testCtx(), Doc{})

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "b", nodeErr.NodeID)
	assert.Equal(t, "execute", nodeErr.Op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, result.Trail)
}

// TestRun_Panic tests that panics are recovered into PanicError.
func TestRun_Panic(t *testing.T) {
	compiled, err := NewGraph[Doc]().
		AddNode("a", makePanicNode("index out of range")).
		AddEdge("a", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), Doc{})

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "a", panicErr.NodeID)
	assert.Equal(t, "index out of range", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

// TestRun_Cancellation tests that cancellation is checked between nodes.
func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	compiled, err := NewGraph[Doc]().
		AddNode("a", func(c Context, d Doc) (Doc, error) {
			cancel()
			return record("a")(c, d)
		}).
		AddNode("b", record("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(ctx), Doc{})

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "b", cancelErr.NodeID)
	assert.ErrorIs(t, err, context.Canceled)
	state, ok := cancelErr.State.(Doc)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, state.Trail)
}

// TestRun_Deadline tests that deadline expiry is reported as a cancellation.
func TestRun_Deadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	compiled, err := NewGraph[Doc]().
		AddNode("slow", func(c Context, d Doc) (Doc, error) {
			<-c.Done()
			return d, nil
		}).
		AddNode("next", record("next")).
		AddEdge("slow", "next").
		AddEdge("next", END).
		SetEntry("slow").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(NewContext(ctx), Doc{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestRun_MaxIterations tests the global execution budget.
func TestRun_MaxIterations(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("spin", increment).
		AddConditionalEdge("spin", func(ctx Context, s Counter) string { return "spin" }).
		SetEntry("spin").
		Compile()
	require.NoError(t, err)

	result, err := compiled.Run(testCtx(), Counter{}, WithMaxIterations(10))

	var maxErr *MaxIterationsError
	require.ErrorAs(t, err, &maxErr)
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 10, maxErr.Max)
	assert.Equal(t, "spin", maxErr.LastNodeID)
	assert.Equal(t, 10, result.Value)
}

// TestRun_ContextMetadata tests the per-node context handed to stages.
func TestRun_ContextMetadata(t *testing.T) {
	type seen struct {
		node  string
		visit int
		runID string
	}
	var calls []seen

	observe := func(ctx Context, s Counter) (Counter, error) {
		calls = append(calls, seen{ctx.NodeID(), ctx.Visit(), ctx.RunID()})
		assert.NotNil(t, ctx.Logger())
		s.Value++
		return s, nil
	}

	compiled, err := NewGraph[Counter]().
		AddNode("a", observe).
		AddNode("b", observe).
		AddEdge("a", "b").
		AddConditionalEdge("b", func(ctx Context, s Counter) string {
			if s.Value < 4 {
				return "a"
			}
			return END
		}).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	ctx := NewContext(context.Background(), WithContextRunID("run-42"))
	_, err = compiled.Run(ctx, Counter{})
	require.NoError(t, err)

	assert.Equal(t, []seen{
		{"a", 1, "run-42"},
		{"b", 1, "run-42"},
		{"a", 2, "run-42"},
		{"b", 2, "run-42"},
	}, calls)
}

// TestRun_ConcurrentRuns tests that one compiled graph serves parallel runs.
func TestRun_ConcurrentRuns(t *testing.T) {
	compiled, err := NewGraph[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile()
	require.NoError(t, err)

	const runs = 20
	results := make(chan int, runs)
	for i := 0; i < runs; i++ {
		go func(start int) {
			out, err := compiled.Run(testCtx(), Counter{Value: start}, WithLoopLimit("a", 0))
			if err != nil {
				results <- -1
				return
			}
			results <- out.Value - start
		}(i * 100)
	}

	for i := 0; i < runs; i++ {
		assert.Equal(t, 2, <-results)
	}
}
