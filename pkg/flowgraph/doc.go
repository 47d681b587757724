/*
Package flowgraph runs typed stage graphs: a fixed set of stages over one
shared state value, joined by fixed and conditional edges, with bounded
cycles and optional checkpointing.

# Basic Usage

	type Doc struct {
	    Sources []string
	    Summary string
	}

	func summarize(ctx flowgraph.Context, d Doc) (Doc, error) {
	    d.Summary = strings.Join(d.Sources, "\n")
	    return d, nil
	}

	compiled, err := flowgraph.NewGraph[Doc]().
	    AddNode("summarize", summarize).
	    AddEdge("summarize", flowgraph.END).
	    SetEntry("summarize").
	    Compile()
	if err != nil {
	    log.Fatal(err)
	}

	result, err := compiled.Run(flowgraph.NewContext(context.Background()), Doc{})

# Conditional Edges

A router inspects the state after its node and names the successor.
Declaring the targets lets Compile check them and lets Run reject anything
else:

	graph.AddConditionalEdge("review", func(ctx flowgraph.Context, d Doc) string {
	    if d.Approved {
	        return "persist"
	    }
	    return "feedback"
	}, "persist", "feedback")

A conditional edge takes precedence over a fixed edge from the same node.

# Loops

Cycles are formed by routing back to an earlier node. Every run has a total
node budget (WithMaxIterations, default 1000). Individual cycles are bounded
by the number of times their entry node may be re-entered:

	compiled.Run(ctx, doc,
	    flowgraph.WithLoopLimit("fact_extractor", 3),
	    flowgraph.WithLoopLimit("outline_builder", 5))

Exceeding a loop limit fails the run with *LoopLimitError, which matches
ErrLoopLimitExceeded and nothing else.

# Checkpointing

With a checkpoint.Store the executor saves state, the next node and the
per-node visit counters after every node. Resume and ResumeFrom continue an
interrupted run; loop limits keep counting across the interruption.

	store, _ := checkpoint.NewSQLiteStore("runs.db")
	_, err := compiled.Run(ctx, doc,
	    flowgraph.WithCheckpointing(store),
	    flowgraph.WithRunID("run-123"))
	// later
	result, err := compiled.Resume(ctx, store, "run-123")

# Errors

Stage errors arrive wrapped in *NodeError and panics in *PanicError.
Routing failures are *RouterError, context expiry *CancellationError, and
exhausting the node budget *MaxIterationsError. All support errors.Is and
errors.As.

# Observability

Context.Logger returns a slog logger enriched with run_id, node_id and
visit. WithMetrics and WithTracing report through OpenTelemetry; see the
observability package.
*/
package flowgraph
