package flowgraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for a stage graph.
// Chain AddNode, AddEdge, AddConditionalEdge and SetEntry calls, then call
// Compile to obtain an immutable CompiledGraph.
//
// Graph is NOT thread-safe during building. Build it from one goroutine;
// the CompiledGraph it produces can be shared freely.
//
// Example:
//
//	graph := flowgraph.NewGraph[Doc]().
//	    AddNode("load", load).
//	    AddNode("review", review).
//	    AddEdge("load", "review").
//	    AddConditionalEdge("review", func(ctx flowgraph.Context, d Doc) string {
//	        if d.Approved {
//	            return flowgraph.END
//	        }
//	        return "load"
//	    }).
//	    SetEntry("load")
type Graph[S any] struct {
	mu               sync.RWMutex
	nodes            map[string]NodeFunc[S]
	order            []string
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	routeTargets     map[string][]string
	entryPoint       string
}

// NewGraph creates a new graph builder for state type S.
func NewGraph[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:            make(map[string]NodeFunc[S]),
		edges:            make(map[string][]string),
		conditionalEdges: make(map[string]RouterFunc[S]),
		routeTargets:     make(map[string][]string),
	}
}

// AddNode adds a named node to the graph.
//
// Panics if id is empty, is the reserved word END (case-insensitive),
// contains whitespace, is already registered, or if fn is nil.
// These are programming errors in graph construction, not runtime failures.
func (g *Graph[S]) AddNode(id string, fn NodeFunc[S]) *Graph[S] {
	if id == "" {
		panic("flowgraph: node ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == END {
		panic("flowgraph: node ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("flowgraph: node ID cannot contain whitespace")
	}

	if fn == nil {
		panic("flowgraph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("flowgraph: duplicate node ID: %s", id))
	}

	g.nodes[id] = fn
	g.order = append(g.order, id)
	return g
}

// AddEdge adds a fixed edge: from always proceeds to to.
// The target can be a node ID or END. Validation happens in Compile,
// so edges may be declared before their nodes.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge attaches a router to from. The router inspects the
// state after from executes and names the successor.
//
// targets optionally declares every node the router may return. Declared
// targets are checked at compile time and used for reachability analysis;
// at run time a router returning an undeclared target fails with a
// RouterError. With no targets declared, any node (or END) is accepted.
//
// A conditional edge takes precedence over fixed edges from the same node.
func (g *Graph[S]) AddConditionalEdge(from string, router RouterFunc[S], targets ...string) *Graph[S] {
	if router == nil {
		panic("flowgraph: router function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.conditionalEdges[from] = router
	if len(targets) > 0 {
		g.routeTargets[from] = append([]string(nil), targets...)
	}
	return g
}

// SetEntry designates the entry node. Validated at compile time.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}
