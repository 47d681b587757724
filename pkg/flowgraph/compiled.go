package flowgraph

// CompiledGraph is an immutable, executable graph created by Graph.Compile.
//
// CompiledGraph is safe for concurrent Run calls; each run owns its own
// state and loop counters.
type CompiledGraph[S any] struct {
	nodes        map[string]NodeFunc[S]
	order        []string
	edges        map[string]string
	routers      map[string]RouterFunc[S]
	routeTargets map[string]map[string]bool
	predecessors map[string][]string
	entryPoint   string
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph[S]) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node identifiers in registration order.
func (cg *CompiledGraph[S]) NodeIDs() []string {
	return append([]string(nil), cg.order...)
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph[S]) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successor returns the fixed-edge target of id, if any.
// Conditional successors are decided at run time and are not reported.
func (cg *CompiledGraph[S]) Successor(id string) (string, bool) {
	to, ok := cg.edges[id]
	return to, ok
}

// RouteTargets returns the declared targets of id's conditional edge.
func (cg *CompiledGraph[S]) RouteTargets(id string) []string {
	set := cg.routeTargets[id]
	if len(set) == 0 {
		return nil
	}
	targets := make([]string, 0, len(set))
	for _, candidate := range append([]string{END}, cg.order...) {
		if set[candidate] {
			targets = append(targets, candidate)
		}
	}
	return targets
}

// Predecessors returns the nodes with a fixed edge or declared route to id.
func (cg *CompiledGraph[S]) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// IsConditional returns true if the node has a conditional edge.
func (cg *CompiledGraph[S]) IsConditional(id string) bool {
	_, ok := cg.routers[id]
	return ok
}
