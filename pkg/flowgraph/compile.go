package flowgraph

import (
	"errors"
	"fmt"
	"log/slog"
)

// Compile validates the graph and creates an executable CompiledGraph.
// All validation failures are joined into one error.
//
// Validation checks:
//  1. Entry point must be set and reference an existing node
//  2. Edge sources and targets must reference existing nodes (or END)
//  3. A node may have at most one fixed edge (the executor is sequential)
//  4. Declared router targets must exist
//  5. END must be reachable from the entry point
//
// Nodes unreachable from the entry are logged as warnings only.
func (g *Graph[S]) Compile() (*CompiledGraph[S], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for from, targets := range g.edges {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		if len(targets) > 1 {
			errs = append(errs, fmt.Errorf("%w: node '%s' has %d fixed edges", ErrAmbiguousEdge, from, len(targets)))
		}
		for _, to := range targets {
			if !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for from := range g.conditionalEdges {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: conditional edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, to := range g.routeTargets[from] {
			if !g.isTarget(to) {
				errs = append(errs, fmt.Errorf("%w: route target '%s' from '%s' does not exist", ErrNodeNotFound, to, from))
			}
		}
	}

	if _, exists := g.nodes[g.entryPoint]; exists && !g.hasPathToEnd() {
		errs = append(errs, ErrNoPathToEnd)
	}

	g.warnUnreachableNodes()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

func (g *Graph[S]) isTarget(id string) bool {
	if id == END {
		return true
	}
	_, exists := g.nodes[id]
	return exists
}

// successorsOf returns every node the graph can move to from id.
// Routers without declared targets may reach anything, END included.
func (g *Graph[S]) successorsOf(id string) []string {
	if _, conditional := g.conditionalEdges[id]; conditional {
		if declared, ok := g.routeTargets[id]; ok {
			return declared
		}
		all := append([]string{END}, g.order...)
		return all
	}
	return g.edges[id]
}

// hasPathToEnd reports whether END is reachable from the entry point.
func (g *Graph[S]) hasPathToEnd() bool {
	return g.findReachableNodes()[END]
}

func (g *Graph[S]) warnUnreachableNodes() {
	if g.entryPoint == "" {
		return
	}

	reachable := g.findReachableNodes()
	for _, nodeID := range g.order {
		if !reachable[nodeID] {
			slog.Warn("node is unreachable from entry", "node_id", nodeID)
		}
	}
}

// findReachableNodes returns the set of nodes (and possibly END) reachable
// from the entry point by breadth-first search.
func (g *Graph[S]) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)
	if g.entryPoint == "" {
		return reachable
	}

	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == END {
			continue
		}
		for _, next := range g.successorsOf(current) {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	return reachable
}

// buildCompiledGraph copies the builder state into an immutable CompiledGraph.
func (g *Graph[S]) buildCompiledGraph() *CompiledGraph[S] {
	nodes := make(map[string]NodeFunc[S], len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[string]string, len(g.edges))
	predecessors := make(map[string][]string)
	for from, targets := range g.edges {
		if len(targets) == 0 {
			continue
		}
		edges[from] = targets[0]
		if targets[0] != END {
			predecessors[targets[0]] = append(predecessors[targets[0]], from)
		}
	}

	routers := make(map[string]RouterFunc[S], len(g.conditionalEdges))
	routeTargets := make(map[string]map[string]bool, len(g.routeTargets))
	for from, router := range g.conditionalEdges {
		routers[from] = router
		if declared, ok := g.routeTargets[from]; ok {
			set := make(map[string]bool, len(declared))
			for _, to := range declared {
				set[to] = true
				if to != END {
					predecessors[to] = append(predecessors[to], from)
				}
			}
			routeTargets[from] = set
		}
	}

	return &CompiledGraph[S]{
		nodes:        nodes,
		order:        append([]string(nil), g.order...),
		edges:        edges,
		routers:      routers,
		routeTargets: routeTargets,
		predecessors: predecessors,
		entryPoint:   g.entryPoint,
	}
}
