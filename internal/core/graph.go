package core

import (
	"sort"
	"strings"

	"github.com/mason-iac/mason/internal/constraint"
)

// graph is the dependency graph over a stack's resources. An edge runs from
// a resource to each resource it references.
type graph struct {
	edges map[string][]string
	order []string // topological order, dependencies first
}

// buildGraph constructs the graph and computes a deterministic topological
// order. It fails with CyclicDependency naming the offending cycle.
func buildGraph(resources map[string]*Resource) (*graph, constraint.Violations) {
	g := &graph{edges: make(map[string][]string, len(resources))}

	ids := make([]string, 0, len(resources))
	for id := range resources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var deps []string
		for _, dep := range resources[id].DependsOn() {
			if _, ok := resources[dep]; ok {
				deps = append(deps, dep)
			}
		}
		g.edges[id] = deps
	}

	// Three-color depth-first walk: white = unvisited, grey = on the current
	// path, black = done. A grey hit closes a cycle; the grey path names it.
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(ids))
	var order []string
	var path []string
	var violations constraint.Violations

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		path = append(path, id)
		for _, dep := range g.edges[id] {
			switch color[dep] {
			case grey:
				violations.Add(&constraint.ValidationError{
					Kind:       constraint.CyclicDependency,
					ResourceID: dep,
					Reason:     "dependency cycle: " + formatCycle(path, dep),
				})
				return false
			case white:
				if !visit(dep) {
					return false
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		order = append(order, id)
		return true
	}

	for _, id := range ids {
		if color[id] == white {
			if !visit(id) {
				return nil, violations
			}
		}
	}

	g.order = order
	return g, nil
}

// formatCycle renders the portion of the walk path from the repeated node on,
// closing the loop: "a -> b -> c -> a".
func formatCycle(path []string, repeat string) string {
	start := 0
	for i, id := range path {
		if id == repeat {
			start = i
			break
		}
	}
	cycle := append(append([]string{}, path[start:]...), repeat)
	return strings.Join(cycle, " -> ")
}

// deployOrder returns resources dependencies-first.
func (g *graph) deployOrder() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// destroyOrder returns resources dependents-first, safe for deletion.
func (g *graph) destroyOrder() []string {
	out := make([]string, len(g.order))
	for i, id := range g.order {
		out[len(g.order)-1-i] = id
	}
	return out
}

// dependencies returns the outgoing edges of a node.
func (g *graph) dependencies(id string) []string {
	return g.edges[id]
}
