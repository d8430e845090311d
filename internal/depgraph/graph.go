// Package depgraph validates that catalog tools' declared predecessors form
// an acyclic graph and answers readiness questions for the scheduler: which
// tools have no predecessors, what a tool's predecessors are, and which
// tools depend on a given tool. It computes no topological order; Order
// reports catalog declaration order.
//
// Grounded on turborepo's internal/core/scheduler.go generateTaskGraph
// (traversal queue, visited set, dag.Connect), generalized from a
// package-task graph to a flat tool-predecessor graph — this domain has no
// per-package topology, only per-tool predecessor edges.
package depgraph

import (
	"fmt"

	"github.com/pyr-sh/dag"
	"github.com/reconctl/reconctl/internal/catalog"
)

// Graph is the validated, acyclic predecessor graph over a Catalog's tools.
type Graph struct {
	g           *dag.AcyclicGraph
	dependents  map[string][]string
	predecessors map[string][]string
	order       []string
}

// Build constructs a Graph from cat, returning an error if the catalog
// declares a cycle. Catalog-level validation (unique names, resolvable
// predecessor names, compilable regexes) is assumed to have already run via
// catalog.Catalog.Validate.
func Build(cat catalog.Catalog) (*Graph, error) {
	g := &dag.AcyclicGraph{}
	for _, d := range cat.Tools {
		g.Add(d.Name)
	}
	dependents := make(map[string][]string, len(cat.Tools))
	predecessors := make(map[string][]string, len(cat.Tools))
	order := make([]string, 0, len(cat.Tools))
	for _, d := range cat.Tools {
		order = append(order, d.Name)
		predecessors[d.Name] = d.Predecessors
		for _, pred := range d.Predecessors {
			// d.Name depends on pred: edge points from dependent to
			// predecessor, matching turborepo's dag.Connect(toTaskId, fromTaskId)
			// convention.
			g.Connect(dag.BasicEdge(d.Name, pred))
			dependents[pred] = append(dependents[pred], d.Name)
		}
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("depgraph: cycle detected: %w", err)
	}
	return &Graph{g: g, dependents: dependents, predecessors: predecessors, order: order}, nil
}

// Order returns tool names in catalog declaration order, used by the
// scheduler as its stable tie-break among equally-ready tools.
func (gr *Graph) Order() []string {
	out := make([]string, len(gr.order))
	copy(out, gr.order)
	return out
}

// Roots returns the tools with no predecessors: always ready at run start.
func (gr *Graph) Roots() []string {
	var roots []string
	for _, name := range gr.order {
		if len(gr.predecessors[name]) == 0 {
			roots = append(roots, name)
		}
	}
	return roots
}

// Predecessors returns the names a tool declared as predecessors, in
// catalog declaration order.
func (gr *Graph) Predecessors(name string) []string {
	return gr.predecessors[name]
}

// Dependents returns the tools that declared name as a predecessor.
func (gr *Graph) Dependents(name string) []string {
	return gr.dependents[name]
}
