// Package dag builds the must-run-before graph over discovered stations
// and computes a deterministic execution order.
package dag

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/strayline/loom/internal/station"
)

// CycleError reports a back-edge found during ordering. The named ID is on
// the cycle; configuration problems like this abort before any execution.
type CycleError struct {
	ID station.ID
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dag: dependency cycle through station %s", e.ID)
}

// Graph is the directed dependency graph over enabled stations, edges
// pointing from a station to each of its dependencies.
type Graph struct {
	nodes map[station.ID][]station.ID
}

// Build constructs the graph from descriptors. Disabled stations are
// excluded entirely; edges referencing an unknown or disabled ID are soft
// dependencies and are dropped with a warning rather than failing the
// pipeline. Hard dependencies belong to the business layer, not the
// scheduler.
func Build(descriptors map[station.ID]station.Descriptor, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	nodes := make(map[station.ID][]station.ID, len(descriptors))
	for id, desc := range descriptors {
		if !desc.Enabled {
			continue
		}
		nodes[id] = nil
	}
	for id := range nodes {
		desc := descriptors[id]
		deps := make([]station.ID, 0, len(desc.DependsOn))
		for _, dep := range desc.DependsOn {
			if _, ok := nodes[dep]; !ok {
				logger.Warn("dropping unresolved station dependency",
					"station", id.String(), "dependency", dep.String())
				continue
			}
			deps = append(deps, dep)
		}
		sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
		nodes[id] = deps
	}
	return &Graph{nodes: nodes}
}

// Dependencies returns the retained dependency IDs of a node, ascending.
func (g *Graph) Dependencies(id station.ID) []station.ID {
	deps := g.nodes[id]
	out := make([]station.ID, len(deps))
	copy(out, deps)
	return out
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Order computes a topological execution order: for every retained edge,
// the dependency appears before its dependent. The traversal is depth-first
// post-order with an in-progress marker set for back-edge detection;
// unvisited nodes are taken in ascending ID order, so the same input always
// yields the same plan.
func (g *Graph) Order() ([]station.ID, error) {
	ids := make([]station.ID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	visited := make(map[station.ID]bool, len(ids))
	inProgress := make(map[station.ID]bool)
	order := make([]station.ID, 0, len(ids))

	var visit func(id station.ID) error
	visit = func(id station.ID) error {
		if visited[id] {
			return nil
		}
		if inProgress[id] {
			return &CycleError{ID: id}
		}
		inProgress[id] = true
		for _, dep := range g.nodes[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(inProgress, id)
		visited[id] = true
		order = append(order, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}
