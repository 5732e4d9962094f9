package dag

import (
	"errors"
	"fmt"
	"slices"
)

// ErrCycle is wrapped by DetectCycles when the graph is not acyclic.
var ErrCycle = errors.New("cycle detected")

// New creates and returns an initialized, empty Graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		nodes: make(map[K]*vertex[K]),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph[K]) AddNode(id K) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &vertex[K]{id: id}
	g.order = append(g.order, id)
}

// Has reports whether id is in the graph.
func (g *Graph[K]) Has(id K) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph[K]) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.order)
}

// Nodes returns every key in insertion order.
func (g *Graph[K]) Nodes() []K {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return slices.Clone(g.order)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. Adding the same
// edge twice is a no-op. An error is returned if either node does not exist
// or if the edge would create a self-reference.
func (g *Graph[K]) AddEdge(fromID, toID K) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %v -> %v", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %v", fromID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %v", toID)
	}

	if slices.Contains(toNode.deps, fromNode) {
		return nil
	}
	toNode.deps = append(toNode.deps, fromNode)
	fromNode.dependents = append(fromNode.dependents, toNode)
	return nil
}

// Dependencies returns the IDs the given node depends on.
func (g *Graph[K]) Dependencies(id K) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}
	return keys(n.deps), nil
}

// Dependents returns the IDs that depend on the given node.
func (g *Graph[K]) Dependents(id K) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}
	return keys(n.dependents), nil
}

// Roots returns the nodes without dependencies, in insertion order.
func (g *Graph[K]) Roots() []K {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var roots []K
	for _, id := range g.order {
		if len(g.nodes[id].deps) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

func keys[K comparable](vs []*vertex[K]) []K {
	out := make([]K, len(vs))
	for i, v := range vs {
		out[i] = v.id
	}
	return out
}

// DetectCycles checks the graph for any cycles. It returns an error
// wrapping ErrCycle that names the first node found on a cycle.
func (g *Graph[K]) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Classic depth-first search with three sets of nodes:
	// permanent: nodes that have been fully visited and are not part of a cycle.
	// temporary: nodes currently in the recursion stack for the current traversal.
	// unvisited: all other nodes.
	permanent := make(map[K]bool)
	temporary := make(map[K]bool)

	var visit func(n *vertex[K]) error
	visit = func(n *vertex[K]) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return fmt.Errorf("%w involving node '%v'", ErrCycle, n.id)
		}

		temporary[n.id] = true
		for _, dependent := range n.dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	for _, id := range g.order {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns every node after all of its dependencies. Ties
// are broken by insertion order. It fails on a cyclic graph.
func (g *Graph[K]) TopologicalOrder() ([]K, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	indegree := make(map[K]int, len(g.nodes))
	for _, id := range g.order {
		indegree[id] = len(g.nodes[id].deps)
	}

	out := make([]K, 0, len(g.order))
	placed := make(map[K]bool, len(g.order))
	for len(out) < len(g.order) {
		for _, id := range g.order {
			if placed[id] || indegree[id] != 0 {
				continue
			}
			placed[id] = true
			out = append(out, id)
			for _, d := range g.nodes[id].dependents {
				indegree[d.id]--
			}
			break
		}
	}
	return out, nil
}
