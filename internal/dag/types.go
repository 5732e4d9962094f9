package dag

import "sync"

// Graph is a directed graph over comparable keys. Iteration always follows
// insertion order, so scheduling and rendering are deterministic.
// All operations on the graph are concurrency-safe.
type Graph[K comparable] struct {
	// mutex protects the nodes map and order slice during concurrent access.
	mutex sync.RWMutex
	nodes map[K]*vertex[K]
	order []K
}

// vertex is un-exported to enforce interaction with the graph via keys,
// not by direct struct manipulation.
type vertex[K comparable] struct {
	id K
	// deps are predecessors; dependents are successors. Both keep insertion
	// order and hold each neighbour once.
	deps       []*vertex[K]
	dependents []*vertex[K]
}
