package dag

import "sync"

// Graph is a collection of nodes and their dependencies.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects nodes and order.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[string]*node
	// order records insertion order so traversals are deterministic.
	order []string
}

// node is un-exported so the graph is only driven through string IDs.
type node struct {
	id string
	// deps holds the nodes this node depends on (predecessors).
	deps map[string]*node
	// dependents holds the nodes that depend on this node (successors).
	dependents map[string]*node
	// seq is the insertion index, used to sort neighbours.
	seq int
}
