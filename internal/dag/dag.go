package dag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrCycle is returned when the graph contains a cycle.
var ErrCycle = errors.New("cycle detected")

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph) AddNode(id string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.addNode(id)
}

func (g *Graph) addNode(id string) *node {
	if n, ok := g.nodes[id]; ok {
		return n
	}
	n := &node{
		id:         id,
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
		seq:        len(g.order),
	}
	g.nodes[id] = n
	g.order = append(g.order, id)
	return n
}

// HasNode reports whether id is part of the graph.
func (g *Graph) HasNode(id string) bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.nodes)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist. A self-referential edge is reported as a
// cycle.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("%w: self-referential edge %s -> %s", ErrCycle, fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode

	return nil
}

// Connect adds both nodes if needed and then the edge between them.
func (g *Graph) Connect(fromID, toID string) error {
	g.mutex.Lock()
	g.addNode(fromID)
	g.addNode(toID)
	g.mutex.Unlock()
	return g.AddEdge(fromID, toID)
}

// Dependencies returns the IDs the given node depends on, in insertion order.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(sorted(n.deps)), nil
}

// Dependents returns the IDs that depend on the given node, in insertion order.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", id)
	}
	return ids(sorted(n.dependents)), nil
}

// DetectCycles checks the graph for any cycles. The returned error wraps
// ErrCycle and names the nodes on the first cycle found, e.g. `a -> b -> a`.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Classic depth-first search with three sets of nodes:
	// permanent: fully visited and not part of a cycle.
	// temporary: on the current recursion stack.
	// unvisited: all other nodes.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			return fmt.Errorf("%w: %s", ErrCycle, cyclePath(stack, n.id))
		}

		temporary[n.id] = true
		stack = append(stack, n.id)

		for _, dependent := range sorted(n.dependents) {
			if err := visit(dependent); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
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

// TopologicalSort returns every node so that each one comes after all of its
// dependencies. Ties are broken by insertion order.
func (g *Graph) TopologicalSort() ([]string, error) {
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	g.mutex.RLock()
	defer g.mutex.RUnlock()

	remaining := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		remaining[id] = len(n.deps)
	}

	out := make([]string, 0, len(g.nodes))
	done := make(map[string]bool, len(g.nodes))
	for len(out) < len(g.nodes) {
		for _, id := range g.order {
			if done[id] || remaining[id] > 0 {
				continue
			}
			done[id] = true
			out = append(out, id)
			for _, d := range g.nodes[id].dependents {
				remaining[d.id]--
			}
			break
		}
	}
	return out, nil
}

func cyclePath(stack []string, back string) string {
	start := 0
	for i, id := range stack {
		if id == back {
			start = i
			break
		}
	}
	parts := append(append([]string{}, stack[start:]...), back)
	return strings.Join(parts, " -> ")
}

func sorted(m map[string]*node) []*node {
	out := make([]*node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func ids(nodes []*node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.id
	}
	return out
}
