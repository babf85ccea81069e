package sequence

import "strings"

// Op is the operator of an expression node.
type Op int

const (
	// OpRef is a leaf referencing a module or sequence by label.
	OpRef Op = iota
	// OpAnd is the sequential AND, written `*`.
	OpAnd
	// OpAlso is the "also run" union, written `+`.
	OpAlso
)

// Node is one node of a composition expression.
type Node struct {
	Op       Op
	Label    string
	Invert   bool
	Children []*Node
}

// Ref references a module or sequence.
func Ref(label string) *Node { return &Node{Op: OpRef, Label: label} }

// Not references a filter whose decision is inverted.
func Not(label string) *Node { return &Node{Op: OpRef, Label: label, Invert: true} }

// And combines nodes with the sequential AND.
func And(nodes ...*Node) *Node { return combine(OpAnd, nodes) }

// Also combines nodes with the "also run" operator.
func Also(nodes ...*Node) *Node { return combine(OpAlso, nodes) }

// Refs is shorthand for And over plain references.
func Refs(labels ...string) *Node {
	nodes := make([]*Node, len(labels))
	for i, l := range labels {
		nodes[i] = Ref(l)
	}
	return And(nodes...)
}

// combine flattens nested nodes of the same operator and drops nils. A single
// remaining child is returned as is.
func combine(op Op, nodes []*Node) *Node {
	var children []*Node
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Op == op {
			children = append(children, n.Children...)
			continue
		}
		children = append(children, n)
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	return &Node{Op: op, Children: children}
}

// Clone deep-copies the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Op: n.Op, Label: n.Label, Invert: n.Invert}
	for _, child := range n.Children {
		c.Children = append(c.Children, child.Clone())
	}
	return c
}

// Equal reports structural equality.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Op != o.Op || n.Label != o.Label || n.Invert != o.Invert || len(n.Children) != len(o.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// Labels returns the directly referenced labels in order, without expanding
// sequences.
func (n *Node) Labels() []string {
	var out []string
	n.visit(func(ref *Node) { out = append(out, ref.Label) })
	return out
}

func (n *Node) visit(fn func(*Node)) {
	if n == nil {
		return
	}
	if n.Op == OpRef {
		fn(n)
		return
	}
	for _, c := range n.Children {
		c.visit(fn)
	}
}

// String renders the expression with the minimal parentheses: `*` binds
// tighter than `+`.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	switch n.Op {
	case OpRef:
		if n.Invert {
			return "!" + n.Label
		}
		return n.Label
	case OpAlso:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = c.String()
		}
		return strings.Join(parts, " + ")
	default:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			if c.Op == OpAlso {
				parts[i] = "(" + c.String() + ")"
				continue
			}
			parts[i] = c.String()
		}
		return strings.Join(parts, " * ")
	}
}

// prune removes every reference to label and collapses composites left with
// zero or one child. It returns the new node and the number of references
// removed.
func prune(n *Node, label string) (*Node, int) {
	if n == nil {
		return nil, 0
	}
	if n.Op == OpRef {
		if n.Label == label {
			return nil, 1
		}
		return n, 0
	}
	removed := 0
	kept := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		nc, r := prune(c, label)
		removed += r
		if nc != nil {
			kept = append(kept, nc)
		}
	}
	return combine(n.Op, kept), removed
}
