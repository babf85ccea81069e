package sequence

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle is returned when sequences reference each other in a loop.
	ErrCycle = errors.New("sequence cycle")
	// ErrInvertedSequence is returned when `!` is applied to a sequence.
	ErrInvertedSequence = errors.New("only modules can be inverted")
)

// Kind distinguishes reusable sequences from scheduled paths.
type Kind int

const (
	KindSequence Kind = iota
	KindPath
	KindEndPath
)

// String returns the configuration keyword for the kind.
func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindEndPath:
		return "endpath"
	default:
		return "sequence"
	}
}

// Sequence is a named composition expression. Sequences, paths and end paths
// share this representation and differ only by Kind.
type Sequence struct {
	kind Kind
	root *Node
}

// New creates a sequence of the given kind from an expression.
func New(kind Kind, root *Node) *Sequence {
	return &Sequence{kind: kind, root: root.Clone()}
}

// Kind returns the sequence kind.
func (s *Sequence) Kind() Kind { return s.kind }

// Root returns a copy of the expression.
func (s *Sequence) Root() *Node { return s.root.Clone() }

// IsEmpty reports whether the sequence references nothing.
func (s *Sequence) IsEmpty() bool { return s.root == nil }

// Labels returns the labels referenced directly by the sequence.
func (s *Sequence) Labels() []string { return s.root.Labels() }

// String renders the expression.
func (s *Sequence) String() string { return s.root.String() }

// Clone returns an independent copy.
func (s *Sequence) Clone() *Sequence { return New(s.kind, s.root) }

// Append adds n after everything already in the sequence.
func (s *Sequence) Append(n *Node) {
	s.root = And(s.root, n.Clone())
}

// Insert places n before the top-level element at index. An index equal to
// the number of top-level elements appends.
func (s *Sequence) Insert(index int, n *Node) error {
	top := s.topLevel()
	if index < 0 || index > len(top) {
		return fmt.Errorf("insert index %d out of range [0,%d]", index, len(top))
	}
	elems := make([]*Node, 0, len(top)+1)
	elems = append(elems, top[:index]...)
	elems = append(elems, n.Clone())
	elems = append(elems, top[index:]...)
	op := OpAnd
	if s.root != nil && s.root.Op == OpAlso {
		op = OpAlso
	}
	s.root = combine(op, elems)
	return nil
}

func (s *Sequence) topLevel() []*Node {
	switch {
	case s.root == nil:
		return nil
	case s.root.Op == OpRef:
		return []*Node{s.root}
	default:
		return s.root.Children
	}
}

// Remove deletes every reference to label and returns how many were removed.
func (s *Sequence) Remove(label string) int {
	root, removed := prune(s.root, label)
	s.root = root
	return removed
}

// Replace swaps every reference to old for next, in place, keeping inversion.
// It returns the number of references replaced.
func (s *Sequence) Replace(old, next string) int {
	replaced := 0
	s.root.visit(func(ref *Node) {
		if ref.Label == old {
			ref.Label = next
			replaced++
		}
	})
	return replaced
}

// Entry is one element of a linearized path.
type Entry struct {
	Label  string
	Invert bool
}

// Lookup resolves a label to a sequence, reporting false for modules.
type Lookup func(label string) (*Sequence, bool)

// Linearize expands s into its ordered execution list. Nested sequences are
// resolved through lookup at call time. A label reached more than once keeps
// its first position.
func Linearize(s *Sequence, lookup Lookup) ([]Entry, error) {
	var out []Entry
	seen := make(map[string]bool)
	stack := make(map[*Sequence]bool)

	var expand func(n *Node) error
	expand = func(n *Node) error {
		if n == nil {
			return nil
		}
		if n.Op != OpRef {
			for _, c := range n.Children {
				if err := expand(c); err != nil {
					return err
				}
			}
			return nil
		}

		if nested, ok := lookup(n.Label); ok {
			if n.Invert {
				return fmt.Errorf("%w: !%s", ErrInvertedSequence, n.Label)
			}
			if stack[nested] {
				return fmt.Errorf("%w: %q references itself", ErrCycle, n.Label)
			}
			stack[nested] = true
			defer delete(stack, nested)
			return expand(nested.root)
		}

		if seen[n.Label] {
			return nil
		}
		seen[n.Label] = true
		out = append(out, Entry{Label: n.Label, Invert: n.Invert})
		return nil
	}

	stack[s] = true
	if err := expand(s.root); err != nil {
		return nil, err
	}
	return out, nil
}
