package fieldpath

// Segment represents a single component of a path, e.g., `name` or `name[index]`.
type Segment struct {
	Name  string
	Index int // -1 indicates no index is present.
}

// NewSegment creates a new path segment without an index.
func NewSegment(name string) Segment {
	return Segment{Name: name, Index: -1}
}

// NewSegmentWithIndex creates a new path segment that includes an index.
func NewSegmentWithIndex(name string, index int) Segment {
	return Segment{Name: name, Index: index}
}

// HasIndex returns true if the path segment has an explicit index.
func (s Segment) HasIndex() bool {
	return s.Index != -1
}

// Path is the structured representation of a field address.
type Path struct {
	Segments []Segment
}

// Last returns the final segment of the path.
func (p *Path) Last() Segment {
	return p.Segments[len(p.Segments)-1]
}

// Parent returns the path without its final segment, or nil for a
// single-segment path.
func (p *Path) Parent() *Path {
	if p == nil || len(p.Segments) < 2 {
		return nil
	}
	segs := make([]Segment, len(p.Segments)-1)
	copy(segs, p.Segments)
	return &Path{Segments: segs}
}
