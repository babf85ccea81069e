package fieldpath

import (
	"fmt"
	"reflect"
	"strings"
)

// String serializes the Path into its canonical string representation.
func (p *Path) String() string {
	if p == nil {
		return ""
	}

	var sb strings.Builder
	for i, segment := range p.Segments {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(segment.Name)
		if segment.HasIndex() {
			sb.WriteString(fmt.Sprintf("[%d]", segment.Index))
		}
	}

	return sb.String()
}

// Equal checks for deep equality between two Path pointers.
func (p *Path) Equal(other *Path) bool {
	if p == nil || other == nil {
		return p == other
	}
	return reflect.DeepEqual(p.Segments, other.Segments)
}
