package fieldpath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// segmentRegex parses a single segment of a path, e.g., `name` or `name[1]`.
// Field names follow the identifier rules of the configuration language.
var segmentRegex = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)(?:\[(\d+)\])?$`)

// Parse creates a new Path by parsing its canonical string representation.
func Parse(raw string) (*Path, error) {
	if raw == "" {
		return nil, fmt.Errorf("field path cannot be empty")
	}

	p := &Path{}
	for _, segmentStr := range strings.Split(raw, ".") {
		if segmentStr == "" {
			return nil, fmt.Errorf("field path %q contains empty segment", raw)
		}

		matches := segmentRegex.FindStringSubmatch(segmentStr)
		if matches == nil {
			return nil, fmt.Errorf("invalid field path segment %q", segmentStr)
		}

		segment := NewSegment(matches[1])
		if matches[2] != "" {
			index, err := strconv.Atoi(matches[2])
			if err != nil {
				return nil, fmt.Errorf("invalid index in segment %q: %w", segmentStr, err)
			}
			segment.Index = index
		}
		p.Segments = append(p.Segments, segment)
	}

	return p, nil
}

// MustParse is like Parse but panics on malformed input. It is meant for
// paths that are compile-time constants.
func MustParse(raw string) *Path {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}
