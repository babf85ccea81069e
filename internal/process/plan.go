package process

import (
	"fmt"
	"strings"
)

// Plan is the finalized, linearized schedule of a process.
type Plan struct {
	Process     string        `json:"process" yaml:"process"`
	MaxEvents   int64         `json:"maxEvents" yaml:"maxEvents"`
	Source      string        `json:"source" yaml:"source"`
	Paths       []PlannedPath `json:"paths" yaml:"paths"`
	Unscheduled []string      `json:"unscheduled,omitempty" yaml:"unscheduled,omitempty"`
}

// PlannedPath is one scheduled path or end path.
type PlannedPath struct {
	Label   string         `json:"label" yaml:"label"`
	EndPath bool           `json:"endPath,omitempty" yaml:"endPath,omitempty"`
	Entries []PlannedEntry `json:"entries" yaml:"entries"`
}

// PlannedEntry is one module execution within a path.
type PlannedEntry struct {
	Label    string `json:"label" yaml:"label"`
	Type     string `json:"type" yaml:"type"`
	Role     Role   `json:"role" yaml:"role"`
	Inverted bool   `json:"inverted,omitempty" yaml:"inverted,omitempty"`
}

// Path returns the planned path with the given label.
func (pl *Plan) Path(label string) (PlannedPath, bool) {
	for _, p := range pl.Paths {
		if p.Label == label {
			return p, true
		}
	}
	return PlannedPath{}, false
}

// Labels returns the entry labels of the path, inverted ones prefixed with `!`.
func (pp PlannedPath) Labels() []string {
	out := make([]string, len(pp.Entries))
	for i, e := range pp.Entries {
		out[i] = e.Label
		if e.Inverted {
			out[i] = "!" + e.Label
		}
	}
	return out
}

// String renders the plan one path per line.
func (pl *Plan) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "process %s (source %s, maxEvents %d)\n", pl.Process, pl.Source, pl.MaxEvents)
	for _, p := range pl.Paths {
		kind := "path"
		if p.EndPath {
			kind = "endpath"
		}
		fmt.Fprintf(&b, "  %s %s: %s\n", kind, p.Label, strings.Join(p.Labels(), ", "))
	}
	if len(pl.Unscheduled) > 0 {
		fmt.Fprintf(&b, "  unscheduled: %s\n", strings.Join(pl.Unscheduled, ", "))
	}
	return b.String()
}
