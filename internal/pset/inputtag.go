package pset

import (
	"fmt"
	"strings"
)

// InputTag is a nominal reference to a data product: the label of the
// producing module, an optional product instance and an optional process
// name. It is never resolved by this package.
type InputTag struct {
	Label    string
	Instance string
	Process  string
}

// ParseInputTag parses the canonical `label[:instance[:process]]` form.
func ParseInputTag(raw string) (InputTag, error) {
	if strings.ContainsAny(raw, " \t\r\n") {
		return InputTag{}, fmt.Errorf("input tag %q contains whitespace", raw)
	}
	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return InputTag{}, fmt.Errorf("input tag %q has more than three parts", raw)
	}
	if parts[0] == "" {
		return InputTag{}, fmt.Errorf("input tag %q has an empty module label", raw)
	}

	tag := InputTag{Label: parts[0]}
	if len(parts) > 1 {
		tag.Instance = parts[1]
	}
	if len(parts) > 2 {
		tag.Process = parts[2]
	}
	return tag, nil
}

// MustParseInputTag is like ParseInputTag but panics on malformed input.
func MustParseInputTag(raw string) InputTag {
	tag, err := ParseInputTag(raw)
	if err != nil {
		panic(err)
	}
	return tag
}

// String returns the canonical form, omitting trailing empty parts.
func (t InputTag) String() string {
	switch {
	case t.Process != "":
		return t.Label + ":" + t.Instance + ":" + t.Process
	case t.Instance != "":
		return t.Label + ":" + t.Instance
	default:
		return t.Label
	}
}

// IsZero reports whether the tag is empty.
func (t InputTag) IsZero() bool {
	return t == InputTag{}
}
