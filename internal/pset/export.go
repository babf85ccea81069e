package pset

import "encoding/json"

// Field is the plain-data form of one parameter, used by the JSON and YAML
// renderings of a parameter set.
type Field struct {
	Name      string `json:"name" yaml:"name"`
	Type      string `json:"type" yaml:"type"`
	Untracked bool   `json:"untracked,omitempty" yaml:"untracked,omitempty"`
	Value     any    `json:"value" yaml:"value"`
}

// Export returns the set as an ordered list of plain fields. Nested sets
// become []Field, vpsets [][]Field and InputTags their canonical string.
func (p *ParameterSet) Export() []Field {
	fields := make([]Field, 0, len(p.names))
	for _, name := range p.names {
		v := p.values[name]
		fields = append(fields, Field{
			Name:      name,
			Type:      v.TypeName(),
			Untracked: v.untracked,
			Value:     exportValue(v),
		})
	}
	return fields
}

func exportValue(v Value) any {
	if !v.vector {
		return exportItem(v.kind, v.items[0])
	}
	out := make([]any, len(v.items))
	for i, it := range v.items {
		out[i] = exportItem(v.kind, it)
	}
	return out
}

func exportItem(k Kind, it any) any {
	switch k {
	case KindInputTag:
		return it.(InputTag).String()
	case KindPSet:
		return it.(*ParameterSet).Export()
	default:
		return it
	}
}

// MarshalJSON renders the set as its ordered field list.
func (p *ParameterSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Export())
}

// MarshalYAML renders the set as its ordered field list.
func (p *ParameterSet) MarshalYAML() (any, error) {
	return p.Export(), nil
}
