package process

import "github.com/specialistvlad/procgrid/internal/pset"

// Snapshot is the plain-data form of a process, used for the JSON and YAML
// renderings and the handoff envelope.
type Snapshot struct {
	Process   string           `json:"process" yaml:"process"`
	MaxEvents int64            `json:"maxEvents" yaml:"maxEvents"`
	Options   []pset.Field     `json:"options,omitempty" yaml:"options,omitempty"`
	Source    *ModuleSnapshot  `json:"source,omitempty" yaml:"source,omitempty"`
	Services  []ModuleSnapshot `json:"services,omitempty" yaml:"services,omitempty"`
	Entries   []EntrySnapshot  `json:"entries" yaml:"entries"`
	Schedule  []string         `json:"schedule,omitempty" yaml:"schedule,omitempty"`
}

// ModuleSnapshot is one module descriptor.
type ModuleSnapshot struct {
	Type   string       `json:"type" yaml:"type"`
	Role   Role         `json:"role" yaml:"role"`
	Params []pset.Field `json:"params" yaml:"params"`
}

// EntrySnapshot is one labeled entry. Exactly one of Module, Params and
// Modules is set, according to Kind.
type EntrySnapshot struct {
	Label   string          `json:"label" yaml:"label"`
	Kind    string          `json:"kind" yaml:"kind"`
	Module  *ModuleSnapshot `json:"module,omitempty" yaml:"module,omitempty"`
	Params  []pset.Field    `json:"params,omitempty" yaml:"params,omitempty"`
	Modules string          `json:"modules,omitempty" yaml:"modules,omitempty"`
}

func snapshotModule(m *Module) *ModuleSnapshot {
	return &ModuleSnapshot{Type: m.Type, Role: m.Role, Params: m.Params.Export()}
}

// Snapshot returns the current state of the process as plain data.
func (p *Process) Snapshot() *Snapshot {
	s := &Snapshot{
		Process:   p.name,
		MaxEvents: p.maxEvents,
		Entries:   make([]EntrySnapshot, 0, len(p.labels)),
		Schedule:  p.Schedule(),
	}
	if p.options.Len() > 0 {
		s.Options = p.options.Export()
	}
	if p.source != nil {
		s.Source = snapshotModule(p.source)
	}
	for _, t := range p.serviceTypes {
		s.Services = append(s.Services, *snapshotModule(p.services[t]))
	}

	for _, label := range p.labels {
		e := EntrySnapshot{Label: label, Kind: p.Kind(label).String()}
		switch {
		case p.modules[label] != nil:
			e.Module = snapshotModule(p.modules[label])
		case p.psets[label] != nil:
			e.Params = p.psets[label].Export()
		default:
			e.Modules = p.sequences[label].String()
		}
		s.Entries = append(s.Entries, e)
	}
	return s
}
