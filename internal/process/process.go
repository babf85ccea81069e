package process

import (
	"fmt"
	"regexp"

	"github.com/specialistvlad/procgrid/internal/pset"
	"github.com/specialistvlad/procgrid/internal/registry"
	"github.com/specialistvlad/procgrid/internal/sequence"
)

// Keywords that address the source and options cannot be labels.
const (
	SourceKeyword  = "source"
	OptionsKeyword = "options"
)

var labelRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// EntryKind tells what a label refers to.
type EntryKind int

const (
	EntryNone EntryKind = iota
	EntryModule
	EntryPSet
	EntrySequence
	EntryPath
	EntryEndPath
)

// String returns the configuration keyword for the entry kind.
func (k EntryKind) String() string {
	switch k {
	case EntryModule:
		return "module"
	case EntryPSet:
		return "pset"
	case EntrySequence:
		return "sequence"
	case EntryPath:
		return "path"
	case EntryEndPath:
		return "endpath"
	default:
		return "none"
	}
}

func entryKindOf(k sequence.Kind) EntryKind {
	switch k {
	case sequence.KindPath:
		return EntryPath
	case sequence.KindEndPath:
		return EntryEndPath
	default:
		return EntrySequence
	}
}

// Process is the top-level configuration container of one job.
type Process struct {
	name string

	labels    []string
	modules   map[string]*Module
	psets     map[string]*pset.ParameterSet
	sequences map[string]*sequence.Sequence

	source       *Module
	serviceTypes []string
	services     map[string]*Module

	options      *pset.ParameterSet
	maxEvents    int64
	maxEventsSet bool
	schedule     []string

	catalog *registry.Registry
	loaded  map[*Process]bool
}

// New creates an empty process. The name may be empty for configuration
// fragments that are only ever loaded.
func New(name string) *Process {
	return &Process{
		name:      name,
		modules:   make(map[string]*Module),
		psets:     make(map[string]*pset.ParameterSet),
		sequences: make(map[string]*sequence.Sequence),
		services:  make(map[string]*Module),
		options:   pset.New(),
		maxEvents: -1,
		catalog:   registry.New(),
		loaded:    make(map[*Process]bool),
	}
}

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// SetName renames the process.
func (p *Process) SetName(name string) { p.name = name }

// Labels returns every label in declaration order.
func (p *Process) Labels() []string { return append([]string(nil), p.labels...) }

// Kind returns what label refers to.
func (p *Process) Kind(label string) EntryKind {
	if _, ok := p.modules[label]; ok {
		return EntryModule
	}
	if _, ok := p.psets[label]; ok {
		return EntryPSet
	}
	if s, ok := p.sequences[label]; ok {
		return entryKindOf(s.Kind())
	}
	return EntryNone
}

// Has reports whether label is declared.
func (p *Process) Has(label string) bool { return p.Kind(label) != EntryNone }

func (p *Process) checkNewLabel(label string) error {
	if !labelRegex.MatchString(label) || label == SourceKeyword || label == OptionsKeyword {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}
	if p.Has(label) {
		return fmt.Errorf("%w: %q is already a %s", ErrDuplicateLabel, label, p.Kind(label))
	}
	return nil
}

// Declare adds a labeled module. It fails with ErrDuplicateLabel if the label
// exists. Sources and services are attached with SetSource and
// DeclareService.
func (p *Process) Declare(label string, m *Module) error {
	if !m.Role.Labeled() {
		return fmt.Errorf("%w: %s modules are not labeled", ErrWrongRole, m.Role)
	}
	if err := p.checkNewLabel(label); err != nil {
		return err
	}
	p.modules[label] = m
	p.labels = append(p.labels, label)
	return nil
}

// Module returns the module declared under label.
func (p *Process) Module(label string) (*Module, bool) {
	m, ok := p.modules[label]
	return m, ok
}

// Replace swaps the descriptor of an existing module in place. Every path and
// every process sharing the module sees the replacement.
func (p *Process) Replace(label string, m *Module) error {
	existing, ok := p.modules[label]
	if !ok {
		return fmt.Errorf("%w: module %q", ErrUnknownLabel, label)
	}
	if !m.Role.Labeled() {
		return fmt.Errorf("%w: %s modules are not labeled", ErrWrongRole, m.Role)
	}
	existing.Type = m.Type
	existing.Role = m.Role
	existing.Params = m.Params
	return nil
}

// CloneModule declares newLabel as a copy of the module from, with overrides
// applied to the copy.
func (p *Process) CloneModule(newLabel, from string, overrides ...pset.Override) error {
	src, ok := p.modules[from]
	if !ok {
		return fmt.Errorf("%w: module %q", ErrUnknownLabel, from)
	}
	clone, err := src.Clone(overrides...)
	if err != nil {
		return fmt.Errorf("clone %q from %q: %w", newLabel, from, err)
	}
	return p.Declare(newLabel, clone)
}

// DeclarePSet adds a named parameter set.
func (p *Process) DeclarePSet(label string, ps *pset.ParameterSet) error {
	if err := p.checkNewLabel(label); err != nil {
		return err
	}
	p.psets[label] = ps
	p.labels = append(p.labels, label)
	return nil
}

// PSet returns the named parameter set.
func (p *Process) PSet(label string) (*pset.ParameterSet, bool) {
	ps, ok := p.psets[label]
	return ps, ok
}

// DeclareSequence adds a reusable sequence.
func (p *Process) DeclareSequence(label string, expr *sequence.Node) error {
	return p.declareSequence(label, sequence.New(sequence.KindSequence, expr))
}

// DeclarePath adds a path.
func (p *Process) DeclarePath(label string, expr *sequence.Node) error {
	return p.declareSequence(label, sequence.New(sequence.KindPath, expr))
}

// DeclareEndPath adds an end path.
func (p *Process) DeclareEndPath(label string, expr *sequence.Node) error {
	return p.declareSequence(label, sequence.New(sequence.KindEndPath, expr))
}

func (p *Process) declareSequence(label string, s *sequence.Sequence) error {
	if err := p.checkNewLabel(label); err != nil {
		return err
	}
	p.sequences[label] = s
	p.labels = append(p.labels, label)
	return nil
}

// Sequence returns the sequence, path or end path declared under label. The
// returned sequence is shared: mutating it affects every path using it.
func (p *Process) Sequence(label string) (*sequence.Sequence, bool) {
	s, ok := p.sequences[label]
	return s, ok
}

// SetSource attaches the event source, replacing any previous one.
func (p *Process) SetSource(m *Module) error {
	if m.Role != RoleSource {
		return fmt.Errorf("%w: %s module %q cannot be the source", ErrWrongRole, m.Role, m.Type)
	}
	p.source = m
	return nil
}

// Source returns the event source, or nil.
func (p *Process) Source() *Module { return p.source }

// DeclareService attaches a service. Services are keyed by type.
func (p *Process) DeclareService(m *Module) error {
	if m.Role != RoleService {
		return fmt.Errorf("%w: %s module %q is not a service", ErrWrongRole, m.Role, m.Type)
	}
	if _, ok := p.services[m.Type]; ok {
		return fmt.Errorf("%w: service %q", ErrDuplicateLabel, m.Type)
	}
	p.services[m.Type] = m
	p.serviceTypes = append(p.serviceTypes, m.Type)
	return nil
}

// Service returns the service of the given type.
func (p *Process) Service(serviceType string) (*Module, bool) {
	m, ok := p.services[serviceType]
	return m, ok
}

// Services returns the service types in declaration order.
func (p *Process) Services() []string { return append([]string(nil), p.serviceTypes...) }

// Options returns the process-wide options.
func (p *Process) Options() *pset.ParameterSet { return p.options }

// MaxEvents returns the event limit; -1 means all events.
func (p *Process) MaxEvents() int64 { return p.maxEvents }

// SetMaxEvents sets the event limit; -1 means all events.
func (p *Process) SetMaxEvents(n int64) {
	p.maxEvents = n
	p.maxEventsSet = true
}

// Schedule returns the explicit schedule, or nil when every path and end
// path runs.
func (p *Process) Schedule() []string { return append([]string(nil), p.schedule...) }

// SetSchedule sets the explicit schedule. Labels are checked by Finalize.
func (p *Process) SetSchedule(labels []string) {
	p.schedule = append([]string{}, labels...)
}

// Catalog returns the module type descriptions known to the process.
func (p *Process) Catalog() *registry.Registry { return p.catalog }

// Target returns the parameter set addressed by label: a module, a named
// parameter set, `source`, `options` or a service type.
func (p *Process) Target(label string) (*pset.ParameterSet, error) {
	if m, ok := p.modules[label]; ok {
		return m.Params, nil
	}
	if ps, ok := p.psets[label]; ok {
		return ps, nil
	}
	switch label {
	case SourceKeyword:
		if p.source == nil {
			return nil, fmt.Errorf("%w: no source declared", ErrUnknownLabel)
		}
		return p.source.Params, nil
	case OptionsKeyword:
		return p.options, nil
	}
	if m, ok := p.services[label]; ok {
		return m.Params, nil
	}
	if p.Has(label) {
		return nil, fmt.Errorf("%w: %q is a %s, not a parameter set", ErrUnknownLabel, label, p.Kind(label))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
}

// Remove detaches label from every sequence, path and end path. The
// descriptor itself stays declared. It returns the number of references
// removed.
func (p *Process) Remove(label string) (int, error) {
	if !p.Has(label) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
	}
	removed := 0
	for _, l := range p.labels {
		if s, ok := p.sequences[l]; ok {
			removed += s.Remove(label)
		}
	}
	return removed, nil
}

// Delete detaches label like Remove and then drops the entry.
func (p *Process) Delete(label string) error {
	if _, err := p.Remove(label); err != nil {
		return err
	}
	delete(p.modules, label)
	delete(p.psets, label)
	delete(p.sequences, label)
	for i, l := range p.labels {
		if l == label {
			p.labels = append(p.labels[:i], p.labels[i+1:]...)
			break
		}
	}
	for i, l := range p.schedule {
		if l == label {
			p.schedule = append(p.schedule[:i], p.schedule[i+1:]...)
			break
		}
	}
	return nil
}
