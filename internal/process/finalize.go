package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"github.com/specialistvlad/procgrid/internal/dag"
	"github.com/specialistvlad/procgrid/internal/pset"
	"github.com/specialistvlad/procgrid/internal/registry"
	"github.com/specialistvlad/procgrid/internal/sequence"
	"go.uber.org/multierr"
)

// Finalize validates the process and returns its Plan. Every problem found is
// reported; the returned error combines them and can be split with
// multierr.Errors. Described module types get missing defaults inserted and
// literals converted to their described kinds, but only when the process is
// valid; a failed Finalize leaves every parameter as it was.
func (p *Process) Finalize(ctx context.Context) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Finalizing process.", "process", p.name, "labels", len(p.labels))

	var err error
	if !labelRegex.MatchString(p.name) {
		err = multierr.Append(err, fmt.Errorf("%w: process name %q", ErrInvalidLabel, p.name))
	}
	if p.source == nil {
		err = multierr.Append(err, ErrNoSource)
	}

	err = multierr.Append(err, p.checkReferences())
	err = multierr.Append(err, p.checkNesting())
	err = multierr.Append(err, p.checkConsumption())
	staged, catalogErr := p.validateCatalog(ctx)
	err = multierr.Append(err, catalogErr)

	plan := &Plan{Process: p.name, MaxEvents: p.maxEvents}
	if p.source != nil {
		plan.Source = p.source.Type
	}

	scheduled := make(map[string]bool)
	seen := make(map[string]bool)
	for _, label := range p.scheduledPaths() {
		if seen[label] {
			err = multierr.Append(err, fmt.Errorf("%w: schedule entry %q appears more than once", ErrDuplicateLabel, label))
			continue
		}
		seen[label] = true
		s, ok := p.sequences[label]
		if !ok || s.Kind() == sequence.KindSequence {
			if ok {
				err = multierr.Append(err, fmt.Errorf("%w: schedule entry %q is a sequence, not a path", ErrNotSchedulable, label))
			} else {
				err = multierr.Append(err, fmt.Errorf("%w: schedule entry %q", ErrUnknownLabel, label))
			}
			continue
		}
		planned, pathErr := p.planPath(label, s)
		err = multierr.Append(err, pathErr)
		for _, e := range planned.Entries {
			scheduled[e.Label] = true
		}
		plan.Paths = append(plan.Paths, planned)
	}

	for _, label := range p.labels {
		if m, ok := p.modules[label]; ok && m.Role.Schedulable() && !scheduled[label] {
			plan.Unscheduled = append(plan.Unscheduled, label)
		}
	}

	if err != nil {
		logger.Debug("Process finalization failed.", "process", p.name, "problems", len(multierr.Errors(err)))
		return nil, err
	}
	for _, s := range staged {
		registry.ApplyFixes(s.params, s.fixes)
	}
	logger.Debug("Process finalized.", "process", p.name, "paths", len(plan.Paths), "unscheduled", len(plan.Unscheduled))
	return plan, nil
}

// scheduledPaths returns the explicit schedule, or every path followed by
// every end path in declaration order.
func (p *Process) scheduledPaths() []string {
	if len(p.schedule) > 0 {
		return p.schedule
	}
	var paths, endPaths []string
	for _, label := range p.labels {
		s, ok := p.sequences[label]
		if !ok {
			continue
		}
		switch s.Kind() {
		case sequence.KindPath:
			paths = append(paths, label)
		case sequence.KindEndPath:
			endPaths = append(endPaths, label)
		}
	}
	return append(paths, endPaths...)
}

func (p *Process) lookupSequence(label string) (*sequence.Sequence, bool) {
	s, ok := p.sequences[label]
	if !ok || s.Kind() != sequence.KindSequence {
		return nil, false
	}
	return s, true
}

func (p *Process) planPath(label string, s *sequence.Sequence) (PlannedPath, error) {
	planned := PlannedPath{Label: label, EndPath: s.Kind() == sequence.KindEndPath}

	entries, linErr := sequence.Linearize(s, p.lookupSequence)
	switch {
	case errors.Is(linErr, sequence.ErrCycle):
		// Already reported by checkNesting.
		return planned, nil
	case errors.Is(linErr, sequence.ErrInvertedSequence):
		return planned, fmt.Errorf("%s %q: %w: %w", s.Kind(), label, ErrInvalidInversion, linErr)
	case linErr != nil:
		return planned, fmt.Errorf("%s %q: %w", s.Kind(), label, linErr)
	}

	var err error
	for _, e := range entries {
		m, ok := p.modules[e.Label]
		if !ok {
			// Unknown labels are reported by checkReferences.
			if p.Has(e.Label) {
				err = multierr.Append(err, fmt.Errorf("%s %q: %w: %q is a %s", s.Kind(), label, ErrNotSchedulable, e.Label, p.Kind(e.Label)))
			}
			continue
		}
		if !m.Role.Schedulable() {
			err = multierr.Append(err, fmt.Errorf("%s %q: %w: %q is a %s", s.Kind(), label, ErrNotSchedulable, e.Label, m.Role))
			continue
		}
		if m.Role.EndPathOnly() && s.Kind() != sequence.KindEndPath {
			err = multierr.Append(err, fmt.Errorf("%s %q: %w: %s module %q belongs in an endpath", s.Kind(), label, ErrNotSchedulable, m.Role, e.Label))
			continue
		}
		if e.Invert && !m.Role.Invertible() {
			err = multierr.Append(err, fmt.Errorf("%s %q: %w: %s %q is not a filter", s.Kind(), label, ErrInvalidInversion, m.Role, e.Label))
			continue
		}
		planned.Entries = append(planned.Entries, PlannedEntry{Label: e.Label, Type: m.Type, Role: m.Role, Inverted: e.Invert})
	}
	return planned, err
}

// checkReferences reports every label used by a sequence, path or end path
// that is not declared, whether or not it is scheduled.
func (p *Process) checkReferences() error {
	var err error
	for _, label := range p.labels {
		s, ok := p.sequences[label]
		if !ok {
			continue
		}
		reported := make(map[string]bool)
		for _, ref := range s.Labels() {
			if p.Has(ref) || reported[ref] {
				continue
			}
			reported[ref] = true
			err = multierr.Append(err, fmt.Errorf("%s %q: %w: %q", s.Kind(), label, ErrUnknownLabel, ref))
		}
	}
	return err
}

// checkNesting reports sequences that contain themselves, directly or through
// other sequences.
func (p *Process) checkNesting() error {
	g := dag.New()
	for _, label := range p.labels {
		if s, ok := p.sequences[label]; ok {
			g.AddNode(label)
			for _, ref := range s.Labels() {
				if _, nested := p.lookupSequence(ref); !nested {
					continue
				}
				if ref == label {
					return fmt.Errorf("%w: sequence %q contains itself", ErrCycle, label)
				}
				if err := g.Connect(ref, label); err != nil {
					return fmt.Errorf("%w: %w", ErrCycle, err)
				}
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return fmt.Errorf("%w: sequence nesting: %w", ErrCycle, err)
	}
	return nil
}

// checkConsumption reports modules that consume, through InputTags, products
// of modules that in turn consume their own products. Tags naming other
// processes or undeclared labels are external and ignored.
func (p *Process) checkConsumption() error {
	g := dag.New()
	for _, label := range p.labels {
		if _, ok := p.modules[label]; ok {
			g.AddNode(label)
		}
	}
	for _, label := range p.labels {
		m, ok := p.modules[label]
		if !ok {
			continue
		}
		for _, tag := range m.Params.InputTags() {
			if tag.Process != "" && tag.Process != p.name {
				continue
			}
			if _, ok := p.modules[tag.Label]; !ok {
				continue
			}
			if tag.Label == label {
				return fmt.Errorf("%w: module %q consumes its own products", ErrCycle, label)
			}
			if err := g.AddEdge(tag.Label, label); err != nil {
				return err
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return fmt.Errorf("%w: product consumption: %w", ErrCycle, err)
	}
	return nil
}

// stagedFixes are catalog fixes for one parameter set, applied once the
// whole process is valid.
type stagedFixes struct {
	params *pset.ParameterSet
	fixes  []registry.Fix
}

// validateCatalog checks every module, the source and services against the
// module type descriptions.
func (p *Process) validateCatalog(ctx context.Context) ([]stagedFixes, error) {
	if p.catalog.Len() == 0 {
		return nil, nil
	}
	var (
		err    error
		staged []stagedFixes
	)
	validate := func(label string, m *Module) {
		fixes, vErr := p.catalog.Validate(ctx, label, m.Type, m.Role.String(), m.Params)
		err = multierr.Append(err, vErr)
		if len(fixes) > 0 {
			staged = append(staged, stagedFixes{params: m.Params, fixes: fixes})
		}
	}
	for _, label := range p.labels {
		if m, ok := p.modules[label]; ok {
			validate(label, m)
		}
	}
	if p.source != nil {
		validate(SourceKeyword, p.source)
	}
	for _, t := range p.serviceTypes {
		validate(t, p.services[t])
	}
	return staged, err
}
