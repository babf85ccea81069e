package process

import (
	"context"
	"fmt"

	"github.com/specialistvlad/procgrid/internal/ctxlog"
)

// Load imports every top-level entry of other by reference: modules,
// parameter sets, sequences, paths, the source, services and type
// descriptions are shared, not copied. Loading the same process again is a
// no-op, and an entry that is already the same object is skipped. A
// different object under an existing label fails with ErrDuplicateLabel.
//
// Options fields and the event limit are process-wide settings rather than
// named entries; they are copied only where this process has not set them.
//
// Conflicts are checked before anything is imported, so a failed Load leaves
// the process unchanged.
func (p *Process) Load(ctx context.Context, other *Process) error {
	logger := ctxlog.FromContext(ctx)
	if other == p || p.loaded[other] {
		logger.Debug("Process already loaded, skipping.", "process", other.name)
		return nil
	}
	if err := p.checkLoad(other); err != nil {
		return err
	}

	for _, label := range other.labels {
		if err := p.importEntry(other, label); err != nil {
			return err
		}
	}

	if other.source != nil {
		switch {
		case p.source == nil:
			p.source = other.source
		case p.source != other.source:
			return fmt.Errorf("%w: both processes declare a source", ErrDuplicateLabel)
		}
	}

	for _, t := range other.serviceTypes {
		m := other.services[t]
		existing, ok := p.services[t]
		if ok && existing == m {
			continue
		}
		if ok {
			return fmt.Errorf("%w: service %q", ErrDuplicateLabel, t)
		}
		p.services[t] = m
		p.serviceTypes = append(p.serviceTypes, t)
	}

	for _, name := range other.options.Names() {
		if p.options.Has(name) {
			continue
		}
		v, _ := other.options.Get(name)
		p.options.With(name, v)
	}
	if other.maxEventsSet && !p.maxEventsSet {
		p.SetMaxEvents(other.maxEvents)
	}
	if len(p.schedule) == 0 && len(other.schedule) > 0 {
		p.SetSchedule(other.schedule)
	}

	if err := p.catalog.Merge(ctx, other.catalog); err != nil {
		return err
	}

	p.loaded[other] = true
	for nested := range other.loaded {
		p.loaded[nested] = true
	}
	logger.Debug("Loaded process.", "process", other.name, "labels", len(other.labels))
	return nil
}

// checkLoad reports the first entry of other that clashes with a different
// object already in p.
func (p *Process) checkLoad(other *Process) error {
	for _, label := range other.labels {
		if !p.Has(label) {
			continue
		}
		if p.entry(label) != other.entry(label) {
			return fmt.Errorf("%w: %q is already a %s", ErrDuplicateLabel, label, p.Kind(label))
		}
	}
	if p.source != nil && other.source != nil && p.source != other.source {
		return fmt.Errorf("%w: both processes declare a source", ErrDuplicateLabel)
	}
	for _, t := range other.serviceTypes {
		if existing, ok := p.services[t]; ok && existing != other.services[t] {
			return fmt.Errorf("%w: service %q", ErrDuplicateLabel, t)
		}
	}
	return p.catalog.CheckMerge(other.catalog)
}

// entry returns the object declared under label, for identity comparison.
func (p *Process) entry(label string) any {
	if m, ok := p.modules[label]; ok {
		return m
	}
	if ps, ok := p.psets[label]; ok {
		return ps
	}
	if s, ok := p.sequences[label]; ok {
		return s
	}
	return nil
}

func (p *Process) importEntry(other *Process, label string) error {
	if m, ok := other.modules[label]; ok {
		if existing, ok := p.modules[label]; ok && existing == m {
			return nil
		}
		return p.Declare(label, m)
	}
	if ps, ok := other.psets[label]; ok {
		if existing, ok := p.psets[label]; ok && existing == ps {
			return nil
		}
		return p.DeclarePSet(label, ps)
	}
	s := other.sequences[label]
	if existing, ok := p.sequences[label]; ok && existing == s {
		return nil
	}
	return p.declareSequence(label, s)
}
