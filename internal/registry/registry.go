package registry

import (
	"context"
	"fmt"

	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"github.com/specialistvlad/procgrid/internal/pset"
)

// Param describes one accepted parameter of a module type.
type Param struct {
	Name      string
	Kind      pset.Kind
	Vector    bool
	Untracked bool
	// Optional parameters may be omitted. A parameter with a Default is
	// always optional.
	Optional bool
	// Default is inserted when the parameter is missing. Nil means none.
	Default *pset.Value
}

// Required reports whether a module must set the parameter.
func (p Param) Required() bool {
	return !p.Optional && p.Default == nil
}

// TypeName renders the parameter type as written in configuration files.
func (p Param) TypeName() string {
	if p.Vector {
		return "vector(" + p.Kind.String() + ")"
	}
	return p.Kind.String()
}

// Description is the contract of one module type.
type Description struct {
	Type string
	// Role is the role keyword, e.g. "producer" or "es_source".
	Role   string
	Params []Param
}

// Param returns the parameter called name.
func (d *Description) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Registry holds module type descriptions for a single assembly.
type Registry struct {
	descriptions map[string]*Description
	order        []string
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{descriptions: make(map[string]*Description)}
}

// Register adds a description. Registering the same description object twice
// is a no-op, a different description for a known type is an error.
func (r *Registry) Register(ctx context.Context, d *Description) error {
	if d == nil || d.Type == "" {
		return fmt.Errorf("description must name a module type")
	}
	if existing, ok := r.descriptions[d.Type]; ok {
		if existing == d {
			return nil
		}
		return fmt.Errorf("module type '%s' is already described", d.Type)
	}
	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if seen[p.Name] {
			return fmt.Errorf("module type '%s': parameter '%s' described twice", d.Type, p.Name)
		}
		seen[p.Name] = true
	}

	ctxlog.FromContext(ctx).Debug("Registering module type description.", "type", d.Type, "role", d.Role, "params", len(d.Params))
	r.descriptions[d.Type] = d
	r.order = append(r.order, d.Type)
	return nil
}

// Lookup returns the description of a module type.
func (r *Registry) Lookup(moduleType string) (*Description, bool) {
	d, ok := r.descriptions[moduleType]
	return d, ok
}

// Types returns the described types in registration order.
func (r *Registry) Types() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of descriptions.
func (r *Registry) Len() int { return len(r.order) }

// CheckMerge reports whether Merge would fail, without registering anything.
func (r *Registry) CheckMerge(other *Registry) error {
	if other == nil || other == r {
		return nil
	}
	for _, t := range other.order {
		if existing, ok := r.descriptions[t]; ok && existing != other.descriptions[t] {
			return fmt.Errorf("module type '%s' is already described", t)
		}
	}
	return nil
}

// Merge registers every description of other, sharing the description
// objects. Nothing is registered when a type clashes.
func (r *Registry) Merge(ctx context.Context, other *Registry) error {
	if other == nil || other == r {
		return nil
	}
	if err := r.CheckMerge(other); err != nil {
		return err
	}
	for _, t := range other.order {
		if err := r.Register(ctx, other.descriptions[t]); err != nil {
			return err
		}
	}
	return nil
}
