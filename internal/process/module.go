package process

import (
	"fmt"

	"github.com/specialistvlad/procgrid/internal/pset"
)

// Module is a module descriptor: an opaque type name, a role and its
// parameters.
type Module struct {
	Type   string
	Role   Role
	Params *pset.ParameterSet
}

// NewModule creates a module. A nil params means an empty set.
func NewModule(moduleType string, role Role, params *pset.ParameterSet) *Module {
	if params == nil {
		params = pset.New()
	}
	return &Module{Type: moduleType, Role: role, Params: params}
}

// Clone returns an independent copy with the overrides applied. The receiver
// is never modified.
func (m *Module) Clone(overrides ...pset.Override) (*Module, error) {
	params, err := m.Params.Clone(overrides...)
	if err != nil {
		return nil, fmt.Errorf("cloning %s module %s: %w", m.Role, m.Type, err)
	}
	return &Module{Type: m.Type, Role: m.Role, Params: params}, nil
}

// String renders the module for logs.
func (m *Module) String() string {
	return fmt.Sprintf("%s %q %s", m.Role, m.Type, m.Params)
}
