package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"github.com/specialistvlad/procgrid/internal/pset"
)

// ErrValidation is returned when a module does not match its description.
var ErrValidation = errors.New("module validation failed")

// Fix is a value Validate wants written into the parameters it checked: the
// default of a missing parameter, or a literal converted to its described
// kind.
type Fix struct {
	Name  string
	Value pset.Value
}

// ApplyFixes writes fixes into params in order.
func ApplyFixes(params *pset.ParameterSet, fixes []Fix) {
	for _, f := range fixes {
		params.With(f.Name, f.Value)
	}
}

// Validate checks the parameters of the module called label against the
// description of moduleType. params is not modified: the defaults and kind
// conversions it needs come back as fixes for the caller to apply. Every
// problem found is reported in one error, and no fixes are returned then.
func (r *Registry) Validate(ctx context.Context, label, moduleType, role string, params *pset.ParameterSet) ([]Fix, error) {
	logger := ctxlog.FromContext(ctx)

	d, ok := r.descriptions[moduleType]
	if !ok {
		logger.Debug("Module type is not described, skipping validation.", "label", label, "type", moduleType)
		return nil, nil
	}

	var errs []string
	var fixes []Fix
	if d.Role != "" && role != "" && d.Role != role {
		errs = append(errs, fmt.Sprintf("declared as %s but type '%s' is a %s", role, moduleType, d.Role))
	}

	for _, p := range d.Params {
		v, ok := params.Lookup(p.Name)
		if !ok {
			switch {
			case p.Default != nil:
				logger.Debug("Staging default parameter value.", "label", label, "param", p.Name, "value", p.Default.String())
				fixes = append(fixes, Fix{Name: p.Name, Value: *p.Default})
			case p.Required():
				errs = append(errs, fmt.Sprintf("missing required parameter '%s' (%s)", p.Name, p.TypeName()))
			}
			continue
		}

		if v.IsVector() != p.Vector {
			errs = append(errs, fmt.Sprintf("parameter '%s': type mismatch, described as %s but set to %s", p.Name, p.TypeName(), v.TypeName()))
			continue
		}
		converted, err := pset.Coerce(v, p.Kind)
		if err != nil {
			errs = append(errs, fmt.Sprintf("parameter '%s': type mismatch, described as %s but set to %s", p.Name, p.TypeName(), v.TypeName()))
			continue
		}
		if converted.Kind() != v.Kind() {
			// Literals take the described kind, e.g. an int32 literal for a uint32 parameter.
			fixes = append(fixes, Fix{Name: p.Name, Value: converted})
		}
		if v.IsTracked() == p.Untracked {
			errs = append(errs, fmt.Sprintf("parameter '%s': described as %s but set as %s", p.Name, trackedness(p.Untracked), trackedness(!v.IsTracked())))
		}
	}

	for _, name := range params.Names() {
		if _, ok := d.Param(name); ok {
			continue
		}
		v, _ := params.Lookup(name)
		if v.IsTracked() {
			errs = append(errs, fmt.Sprintf("parameter '%s' is not described for type '%s'", name, moduleType))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: module '%s' (%s):\n- %s", ErrValidation, label, moduleType, strings.Join(errs, "\n- "))
	}
	return fixes, nil
}

func trackedness(untracked bool) string {
	if untracked {
		return "untracked"
	}
	return "tracked"
}
