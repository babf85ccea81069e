package process

import "fmt"

// Role is the closed set of module roles.
type Role int

const (
	RoleSource Role = iota
	RoleProducer
	RoleFilter
	RoleAnalyzer
	RoleOutput
	RoleESSource
	RoleESProducer
	RoleService
)

var roleNames = [...]string{
	RoleSource:     "source",
	RoleProducer:   "producer",
	RoleFilter:     "filter",
	RoleAnalyzer:   "analyzer",
	RoleOutput:     "output",
	RoleESSource:   "es_source",
	RoleESProducer: "es_producer",
	RoleService:    "service",
}

// String returns the configuration keyword of the role.
func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return roleNames[r]
}

// ParseRole parses a role keyword.
func ParseRole(s string) (Role, error) {
	for i, n := range roleNames {
		if n == s {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown module role %q", s)
}

// Roles returns every role in declaration order.
func Roles() []Role {
	out := make([]Role, len(roleNames))
	for i := range roleNames {
		out[i] = Role(i)
	}
	return out
}

// MarshalText renders the role keyword.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText parses a role keyword.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ProducesData reports whether modules of the role put products into the event.
func (r Role) ProducesData() bool { return r == RoleProducer || r == RoleFilter }

// FiltersEvents reports whether modules of the role decide whether a path continues.
func (r Role) FiltersEvents() bool { return r == RoleFilter }

// ReadOnly reports whether modules of the role only observe events.
func (r Role) ReadOnly() bool { return r == RoleAnalyzer || r == RoleOutput }

// Schedulable reports whether modules of the role may appear in paths.
func (r Role) Schedulable() bool {
	return r == RoleProducer || r == RoleFilter || r == RoleAnalyzer || r == RoleOutput
}

// Invertible reports whether `!` may be applied to modules of the role.
func (r Role) Invertible() bool { return r == RoleFilter }

// EndPathOnly reports whether modules of the role may only be scheduled in end paths.
func (r Role) EndPathOnly() bool { return r == RoleOutput }

// Labeled reports whether modules of the role live in the label namespace.
// The source and services are addressed by keyword and type instead.
func (r Role) Labeled() bool { return r != RoleSource && r != RoleService }
