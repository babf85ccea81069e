package pset

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/specialistvlad/procgrid/internal/fieldpath"
)

var nameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ParameterSet is an ordered mapping from field names to Values. The zero
// value is not usable; call New.
type ParameterSet struct {
	names  []string
	values map[string]Value
}

// New returns an empty parameter set.
func New() *ParameterSet {
	return &ParameterSet{values: make(map[string]Value)}
}

// Len returns the number of top-level fields.
func (p *ParameterSet) Len() int { return len(p.names) }

// Names returns the top-level field names in declaration order.
func (p *ParameterSet) Names() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Has reports whether a top-level field exists.
func (p *ParameterSet) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// With declares or overrides a top-level field and returns p, for building
// sets in a single expression. It panics on an invalid name.
func (p *ParameterSet) With(name string, v Value) *ParameterSet {
	if !nameRegex.MatchString(name) {
		panic(fmt.Sprintf("pset: invalid field name %q", name))
	}
	p.put(name, v.clone())
	return p
}

// Declare adds a new top-level field. It fails with ErrDuplicateField when the
// name already exists.
func (p *ParameterSet) Declare(name string, v Value) error {
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if p.Has(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateField, name)
	}
	p.put(name, v.clone())
	return nil
}

func (p *ParameterSet) put(name string, v Value) {
	if _, exists := p.values[name]; !exists {
		p.names = append(p.names, name)
	}
	p.values[name] = v
}

// Delete removes a field addressed by path and reports whether it existed.
func (p *ParameterSet) Delete(path string) bool {
	parent, seg, err := p.resolveParent(path)
	if err != nil || seg.HasIndex() || !parent.Has(seg.Name) {
		return false
	}
	delete(parent.values, seg.Name)
	for i, n := range parent.names {
		if n == seg.Name {
			parent.names = append(parent.names[:i], parent.names[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the value addressed by path.
func (p *ParameterSet) Get(path string) (Value, error) {
	parent, seg, err := p.resolveParent(path)
	if err != nil {
		return Value{}, err
	}
	v, ok := parent.values[seg.Name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrUndeclaredField, path)
	}
	if seg.HasIndex() {
		return v.Index(seg.Index)
	}
	return v.clone(), nil
}

// Lookup is Get without the error detail.
func (p *ParameterSet) Lookup(path string) (Value, bool) {
	v, err := p.Get(path)
	return v, err == nil
}

// Nested returns the nested parameter set addressed by path, by reference, so
// callers can mutate it in place.
func (p *ParameterSet) Nested(path string) (*ParameterSet, error) {
	parsed, err := fieldpath.Parse(path)
	if err != nil {
		return nil, err
	}
	return p.descend(parsed.Segments)
}

// Set overrides an existing field. It fails with ErrUndeclaredField if the
// field does not exist.
func (p *ParameterSet) Set(path string, v Value) error {
	return p.Assign(path, v, false)
}

// Assign overrides the field at path, or declares it when declare is true and
// the field does not exist yet. Overrides must keep the field's type; numeric
// values are widened where lossless.
func (p *ParameterSet) Assign(path string, v Value, declare bool) error {
	parent, seg, err := p.resolveParent(path)
	if err != nil {
		return err
	}

	existing, ok := parent.values[seg.Name]
	if seg.HasIndex() {
		if !ok {
			return fmt.Errorf("%w: %q", ErrUndeclaredField, path)
		}
		return setIndex(existing, seg.Index, v, path)
	}

	if !ok {
		if !declare {
			return fmt.Errorf("%w: %q", ErrUndeclaredField, path)
		}
		if !nameRegex.MatchString(seg.Name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, seg.Name)
		}
		parent.put(seg.Name, v.clone())
		return nil
	}

	converted, err := conform(existing, v)
	if err != nil {
		return fmt.Errorf("field %q: %w", path, err)
	}
	parent.put(seg.Name, converted)
	return nil
}

// conform converts v to the type of existing, keeping existing's trackedness
// unless v is explicitly untracked.
func conform(existing, v Value) (Value, error) {
	if existing.vector != v.vector {
		return Value{}, fmt.Errorf("%w: have %s, want %s", ErrKindMismatch, v.TypeName(), existing.TypeName())
	}
	out, err := Coerce(v.clone(), existing.kind)
	if err != nil {
		return Value{}, err
	}
	out.untracked = existing.untracked || v.untracked
	return out, nil
}

func setIndex(vec Value, i int, v Value, path string) error {
	if !vec.vector {
		return fmt.Errorf("field %q: %w", path, ErrNotAVector)
	}
	if i < 0 || i >= len(vec.items) {
		return fmt.Errorf("field %q: %w: %d of %d", path, ErrIndexOutOfRange, i, len(vec.items))
	}
	if v.vector {
		return fmt.Errorf("field %q: %w: cannot store %s in a vector element", path, ErrKindMismatch, v.TypeName())
	}
	c, err := Coerce(v.clone(), vec.kind)
	if err != nil {
		return fmt.Errorf("field %q: %w", path, err)
	}
	vec.items[i] = c.items[0]
	return nil
}

// Append adds the items of v (a scalar or a vector) to the vector field at
// path. When the field is undeclared it is created from v only if declare is
// true.
func (p *ParameterSet) Append(path string, v Value, declare bool) error {
	parent, seg, err := p.resolveParent(path)
	if err != nil {
		return err
	}
	if seg.HasIndex() {
		return fmt.Errorf("field %q: cannot append to a vector element", path)
	}

	existing, ok := parent.values[seg.Name]
	if !ok {
		if !declare {
			return fmt.Errorf("%w: %q", ErrUndeclaredField, path)
		}
		if !nameRegex.MatchString(seg.Name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, seg.Name)
		}
		created := v.clone()
		created.vector = true
		parent.put(seg.Name, created)
		return nil
	}
	if !existing.vector {
		return fmt.Errorf("field %q: %w", path, ErrNotAVector)
	}

	add, err := Coerce(v.clone(), existing.kind)
	if err != nil {
		return fmt.Errorf("field %q: %w", path, err)
	}
	existing.items = append(existing.items, add.items...)
	parent.put(seg.Name, existing)
	return nil
}

// RemoveItems deletes every item of the vector field at path equal to one of
// the items of v and returns the number removed.
func (p *ParameterSet) RemoveItems(path string, v Value) (int, error) {
	parent, seg, err := p.resolveParent(path)
	if err != nil {
		return 0, err
	}
	existing, ok := parent.values[seg.Name]
	if !ok || seg.HasIndex() {
		return 0, fmt.Errorf("%w: %q", ErrUndeclaredField, path)
	}
	if !existing.vector {
		return 0, fmt.Errorf("field %q: %w", path, ErrNotAVector)
	}
	drop, err := Coerce(v, existing.kind)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", path, err)
	}

	kept := make([]any, 0, len(existing.items))
	removed := 0
	for _, it := range existing.items {
		match := false
		for _, d := range drop.items {
			if itemEqual(existing.kind, it, d) {
				match = true
				break
			}
		}
		if match {
			removed++
			continue
		}
		kept = append(kept, it)
	}
	existing.items = kept
	parent.put(seg.Name, existing)
	return removed, nil
}

// Override is a single change applied by Clone.
type Override struct {
	Path    string
	Value   Value
	Declare bool
}

// O builds an Override of an existing field.
func O(path string, v Value) Override { return Override{Path: path, Value: v} }

// Clone returns a deep copy of p with the overrides applied in order. The
// receiver is never modified; if any override fails no copy is returned.
func (p *ParameterSet) Clone(overrides ...Override) (*ParameterSet, error) {
	c := p.clone()
	for _, o := range overrides {
		if err := c.Assign(o.Path, o.Value, o.Declare); err != nil {
			return nil, fmt.Errorf("clone override %q: %w", o.Path, err)
		}
	}
	return c, nil
}

func (p *ParameterSet) clone() *ParameterSet {
	c := New()
	if p == nil {
		return c
	}
	c.names = append(c.names, p.names...)
	for name, v := range p.values {
		c.values[name] = v.clone()
	}
	return c
}

// Equal reports whether both sets hold the same fields in the same order.
func (p *ParameterSet) Equal(o *ParameterSet) bool {
	if p == nil || o == nil {
		return p == o
	}
	if len(p.names) != len(o.names) {
		return false
	}
	for i, name := range p.names {
		if o.names[i] != name || !p.values[name].Equal(o.values[name]) {
			return false
		}
	}
	return true
}

// Walk visits every field depth-first in declaration order, descending into
// nested sets and vpset elements. The path passed to fn is canonical.
func (p *ParameterSet) Walk(fn func(path string, v Value) error) error {
	return p.walk("", fn)
}

func (p *ParameterSet) walk(prefix string, fn func(string, Value) error) error {
	for _, name := range p.names {
		v := p.values[name]
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if err := fn(path, v); err != nil {
			return err
		}
		if v.kind != KindPSet {
			continue
		}
		for i, it := range v.items {
			sub := path
			if v.vector {
				sub = fmt.Sprintf("%s[%d]", path, i)
			}
			if err := it.(*ParameterSet).walk(sub, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// InputTags collects every InputTag held anywhere in the set.
func (p *ParameterSet) InputTags() []InputTag {
	var tags []InputTag
	_ = p.Walk(func(_ string, v Value) error {
		if v.kind == KindInputTag {
			for _, it := range v.items {
				tags = append(tags, it.(InputTag))
			}
		}
		return nil
	})
	return tags
}

// String renders the set on one line, e.g. `{threshold = 250, mode = "text"}`.
func (p *ParameterSet) String() string {
	if p == nil {
		return "{}"
	}
	parts := make([]string, len(p.names))
	for i, name := range p.names {
		parts[i] = name + " = " + p.values[name].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// resolveParent walks all but the last segment of path and returns the set
// that holds the final segment.
func (p *ParameterSet) resolveParent(path string) (*ParameterSet, fieldpath.Segment, error) {
	parsed, err := fieldpath.Parse(path)
	if err != nil {
		return nil, fieldpath.Segment{}, err
	}
	segs := parsed.Segments
	parent, err := p.descend(segs[:len(segs)-1])
	if err != nil {
		return nil, fieldpath.Segment{}, fmt.Errorf("field %q: %w", path, err)
	}
	return parent, segs[len(segs)-1], nil
}

func (p *ParameterSet) descend(segs []fieldpath.Segment) (*ParameterSet, error) {
	cur := p
	for _, seg := range segs {
		v, ok := cur.values[seg.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUndeclaredField, seg.Name)
		}
		if v.kind != KindPSet {
			return nil, fmt.Errorf("%w: %q is %s", ErrNotAPSet, seg.Name, v.TypeName())
		}
		switch {
		case v.vector && !seg.HasIndex():
			return nil, fmt.Errorf("%w: %q is a vpset and needs an index", ErrNotAPSet, seg.Name)
		case !v.vector && seg.HasIndex():
			return nil, fmt.Errorf("%w: %q", ErrNotAVector, seg.Name)
		case v.vector:
			if seg.Index >= len(v.items) {
				return nil, fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, seg.Name, seg.Index)
			}
			cur = v.items[seg.Index].(*ParameterSet)
		default:
			cur = v.items[0].(*ParameterSet)
		}
	}
	return cur, nil
}
