package pset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a typed parameter value: a scalar or a vector of one Kind.
//
// Items are stored as bool, int64 (int32/int64), uint64 (uint32/uint64),
// float64, string, InputTag or *ParameterSet. A scalar has exactly one item.
type Value struct {
	kind      Kind
	vector    bool
	untracked bool
	items     []any
}

func scalar(k Kind, item any) Value { return Value{kind: k, items: []any{item}} }

// Bool returns a tracked bool value.
func Bool(b bool) Value { return scalar(KindBool, b) }

// Int32 returns a tracked int32 value.
func Int32(i int32) Value { return scalar(KindInt32, int64(i)) }

// Uint32 returns a tracked uint32 value.
func Uint32(u uint32) Value { return scalar(KindUint32, uint64(u)) }

// Int64 returns a tracked int64 value.
func Int64(i int64) Value { return scalar(KindInt64, i) }

// Uint64 returns a tracked uint64 value.
func Uint64(u uint64) Value { return scalar(KindUint64, u) }

// Double returns a tracked double value.
func Double(f float64) Value { return scalar(KindDouble, f) }

// String returns a tracked string value.
func String(s string) Value { return scalar(KindString, s) }

// Tag returns a tracked InputTag value.
func Tag(t InputTag) Value { return scalar(KindInputTag, t) }

// PSet returns a tracked nested parameter set value holding a copy of p.
func PSet(p *ParameterSet) Value { return scalar(KindPSet, p.clone()) }

func vector[T any](k Kind, conv func(T) any, vals []T) Value {
	items := make([]any, len(vals))
	for i, v := range vals {
		items[i] = conv(v)
	}
	return Value{kind: k, vector: true, items: items}
}

// VBool returns a tracked vector of bools.
func VBool(vals ...bool) Value { return vector(KindBool, func(b bool) any { return b }, vals) }

// VInt32 returns a tracked vector of int32.
func VInt32(vals ...int32) Value { return vector(KindInt32, func(i int32) any { return int64(i) }, vals) }

// VUint32 returns a tracked vector of uint32.
func VUint32(vals ...uint32) Value {
	return vector(KindUint32, func(u uint32) any { return uint64(u) }, vals)
}

// VInt64 returns a tracked vector of int64.
func VInt64(vals ...int64) Value { return vector(KindInt64, func(i int64) any { return i }, vals) }

// VUint64 returns a tracked vector of uint64.
func VUint64(vals ...uint64) Value { return vector(KindUint64, func(u uint64) any { return u }, vals) }

// VDouble returns a tracked vector of doubles.
func VDouble(vals ...float64) Value { return vector(KindDouble, func(f float64) any { return f }, vals) }

// VString returns a tracked vector of strings.
func VString(vals ...string) Value { return vector(KindString, func(s string) any { return s }, vals) }

// VTag returns a tracked vector of InputTags.
func VTag(vals ...InputTag) Value { return vector(KindInputTag, func(t InputTag) any { return t }, vals) }

// VPSet returns a tracked vector of parameter sets, each copied.
func VPSet(vals ...*ParameterSet) Value {
	return vector(KindPSet, func(p *ParameterSet) any { return p.clone() }, vals)
}

// EmptyVector returns a tracked, empty vector of the given kind.
func EmptyVector(k Kind) Value { return Value{kind: k, vector: true, items: []any{}} }

// Untracked returns a copy of v marked untracked.
func Untracked(v Value) Value {
	c := v.clone()
	c.untracked = true
	return c
}

// Kind returns the element kind.
func (v Value) Kind() Kind { return v.kind }

// IsVector reports whether v is a vector.
func (v Value) IsVector() bool { return v.vector }

// IsTracked reports whether v is tracked.
func (v Value) IsTracked() bool { return !v.untracked }

// IsZero reports whether v is the zero Value, which holds nothing.
func (v Value) IsZero() bool { return v.items == nil && !v.vector && v.kind == 0 }

// Len returns the number of items: 1 for scalars.
func (v Value) Len() int { return len(v.items) }

// TypeName returns the configuration type name, e.g. "int32" or "vstring".
func (v Value) TypeName() string {
	if v.vector {
		return "v" + v.kind.String()
	}
	return v.kind.String()
}

// Items returns a copy of the raw items. Nested parameter sets are cloned.
func (v Value) Items() []any {
	return v.clone().items
}

// Index returns item i of a vector as a scalar Value.
func (v Value) Index(i int) (Value, error) {
	if !v.vector {
		return Value{}, ErrNotAVector
	}
	if i < 0 || i >= len(v.items) {
		return Value{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(v.items))
	}
	out := Value{kind: v.kind, untracked: v.untracked, items: []any{v.items[i]}}
	return out.clone(), nil
}

func (v Value) want(k Kind, vec bool) error {
	if v.kind != k || v.vector != vec {
		want := k.String()
		if vec {
			want = "v" + want
		}
		return fmt.Errorf("%w: have %s, want %s", ErrKindMismatch, v.TypeName(), want)
	}
	return nil
}

// AsBool returns the scalar bool.
func (v Value) AsBool() (bool, error) {
	if err := v.want(KindBool, false); err != nil {
		return false, err
	}
	return v.items[0].(bool), nil
}

// AsInt returns a scalar int32 or int64.
func (v Value) AsInt() (int64, error) {
	if v.vector || (v.kind != KindInt32 && v.kind != KindInt64) {
		return 0, fmt.Errorf("%w: have %s, want a signed integer", ErrKindMismatch, v.TypeName())
	}
	return v.items[0].(int64), nil
}

// AsUint returns a scalar uint32 or uint64.
func (v Value) AsUint() (uint64, error) {
	if v.vector || (v.kind != KindUint32 && v.kind != KindUint64) {
		return 0, fmt.Errorf("%w: have %s, want an unsigned integer", ErrKindMismatch, v.TypeName())
	}
	return v.items[0].(uint64), nil
}

// AsDouble returns the scalar double.
func (v Value) AsDouble() (float64, error) {
	if err := v.want(KindDouble, false); err != nil {
		return 0, err
	}
	return v.items[0].(float64), nil
}

// AsString returns the scalar string.
func (v Value) AsString() (string, error) {
	if err := v.want(KindString, false); err != nil {
		return "", err
	}
	return v.items[0].(string), nil
}

// AsInputTag returns the scalar InputTag.
func (v Value) AsInputTag() (InputTag, error) {
	if err := v.want(KindInputTag, false); err != nil {
		return InputTag{}, err
	}
	return v.items[0].(InputTag), nil
}

// AsPSet returns a copy of the nested parameter set.
func (v Value) AsPSet() (*ParameterSet, error) {
	if err := v.want(KindPSet, false); err != nil {
		return nil, err
	}
	return v.items[0].(*ParameterSet).clone(), nil
}

// Strings returns the items of a vstring.
func (v Value) Strings() ([]string, error) {
	if err := v.want(KindString, true); err != nil {
		return nil, err
	}
	out := make([]string, len(v.items))
	for i, it := range v.items {
		out[i] = it.(string)
	}
	return out, nil
}

// Ints returns the items of a vint32 or vint64.
func (v Value) Ints() ([]int64, error) {
	if !v.vector || (v.kind != KindInt32 && v.kind != KindInt64) {
		return nil, fmt.Errorf("%w: have %s, want a signed integer vector", ErrKindMismatch, v.TypeName())
	}
	out := make([]int64, len(v.items))
	for i, it := range v.items {
		out[i] = it.(int64)
	}
	return out, nil
}

// Doubles returns the items of a vdouble.
func (v Value) Doubles() ([]float64, error) {
	if err := v.want(KindDouble, true); err != nil {
		return nil, err
	}
	out := make([]float64, len(v.items))
	for i, it := range v.items {
		out[i] = it.(float64)
	}
	return out, nil
}

// InputTags returns the items of a vinputtag.
func (v Value) InputTags() ([]InputTag, error) {
	if err := v.want(KindInputTag, true); err != nil {
		return nil, err
	}
	out := make([]InputTag, len(v.items))
	for i, it := range v.items {
		out[i] = it.(InputTag)
	}
	return out, nil
}

// PSets returns copies of the items of a vpset.
func (v Value) PSets() ([]*ParameterSet, error) {
	if err := v.want(KindPSet, true); err != nil {
		return nil, err
	}
	out := make([]*ParameterSet, len(v.items))
	for i, it := range v.items {
		out[i] = it.(*ParameterSet).clone()
	}
	return out, nil
}

// Equal reports whether two values have the same type, trackedness and items.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.vector != o.vector || v.untracked != o.untracked || len(v.items) != len(o.items) {
		return false
	}
	for i := range v.items {
		if !itemEqual(v.kind, v.items[i], o.items[i]) {
			return false
		}
	}
	return true
}

func itemEqual(k Kind, a, b any) bool {
	if k == KindPSet {
		return a.(*ParameterSet).Equal(b.(*ParameterSet))
	}
	return a == b
}

// clone deep-copies nested parameter sets; other items are immutable.
func (v Value) clone() Value {
	if v.items == nil {
		return v
	}
	items := make([]any, len(v.items))
	for i, it := range v.items {
		if p, ok := it.(*ParameterSet); ok {
			items[i] = p.clone()
			continue
		}
		items[i] = it
	}
	v.items = items
	return v
}

// String renders v for logs and error messages.
func (v Value) String() string {
	parts := make([]string, len(v.items))
	for i, it := range v.items {
		parts[i] = formatItem(v.kind, it)
	}
	s := strings.Join(parts, ", ")
	if v.vector {
		s = "[" + s + "]"
	}
	if v.untracked {
		s = "untracked(" + s + ")"
	}
	return s
}

func formatItem(k Kind, it any) string {
	switch k {
	case KindString:
		return strconv.Quote(it.(string))
	case KindInputTag:
		return strconv.Quote(it.(InputTag).String())
	case KindDouble:
		return strconv.FormatFloat(it.(float64), 'g', -1, 64)
	case KindPSet:
		return it.(*ParameterSet).String()
	default:
		return fmt.Sprint(it)
	}
}

// Coerce converts v to kind k where that is lossless: integers widen to other
// integer kinds within range or to double, and strings parse as InputTags.
// A value already of kind k is returned unchanged.
func Coerce(v Value, k Kind) (Value, error) {
	if v.kind == k {
		return v, nil
	}
	out := Value{kind: k, vector: v.vector, untracked: v.untracked, items: make([]any, len(v.items))}
	for i, it := range v.items {
		c, err := coerceItem(v.kind, k, it)
		if err != nil {
			return Value{}, err
		}
		out.items[i] = c
	}
	return out, nil
}

func coerceItem(from, to Kind, it any) (any, error) {
	mismatch := fmt.Errorf("%w: cannot convert %s to %s", ErrKindMismatch, from, to)

	if from == KindString && to == KindInputTag {
		tag, err := ParseInputTag(it.(string))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrKindMismatch, err)
		}
		return tag, nil
	}
	if !from.IsInteger() || !to.IsNumeric() {
		return nil, mismatch
	}

	var signed int64
	var unsigned uint64
	negative := false
	switch n := it.(type) {
	case int64:
		signed, negative = n, n < 0
		if !negative {
			unsigned = uint64(n)
		}
	case uint64:
		unsigned = n
		if n > math.MaxInt64 {
			signed = math.MaxInt64
		} else {
			signed = int64(n)
		}
	}

	outOfRange := fmt.Errorf("%w: %v out of range for %s", ErrKindMismatch, it, to)
	switch to {
	case KindDouble:
		if negative {
			return float64(signed), nil
		}
		return float64(unsigned), nil
	case KindInt32:
		if signed < math.MinInt32 || signed > math.MaxInt32 || (!negative && unsigned > math.MaxInt32) {
			return nil, outOfRange
		}
		return signed, nil
	case KindInt64:
		if !negative && unsigned > math.MaxInt64 {
			return nil, outOfRange
		}
		return signed, nil
	case KindUint32:
		if negative || unsigned > math.MaxUint32 {
			return nil, outOfRange
		}
		return unsigned, nil
	case KindUint64:
		if negative {
			return nil, outOfRange
		}
		return unsigned, nil
	}
	return nil, mismatch
}

// Vector builds a tracked vector from scalar elements. Elements of different
// numeric kinds are widened to a common kind, strings mixed with InputTags
// become InputTags. An empty list gives an empty vector of strings.
func Vector(elems ...Value) (Value, error) {
	if len(elems) == 0 {
		return EmptyVector(KindString), nil
	}
	k := elems[0].kind
	for _, e := range elems {
		if e.vector {
			return Value{}, fmt.Errorf("%w: vectors cannot be nested", ErrKindMismatch)
		}
		common, ok := commonKind(k, e.kind)
		if !ok {
			return Value{}, fmt.Errorf("%w: cannot mix %s and %s in one vector", ErrKindMismatch, k, e.kind)
		}
		k = common
	}

	out := Value{kind: k, vector: true, items: make([]any, len(elems))}
	for i, e := range elems {
		c, err := Coerce(e.clone(), k)
		if err != nil {
			return Value{}, err
		}
		out.items[i] = c.items[0]
	}
	return out, nil
}

// integer kinds from narrowest to widest
var integerRank = map[Kind]int{KindInt32: 0, KindUint32: 1, KindInt64: 2, KindUint64: 3}

func commonKind(a, b Kind) (Kind, bool) {
	switch {
	case a == b:
		return a, true
	case a.IsNumeric() && b.IsNumeric():
		if a == KindDouble || b == KindDouble {
			return KindDouble, true
		}
		if integerRank[a] > integerRank[b] {
			return a, true
		}
		return b, true
	case (a == KindString && b == KindInputTag) || (a == KindInputTag && b == KindString):
		return KindInputTag, true
	}
	return 0, false
}
