package hclconfig

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/procgrid/internal/pset"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// valueOf converts an attribute expression into a parameter value. Object
// and tuple constructors, untracked() and pset references are read from the
// syntax tree so field order and kinds survive; everything else is evaluated.
func (a *assembler) valueOf(expr hcl.Expression) (pset.Value, hcl.Diagnostics) {
	switch e := expr.(type) {
	case *hclsyntax.ParenthesesExpr:
		return a.valueOf(e.Expression)

	case *hclsyntax.ObjectConsExpr:
		ps := pset.New()
		var diags hcl.Diagnostics
		for _, item := range e.Items {
			name, kdiags := keyName(item.KeyExpr)
			diags = append(diags, kdiags...)
			if kdiags.HasErrors() {
				continue
			}
			v, vdiags := a.valueOf(item.ValueExpr)
			diags = append(diags, vdiags...)
			if vdiags.HasErrors() {
				continue
			}
			if err := ps.Declare(name, v); err != nil {
				diags = append(diags, errorDiag("Invalid parameter", err.Error(), item.KeyExpr.Range()))
			}
		}
		return pset.PSet(ps), diags

	case *hclsyntax.TupleConsExpr:
		elems := make([]pset.Value, 0, len(e.Exprs))
		var diags hcl.Diagnostics
		for _, el := range e.Exprs {
			v, d := a.valueOf(el)
			diags = append(diags, d...)
			if !d.HasErrors() {
				elems = append(elems, v)
			}
		}
		if diags.HasErrors() {
			return pset.Value{}, diags
		}
		vec, err := pset.Vector(elems...)
		if err != nil {
			return pset.Value{}, append(diags, errorDiag("Invalid vector", err.Error(), expr.Range()))
		}
		return vec, diags

	case *hclsyntax.FunctionCallExpr:
		if e.Name == "untracked" && len(e.Args) == 1 {
			v, diags := a.valueOf(e.Args[0])
			if diags.HasErrors() {
				return pset.Value{}, diags
			}
			return pset.Untracked(v), diags
		}

	case *hclsyntax.ScopeTraversalExpr:
		if e.Traversal.RootName() == "pset" {
			return a.psetReference(e)
		}
	}

	val, diags := expr.Value(a.evalContext())
	if diags.HasErrors() {
		return pset.Value{}, diags
	}
	v, err := fromCty(val)
	if err != nil {
		return pset.Value{}, append(diags, errorDiag("Invalid parameter value", err.Error(), expr.Range()))
	}
	return v, diags
}

// psetReference resolves `pset.<name>[.field...]` to a copy of a declared
// parameter set or one of its fields.
func (a *assembler) psetReference(e *hclsyntax.ScopeTraversalExpr) (pset.Value, hcl.Diagnostics) {
	rng := e.Range()
	if len(e.Traversal) < 2 {
		return pset.Value{}, hcl.Diagnostics{errorDiag("Invalid pset reference", "Expected pset.<name>.", rng)}
	}
	nameStep, ok := e.Traversal[1].(hcl.TraverseAttr)
	if !ok {
		return pset.Value{}, hcl.Diagnostics{errorDiag("Invalid pset reference", "Expected pset.<name>.", rng)}
	}
	ps, ok := a.proc.PSet(nameStep.Name)
	if !ok {
		return pset.Value{}, hcl.Diagnostics{errorDiag("Unknown parameter set", fmt.Sprintf("No pset named %q has been declared.", nameStep.Name), rng)}
	}
	if len(e.Traversal) == 2 {
		return pset.PSet(ps), nil
	}

	var path strings.Builder
	for _, step := range e.Traversal[2:] {
		switch s := step.(type) {
		case hcl.TraverseAttr:
			if path.Len() > 0 {
				path.WriteByte('.')
			}
			path.WriteString(s.Name)
		case hcl.TraverseIndex:
			var i int
			if err := gocty.FromCtyValue(s.Key, &i); err != nil {
				return pset.Value{}, hcl.Diagnostics{errorDiag("Invalid pset reference", "Indexes must be whole numbers.", rng)}
			}
			fmt.Fprintf(&path, "[%d]", i)
		default:
			return pset.Value{}, hcl.Diagnostics{errorDiag("Invalid pset reference", "Only field names and indexes may follow pset.<name>.", rng)}
		}
	}
	v, err := ps.Get(path.String())
	if err != nil {
		return pset.Value{}, hcl.Diagnostics{errorDiag("Invalid pset reference", err.Error(), rng)}
	}
	return v, nil
}

// fromCty converts an evaluated value. Kind and untracked marks set by the
// configuration functions decide the kind; unmarked whole numbers are int32
// (or wider when they do not fit) and fractional numbers are double.
func fromCty(val cty.Value) (pset.Value, error) {
	return fromCtyKind(val, nil)
}

func fromCtyKind(val cty.Value, inherited *pset.Kind) (pset.Value, error) {
	val, marks := val.Unmark()
	kind := inherited
	untracked := false
	for m := range marks {
		switch mk := m.(type) {
		case kindMark:
			if kind != nil && *kind != mk.kind && inherited == nil {
				return pset.Value{}, fmt.Errorf("conflicting kinds %s and %s", *kind, mk.kind)
			}
			k := mk.kind
			kind = &k
		case untrackedMark:
			untracked = true
		}
	}

	v, err := convertValue(val, kind)
	if err != nil {
		return pset.Value{}, err
	}
	if untracked {
		v = pset.Untracked(v)
	}
	return v, nil
}

func convertValue(val cty.Value, kind *pset.Kind) (pset.Value, error) {
	if val.IsNull() {
		return pset.Value{}, fmt.Errorf("null is not a parameter value")
	}
	if !val.IsWhollyKnown() {
		return pset.Value{}, fmt.Errorf("value is not known")
	}
	ty := val.Type()

	switch {
	case ty == cty.Bool:
		if kind != nil && *kind != pset.KindBool {
			return pset.Value{}, fmt.Errorf("a bool cannot be %s", *kind)
		}
		return pset.Bool(val.True()), nil

	case ty == cty.String:
		s := val.AsString()
		if kind == nil || *kind == pset.KindString {
			return pset.String(s), nil
		}
		if *kind != pset.KindInputTag {
			return pset.Value{}, fmt.Errorf("a string cannot be %s", *kind)
		}
		t, err := pset.ParseInputTag(s)
		if err != nil {
			return pset.Value{}, err
		}
		return pset.Tag(t), nil

	case ty == cty.Number:
		return numberValue(val, kind)

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		elems := make([]pset.Value, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, el := it.Element()
			v, err := fromCtyKind(el, kind)
			if err != nil {
				return pset.Value{}, err
			}
			elems = append(elems, v)
		}
		if len(elems) == 0 && kind != nil {
			return pset.EmptyVector(*kind), nil
		}
		vec, err := pset.Vector(elems...)
		if err != nil {
			return pset.Value{}, err
		}
		if kind != nil && vec.Kind() != *kind {
			return pset.Coerce(vec, *kind)
		}
		return vec, nil

	case ty.IsObjectType() || ty.IsMapType():
		// Evaluated objects have no field order; fields are sorted by name.
		m := val.AsValueMap()
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		ps := pset.New()
		for _, name := range names {
			v, err := fromCty(m[name])
			if err != nil {
				return pset.Value{}, fmt.Errorf("field %q: %w", name, err)
			}
			if err := ps.Declare(name, v); err != nil {
				return pset.Value{}, err
			}
		}
		return pset.PSet(ps), nil
	}
	return pset.Value{}, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}

func numberValue(val cty.Value, kind *pset.Kind) (pset.Value, error) {
	if kind == nil {
		bf := val.AsBigFloat()
		if !bf.IsInt() {
			var f float64
			err := gocty.FromCtyValue(val, &f)
			return pset.Double(f), err
		}
		k := pset.KindInt32
		switch {
		case fits(bf, pset.KindInt32):
		case fits(bf, pset.KindInt64):
			k = pset.KindInt64
		default:
			k = pset.KindUint64
		}
		kind = &k
	}

	switch *kind {
	case pset.KindInt32:
		var n int32
		err := gocty.FromCtyValue(val, &n)
		return pset.Int32(n), err
	case pset.KindUint32:
		var n uint32
		err := gocty.FromCtyValue(val, &n)
		return pset.Uint32(n), err
	case pset.KindInt64:
		var n int64
		err := gocty.FromCtyValue(val, &n)
		return pset.Int64(n), err
	case pset.KindUint64:
		var n uint64
		err := gocty.FromCtyValue(val, &n)
		return pset.Uint64(n), err
	case pset.KindDouble:
		var f float64
		err := gocty.FromCtyValue(val, &f)
		return pset.Double(f), err
	}
	return pset.Value{}, fmt.Errorf("a number cannot be %s", *kind)
}

func fits(bf *big.Float, k pset.Kind) bool {
	if k == pset.KindInt32 {
		i, acc := bf.Int64()
		return acc == big.Exact && i >= -1<<31 && i < 1<<31
	}
	_, acc := bf.Int64()
	return acc == big.Exact
}

// keyName returns the field name of an object constructor key: a bare
// identifier or a quoted string.
func keyName(expr hcl.Expression) (string, hcl.Diagnostics) {
	if kw := hcl.ExprAsKeyword(expr); kw != "" {
		return kw, nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if v.Type() != cty.String || v.IsNull() {
		return "", hcl.Diagnostics{errorDiag("Invalid field name", "Field names must be identifiers or strings.", expr.Range())}
	}
	return v.AsString(), nil
}

func errorDiag(summary, detail string, rng hcl.Range) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  rng.Ptr(),
	}
}
