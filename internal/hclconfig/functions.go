package hclconfig

import (
	"fmt"

	"github.com/specialistvlad/procgrid/internal/naming"
	"github.com/specialistvlad/procgrid/internal/pset"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// kindMark records the parameter kind requested by a kind function.
type kindMark struct{ kind pset.Kind }

// untrackedMark records a value wrapped in untracked().
type untrackedMark struct{}

// functions returns the function table available to configuration files.
func functions(lookup naming.LookupFunc) map[string]function.Function {
	fns := map[string]function.Function{
		"untracked":   untrackedFunc,
		"tag":         kindFunc(pset.KindInputTag),
		"empty":       emptyFunc,
		"env":         envFunc(lookup),
		"output_file": outputFileFunc,
		"sqlite_file": sqliteFileFunc,
		"frontier":    frontierFunc,

		"concat":  stdlib.ConcatFunc,
		"format":  stdlib.FormatFunc,
		"join":    stdlib.JoinFunc,
		"lower":   stdlib.LowerFunc,
		"upper":   stdlib.UpperFunc,
		"replace": stdlib.ReplaceFunc,
		"split":   stdlib.SplitFunc,
		"length":  stdlib.LengthFunc,
	}
	for _, k := range []pset.Kind{pset.KindInt32, pset.KindUint32, pset.KindInt64, pset.KindUint64, pset.KindDouble} {
		fns[k.String()] = kindFunc(k)
	}
	return fns
}

var untrackedFunc = function.New(&function.Spec{
	Description: "Marks a parameter value untracked.",
	Params: []function.Parameter{{
		Name:             "value",
		Type:             cty.DynamicPseudoType,
		AllowDynamicType: true,
	}},
	Type: func(args []cty.Value) (cty.Type, error) { return args[0].Type(), nil },
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return args[0].Mark(untrackedMark{}), nil
	},
})

// kindFunc returns a function that checks its argument, a value or a list of
// values, against kind k and marks it with that kind.
func kindFunc(k pset.Kind) function.Function {
	return function.New(&function.Spec{
		Description: fmt.Sprintf("Gives a value or a list of values the %s kind.", k),
		Params: []function.Parameter{{
			Name:             "value",
			Type:             cty.DynamicPseudoType,
			AllowDynamicType: true,
		}},
		Type: func(args []cty.Value) (cty.Type, error) { return args[0].Type(), nil },
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			v := args[0]
			if v.Type().IsListType() || v.Type().IsTupleType() || v.Type().IsSetType() {
				for it := v.ElementIterator(); it.Next(); {
					_, el := it.Element()
					if err := checkKind(el, k); err != nil {
						return cty.NilVal, err
					}
				}
			} else if err := checkKind(v, k); err != nil {
				return cty.NilVal, err
			}
			return v.Mark(kindMark{k}), nil
		},
	})
}

func checkKind(v cty.Value, k pset.Kind) error {
	if v.IsNull() || !v.IsKnown() {
		return fmt.Errorf("a %s value is required", k)
	}
	var err error
	switch k {
	case pset.KindInputTag:
		if v.Type() != cty.String {
			return fmt.Errorf("an InputTag must be a string like \"label:instance:process\"")
		}
		_, err = pset.ParseInputTag(v.AsString())
	case pset.KindInt32:
		var n int32
		err = gocty.FromCtyValue(v, &n)
	case pset.KindUint32:
		var n uint32
		err = gocty.FromCtyValue(v, &n)
	case pset.KindInt64:
		var n int64
		err = gocty.FromCtyValue(v, &n)
	case pset.KindUint64:
		var n uint64
		err = gocty.FromCtyValue(v, &n)
	case pset.KindDouble:
		var f float64
		err = gocty.FromCtyValue(v, &f)
	}
	if err != nil {
		return fmt.Errorf("invalid %s: %w", k, err)
	}
	return nil
}

var emptyFunc = function.New(&function.Spec{
	Description: "Returns an empty vector of the named kind, e.g. empty(\"uint32\").",
	Params:      []function.Parameter{{Name: "kind", Type: cty.String}},
	Type:        function.StaticReturnType(cty.EmptyTuple),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		k, err := pset.ParseKind(args[0].AsString())
		if err != nil {
			return cty.NilVal, err
		}
		return cty.EmptyTupleVal.Mark(kindMark{k}), nil
	},
})

func envFunc(lookup naming.LookupFunc) function.Function {
	return function.New(&function.Spec{
		Description: "Returns an environment variable, failing when it is unset.",
		Params:      []function.Parameter{{Name: "name", Type: cty.String}},
		Type:        function.StaticReturnType(cty.String),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			v, err := naming.Env(lookup, args[0].AsString())
			if err != nil {
				return cty.NilVal, err
			}
			return cty.StringVal(v), nil
		},
	})
}

var outputFileFunc = function.New(&function.Spec{
	Description: "Returns <base>/output/<name>_<sample>.root.",
	Params: []function.Parameter{
		{Name: "base", Type: cty.String},
		{Name: "name", Type: cty.String},
		{Name: "sample", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		s, err := naming.OutputFile(args[0].AsString(), args[1].AsString(), args[2].AsString())
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(s), nil
	},
})

var sqliteFileFunc = function.New(&function.Spec{
	Description: "Returns a sqlite_file: conditions connect string.",
	Params:      []function.Parameter{{Name: "path", Type: cty.String}},
	Type:        function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		s, err := naming.SQLiteConnect(args[0].AsString())
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(s), nil
	},
})

var frontierFunc = function.New(&function.Spec{
	Description: "Returns a frontier:// conditions connect string.",
	Params: []function.Parameter{
		{Name: "service", Type: cty.String},
		{Name: "schema", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		s, err := naming.FrontierConnect(args[0].AsString(), args[1].AsString())
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(s), nil
	},
})
