// This file contains the logic for `describe` blocks, which register module
// descriptions in the process catalog, and for parsing parameter type
// expressions (e.g. `double`, `vector(inputtag)`) into kinds.

package hclconfig

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"github.com/specialistvlad/procgrid/internal/pset"
	"github.com/specialistvlad/procgrid/internal/registry"
)

var describeSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "role", Required: true}},
	Blocks:     []hcl.BlockHeaderSchema{{Type: "param", LabelNames: []string{"name"}}},
}

var paramSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type", Required: true},
		{Name: "default"},
		{Name: "optional"},
		{Name: "untracked"},
	},
}

// describe registers the description declared by a `describe "<Type>"` block.
func (a *assembler) describe(ctx context.Context, block *hcl.Block) hcl.Diagnostics {
	content, diags := block.Body.Content(describeSchema)
	if diags.HasErrors() {
		return diags
	}

	d := &registry.Description{Type: block.Labels[0]}
	if diags := a.decode(content.Attributes["role"].Expr, &d.Role); diags.HasErrors() {
		return diags
	}

	for _, pb := range content.Blocks {
		p, pdiags := a.describeParam(ctx, pb)
		diags = append(diags, pdiags...)
		if !pdiags.HasErrors() {
			d.Params = append(d.Params, p)
		}
	}
	if diags.HasErrors() {
		return diags
	}

	if err := a.proc.Catalog().Register(ctx, d); err != nil {
		return append(diags, errorDiag("Invalid module description", err.Error(), block.DefRange))
	}
	return diags
}

func (a *assembler) describeParam(ctx context.Context, block *hcl.Block) (registry.Param, hcl.Diagnostics) {
	p := registry.Param{Name: block.Labels[0]}
	content, diags := block.Body.Content(paramSchema)
	if diags.HasErrors() {
		return p, diags
	}

	typeExpr := content.Attributes["type"].Expr
	kind, vector, err := typeExprToKind(ctx, typeExpr)
	if err != nil {
		return p, hcl.Diagnostics{errorDiag("Invalid parameter type", err.Error(), typeExpr.Range())}
	}
	p.Kind, p.Vector = kind, vector

	if attr, ok := content.Attributes["optional"]; ok {
		diags = append(diags, a.decode(attr.Expr, &p.Optional)...)
	}
	if attr, ok := content.Attributes["untracked"]; ok {
		diags = append(diags, a.decode(attr.Expr, &p.Untracked)...)
	}
	if attr, ok := content.Attributes["default"]; ok {
		v, vdiags := a.valueOf(attr.Expr)
		diags = append(diags, vdiags...)
		if !vdiags.HasErrors() {
			if p.Untracked {
				v = pset.Untracked(v)
			}
			p.Default = &v
		}
	}
	return p, diags
}

// typeExprToKind converts a parameter type expression into its kind and
// whether it is a vector. Bare kind names and the vector(<kind>) constructor
// are accepted, as are the CMSSW vector names such as vstring.
func typeExprToKind(ctx context.Context, expr hcl.Expression) (pset.Kind, bool, error) {
	logger := ctxlog.FromContext(ctx)

	switch v := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		logger.Debug("Parsing type expression as a function call.", "call", v.Name)
		if v.Name != "vector" {
			return 0, false, fmt.Errorf("unknown type constructor function %q", v.Name)
		}
		if len(v.Args) != 1 {
			return 0, false, fmt.Errorf("vector requires exactly one argument, got %d", len(v.Args))
		}
		elem, vector, err := typeExprToKind(ctx, v.Args[0])
		if err != nil {
			return 0, false, err
		}
		if vector {
			return 0, false, fmt.Errorf("vectors cannot be nested")
		}
		return elem, true, nil

	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return 0, false, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		name := v.Traversal.RootName()
		logger.Debug("Parsing type expression as a keyword.", "keyword", name)
		if k, err := pset.ParseKind(name); err == nil {
			return k, false, nil
		}
		for _, k := range pset.Kinds() {
			if pset.EmptyVector(k).TypeName() == name {
				return k, true, nil
			}
		}
		return 0, false, fmt.Errorf("unknown parameter type %q", name)

	default:
		return 0, false, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}
