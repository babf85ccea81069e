package sequence

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// Parse parses an expression such as `!hltFilter * (reco + ana)`.
func Parse(src string) (*Node, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "<sequence>", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse sequence expression %q: %w", src, diags)
	}
	n, diags := FromHCL(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	return n, nil
}

// FromHCL converts an HCL expression tree into a composition expression
// without evaluating it. Only bare identifiers, `*`, `+`, `!` and
// parentheses are accepted.
func FromHCL(expr hcl.Expression) (*Node, hcl.Diagnostics) {
	switch e := expr.(type) {
	case *hclsyntax.ParenthesesExpr:
		return FromHCL(e.Expression)

	case *hclsyntax.ScopeTraversalExpr:
		if len(e.Traversal) != 1 {
			return nil, invalid(expr, "a sequence element must be a single module or sequence label")
		}
		return Ref(e.Traversal.RootName()), nil

	case *hclsyntax.UnaryOpExpr:
		if e.Op != hclsyntax.OpLogicalNot {
			return nil, invalid(expr, "only `!` may prefix a sequence element")
		}
		inner, diags := FromHCL(e.Val)
		if diags.HasErrors() {
			return nil, diags
		}
		if inner.Op != OpRef || inner.Invert {
			return nil, invalid(expr, "`!` applies to a single filter label")
		}
		return Not(inner.Label), nil

	case *hclsyntax.BinaryOpExpr:
		var op Op
		switch e.Op {
		case hclsyntax.OpMultiply:
			op = OpAnd
		case hclsyntax.OpAdd:
			op = OpAlso
		default:
			return nil, invalid(expr, "sequences combine elements with `*` or `+` only")
		}
		lhs, diags := FromHCL(e.LHS)
		if diags.HasErrors() {
			return nil, diags
		}
		rhs, rdiags := FromHCL(e.RHS)
		diags = append(diags, rdiags...)
		if diags.HasErrors() {
			return nil, diags
		}
		return combine(op, []*Node{lhs, rhs}), diags

	default:
		return nil, invalid(expr, fmt.Sprintf("unsupported sequence expression %T", expr))
	}
}

// LabelsFromHCL reads a tuple of bare labels, e.g. `[jetMatch, muonMatch]`.
func LabelsFromHCL(expr hcl.Expression) ([]string, hcl.Diagnostics) {
	tuple, ok := expr.(*hclsyntax.TupleConsExpr)
	if !ok {
		return nil, invalid(expr, "expected a list of labels")
	}
	var labels []string
	var diags hcl.Diagnostics
	for _, item := range tuple.Exprs {
		n, d := FromHCL(item)
		diags = append(diags, d...)
		if d.HasErrors() {
			continue
		}
		if n.Op != OpRef || n.Invert {
			diags = append(diags, invalid(item, "expected a plain label")...)
			continue
		}
		labels = append(labels, n.Label)
	}
	return labels, diags
}

func invalid(expr hcl.Expression, detail string) hcl.Diagnostics {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Invalid sequence expression",
		Detail:   detail,
		Subject:  expr.Range().Ptr(),
	}}
}
