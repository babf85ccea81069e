package hclconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/procgrid/internal/ctxlog"
	"github.com/specialistvlad/procgrid/internal/process"
	"github.com/specialistvlad/procgrid/internal/pset"
	"github.com/specialistvlad/procgrid/internal/sequence"
	"github.com/specialistvlad/procgrid/internal/steering"
	"github.com/zclconf/go-cty/cty"
)

// assembler executes the statements of one configuration file against the
// process it builds.
type assembler struct {
	loader   *Loader
	file     string
	dir      string
	proc     *process.Process
	locals   map[string]cty.Value
	profiles steering.Profiles
	// cause is the first error behind a failed statement, kept so callers
	// can match it with errors.Is.
	cause error
}

// statement is a top-level attribute or block.
type statement struct {
	attr  *hclsyntax.Attribute
	block *hclsyntax.Block
}

func (s statement) start() int {
	if s.attr != nil {
		return s.attr.SrcRange.Start.Byte
	}
	return s.block.TypeRange.Start.Byte
}

// statements returns the attributes and blocks of body in source order.
func statements(body *hclsyntax.Body) []statement {
	out := make([]statement, 0, len(body.Attributes)+len(body.Blocks))
	for _, attr := range body.Attributes {
		out = append(out, statement{attr: attr})
	}
	for _, block := range body.Blocks {
		out = append(out, statement{block: block})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start() < out[j].start() })
	return out
}

func (a *assembler) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"local": cty.ObjectVal(a.locals)},
		Functions: functions(a.loader.env),
	}
}

// run executes every statement of the file body. Execution stops at the
// first failing statement since later statements usually depend on it.
func (a *assembler) run(ctx context.Context, body *hclsyntax.Body) hcl.Diagnostics {
	for _, st := range statements(body) {
		var diags hcl.Diagnostics
		if st.attr != nil {
			diags = a.attribute(ctx, st.attr)
		} else {
			diags = a.block(ctx, st.block)
		}
		if diags.HasErrors() {
			return diags
		}
	}
	return nil
}

func (a *assembler) attribute(ctx context.Context, attr *hclsyntax.Attribute) hcl.Diagnostics {
	logger := ctxlog.FromContext(ctx)
	rng := attr.SrcRange

	switch attr.Name {
	case "process":
		var name string
		if diags := a.decode(attr.Expr, &name); diags.HasErrors() {
			return diags
		}
		a.proc.SetName(name)

	case "max_events":
		var n int64
		if diags := a.decode(attr.Expr, &n); diags.HasErrors() {
			return diags
		}
		a.proc.SetMaxEvents(n)

	case "load":
		files, diags := a.stringList(attr.Expr)
		if diags.HasErrors() {
			return diags
		}
		for _, f := range files {
			if !filepath.IsAbs(f) {
				f = filepath.Join(a.dir, f)
			}
			logger.Debug("Loading configuration.", "target", f)
			lf, err := a.loader.loadFile(ctx, f, a.file)
			if err != nil {
				return a.fail(err, "Failed to load configuration", rng)
			}
			if err := a.proc.Load(ctx, lf.proc); err != nil {
				return a.fail(err, "Failed to load configuration", rng)
			}
			if a.proc.Name() == "" {
				a.proc.SetName(lf.proc.Name())
			}
			mergeProfiles(&a.profiles, lf.profiles)
		}

	case "remove":
		labels, diags := sequence.LabelsFromHCL(attr.Expr)
		if diags.HasErrors() {
			return diags
		}
		for _, label := range labels {
			n, err := a.proc.Remove(label)
			if err != nil {
				return a.fail(err, "Cannot remove module", rng)
			}
			logger.Debug("Removed module from sequences.", "label", label, "occurrences", n)
		}

	case "delete":
		labels, diags := sequence.LabelsFromHCL(attr.Expr)
		if diags.HasErrors() {
			return diags
		}
		for _, label := range labels {
			if err := a.proc.Delete(label); err != nil {
				return a.fail(err, "Cannot delete entry", rng)
			}
		}

	case "schedule":
		labels, diags := sequence.LabelsFromHCL(attr.Expr)
		if diags.HasErrors() {
			return diags
		}
		a.proc.SetSchedule(labels)

	default:
		return hcl.Diagnostics{errorDiag("Unsupported argument", fmt.Sprintf("An argument named %q is not expected here.", attr.Name), attr.NameRange)}
	}
	return nil
}

func (a *assembler) block(ctx context.Context, block *hclsyntax.Block) hcl.Diagnostics {
	if role, err := process.ParseRole(block.Type); err == nil {
		return a.declareModule(role, block)
	}

	switch block.Type {
	case "locals":
		return a.declareLocals(block)

	case "pset":
		if diags := wantLabels(block, "name"); diags.HasErrors() {
			return diags
		}
		ps, diags := a.bodyToPSet(block.Body)
		if diags.HasErrors() {
			return diags
		}
		return a.check(a.proc.DeclarePSet(block.Labels[0], ps), block)

	case "options":
		if diags := wantLabels(block); diags.HasErrors() {
			return diags
		}
		ps, diags := a.bodyToPSet(block.Body)
		if diags.HasErrors() {
			return diags
		}
		for _, name := range ps.Names() {
			v, _ := ps.Lookup(name)
			if err := a.proc.Options().Assign(name, v, true); err != nil {
				return a.check(err, block)
			}
		}
		return nil

	case "sequence", "path", "endpath":
		return a.declareSequence(block)

	case "clone":
		return a.clone(block)

	case "replace":
		return a.replace(block)

	case "set", "declare", "append", "prune":
		return a.mutate(block)

	case "edit":
		return a.edit(block)

	case "profile":
		return a.profile(block)

	case "describe":
		if diags := wantLabels(block, "type"); diags.HasErrors() {
			return diags
		}
		return a.describe(ctx, block.AsHCLBlock())
	}

	return hcl.Diagnostics{errorDiag("Unsupported block type", fmt.Sprintf("Blocks of type %q are not expected here.", block.Type), block.TypeRange)}
}

func (a *assembler) declareLocals(block *hclsyntax.Block) hcl.Diagnostics {
	if len(block.Body.Blocks) > 0 {
		return hcl.Diagnostics{errorDiag("Unsupported block", "locals may only contain attributes.", block.Body.Blocks[0].TypeRange)}
	}
	for _, st := range statements(block.Body) {
		v, diags := st.attr.Expr.Value(a.evalContext())
		if diags.HasErrors() {
			return diags
		}
		a.locals[st.attr.Name] = v
	}
	return nil
}

func (a *assembler) declareModule(role process.Role, block *hclsyntax.Block) hcl.Diagnostics {
	if role.Labeled() {
		if diags := wantLabels(block, "type", "label"); diags.HasErrors() {
			return diags
		}
	} else if diags := wantLabels(block, "type"); diags.HasErrors() {
		return diags
	}

	params, diags := a.bodyToPSet(block.Body)
	if diags.HasErrors() {
		return diags
	}
	m := process.NewModule(block.Labels[0], role, params)

	switch role {
	case process.RoleSource:
		return a.check(a.proc.SetSource(m), block)
	case process.RoleService:
		return a.check(a.proc.DeclareService(m), block)
	}
	return a.check(a.proc.Declare(block.Labels[1], m), block)
}

func (a *assembler) declareSequence(block *hclsyntax.Block) hcl.Diagnostics {
	if diags := wantLabels(block, "label"); diags.HasErrors() {
		return diags
	}
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return diags
	}
	var root *sequence.Node
	for name, attr := range attrs {
		if name != "modules" {
			return hcl.Diagnostics{errorDiag("Unsupported argument", fmt.Sprintf("An argument named %q is not expected here.", name), attr.NameRange)}
		}
		root, diags = sequence.FromHCL(attr.Expr)
		if diags.HasErrors() {
			return diags
		}
	}

	label := block.Labels[0]
	var err error
	switch block.Type {
	case "sequence":
		err = a.proc.DeclareSequence(label, root)
	case "path":
		err = a.proc.DeclarePath(label, root)
	default:
		err = a.proc.DeclareEndPath(label, root)
	}
	return a.check(err, block)
}

// clone handles `clone "<new>" "<from>"`, copying a module or a pset with
// the body applied as overrides.
func (a *assembler) clone(block *hclsyntax.Block) hcl.Diagnostics {
	if diags := wantLabels(block, "new", "from"); diags.HasErrors() {
		return diags
	}
	newLabel, from := block.Labels[0], block.Labels[1]

	changes, diags := a.changes(block.Body, "", nil)
	if diags.HasErrors() {
		return diags
	}
	overrides := make([]pset.Override, 0, len(changes))
	for _, c := range changes {
		overrides = append(overrides, pset.O(c.path, c.value))
	}

	switch a.proc.Kind(from) {
	case process.EntryModule:
		return a.check(a.proc.CloneModule(newLabel, from, overrides...), block)
	case process.EntryPSet:
		src, _ := a.proc.PSet(from)
		ps, err := src.Clone(overrides...)
		if err != nil {
			return a.check(err, block)
		}
		return a.check(a.proc.DeclarePSet(newLabel, ps), block)
	}
	return a.check(fmt.Errorf("%w: %q is not a module or pset", process.ErrUnknownLabel, from), block)
}

// replace handles `replace "<role>" "<Type>" "<label>"`, which swaps the
// definition behind an existing label.
func (a *assembler) replace(block *hclsyntax.Block) hcl.Diagnostics {
	if diags := wantLabels(block, "role", "type", "label"); diags.HasErrors() {
		return diags
	}
	role, err := process.ParseRole(block.Labels[0])
	if err != nil {
		return a.check(err, block)
	}
	params, diags := a.bodyToPSet(block.Body)
	if diags.HasErrors() {
		return diags
	}
	return a.check(a.proc.Replace(block.Labels[2], process.NewModule(block.Labels[1], role, params)), block)
}

// change is one field update collected from a mutation body.
type change struct {
	path  string
	value pset.Value
	rng   hcl.Range
}

// changes flattens a mutation body into field paths. Nested blocks descend
// into parameter sets; a block label selects a vpset element. When declare
// is non-nil, nested sets missing from it are created first.
func (a *assembler) changes(body *hclsyntax.Body, prefix string, declare *pset.ParameterSet) ([]change, hcl.Diagnostics) {
	var out []change
	for _, st := range statements(body) {
		if st.attr != nil {
			v, diags := a.valueOf(st.attr.Expr)
			if diags.HasErrors() {
				return nil, diags
			}
			out = append(out, change{path: prefix + st.attr.Name, value: v, rng: st.attr.SrcRange})
			continue
		}

		b := st.block
		path := prefix + b.Type
		switch len(b.Labels) {
		case 0:
		case 1:
			path += "[" + b.Labels[0] + "]"
		default:
			return nil, hcl.Diagnostics{errorDiag("Invalid nested block", "A nested block takes at most one label, the element index.", b.LabelRanges[1])}
		}
		if declare != nil && len(b.Labels) == 0 {
			if err := ensureNested(declare, path); err != nil {
				return nil, hcl.Diagnostics{errorDiag("Invalid nested block", err.Error(), b.TypeRange)}
			}
		}
		nested, diags := a.changes(b.Body, path+".", declare)
		if diags.HasErrors() {
			return nil, diags
		}
		out = append(out, nested...)
	}
	return out, nil
}

// ensureNested declares an empty parameter set at path unless a field is
// already there.
func ensureNested(ps *pset.ParameterSet, path string) error {
	if _, ok := ps.Lookup(path); ok {
		return nil
	}
	return ps.Assign(path, pset.PSet(pset.New()), true)
}

// mutate handles set, declare, append and prune blocks. The block label
// names a module, pset, `source`, `options` or a service type, optionally
// followed by a field path.
func (a *assembler) mutate(block *hclsyntax.Block) hcl.Diagnostics {
	if diags := wantLabels(block, "target"); diags.HasErrors() {
		return diags
	}
	label, prefix := splitTarget(block.Labels[0])
	target, err := a.proc.Target(label)
	if err != nil {
		return a.check(err, block)
	}
	if prefix != "" {
		prefix += "."
	}

	body := block.Body
	declare := block.Type == "declare"
	if block.Type == "append" {
		if attr, ok := body.Attributes["declare"]; ok {
			if diags := a.decode(attr.Expr, &declare); diags.HasErrors() {
				return diags
			}
			body = withoutAttribute(body, "declare")
		}
	}

	var declareIn *pset.ParameterSet
	if declare {
		declareIn = target
	}
	changes, diags := a.changes(body, prefix, declareIn)
	if diags.HasErrors() {
		return diags
	}

	for _, c := range changes {
		var err error
		switch block.Type {
		case "set", "declare":
			err = target.Assign(c.path, c.value, declare)
		case "append":
			err = target.Append(c.path, c.value, declare)
		case "prune":
			_, err = target.RemoveItems(c.path, c.value)
		}
		if err != nil {
			return a.fail(err, fmt.Sprintf("Cannot %s %s.%s", block.Type, label, c.path), c.rng)
		}
	}
	return nil
}

// edit handles `edit "<sequence>"` blocks, applying append, remove, replace
// and insert in source order.
func (a *assembler) edit(block *hclsyntax.Block) hcl.Diagnostics {
	if diags := wantLabels(block, "sequence"); diags.HasErrors() {
		return diags
	}
	seq, ok := a.proc.Sequence(block.Labels[0])
	if !ok {
		return a.check(fmt.Errorf("%w: no sequence or path %q", process.ErrUnknownLabel, block.Labels[0]), block)
	}

	for _, st := range statements(block.Body) {
		if st.attr != nil {
			switch st.attr.Name {
			case "append":
				n, diags := sequence.FromHCL(st.attr.Expr)
				if diags.HasErrors() {
					return diags
				}
				seq.Append(n)
			case "remove":
				labels, diags := sequence.LabelsFromHCL(st.attr.Expr)
				if diags.HasErrors() {
					return diags
				}
				for _, label := range labels {
					seq.Remove(label)
				}
			default:
				return hcl.Diagnostics{errorDiag("Unsupported argument", fmt.Sprintf("An argument named %q is not expected in edit.", st.attr.Name), st.attr.NameRange)}
			}
			continue
		}

		switch st.block.Type {
		case "replace":
			for _, r := range statements(st.block.Body) {
				if r.attr == nil {
					return hcl.Diagnostics{errorDiag("Unsupported block", "replace only maps old labels to new labels.", r.block.TypeRange)}
				}
				next := hcl.ExprAsKeyword(r.attr.Expr)
				if next == "" {
					return hcl.Diagnostics{errorDiag("Invalid replacement", "The replacement must be a bare label.", r.attr.Expr.Range())}
				}
				if seq.Replace(r.attr.Name, next) == 0 {
					return hcl.Diagnostics{errorDiag("Invalid replacement", fmt.Sprintf("%q does not appear in %q.", r.attr.Name, block.Labels[0]), r.attr.NameRange)}
				}
			}
		case "insert":
			var index int
			attrs := st.block.Body.Attributes
			indexAttr, ok := attrs["index"]
			modulesAttr, ok2 := attrs["modules"]
			if !ok || !ok2 {
				return hcl.Diagnostics{errorDiag("Invalid insert", "insert requires index and modules.", st.block.TypeRange)}
			}
			if diags := a.decode(indexAttr.Expr, &index); diags.HasErrors() {
				return diags
			}
			n, diags := sequence.FromHCL(modulesAttr.Expr)
			if diags.HasErrors() {
				return diags
			}
			if err := seq.Insert(index, n); err != nil {
				return hcl.Diagnostics{errorDiag("Invalid insert", err.Error(), indexAttr.Expr.Range())}
			}
		default:
			return hcl.Diagnostics{errorDiag("Unsupported block type", fmt.Sprintf("Blocks of type %q are not expected in edit.", st.block.Type), st.block.TypeRange)}
		}
	}
	return nil
}

func (a *assembler) profile(block *hclsyntax.Block) hcl.Diagnostics {
	if diags := wantLabels(block, "name"); diags.HasErrors() {
		return diags
	}
	var p steering.Profile
	if diags := gohcl.DecodeBody(block.Body, a.evalContext(), &p); diags.HasErrors() {
		return diags
	}
	if err := p.Validate(); err != nil {
		return a.check(err, block)
	}
	switch block.Labels[0] {
	case "test":
		a.profiles.Test = p
	case "full":
		a.profiles.Full = p
	default:
		return hcl.Diagnostics{errorDiag("Invalid profile", `A profile is either "test" or "full".`, block.LabelRanges[0])}
	}
	return nil
}

// bodyToPSet reads a block body into a parameter set, fields in source
// order. Nested blocks become nested parameter sets.
func (a *assembler) bodyToPSet(body *hclsyntax.Body) (*pset.ParameterSet, hcl.Diagnostics) {
	ps := pset.New()
	for _, st := range statements(body) {
		if st.attr != nil {
			v, diags := a.valueOf(st.attr.Expr)
			if diags.HasErrors() {
				return nil, diags
			}
			if err := ps.Declare(st.attr.Name, v); err != nil {
				return nil, hcl.Diagnostics{errorDiag("Invalid parameter", err.Error(), st.attr.NameRange)}
			}
			continue
		}
		if len(st.block.Labels) > 0 {
			return nil, hcl.Diagnostics{errorDiag("Invalid nested block", "Nested parameter sets take no labels.", st.block.LabelRanges[0])}
		}
		nested, diags := a.bodyToPSet(st.block.Body)
		if diags.HasErrors() {
			return nil, diags
		}
		if err := ps.Declare(st.block.Type, pset.PSet(nested)); err != nil {
			return nil, hcl.Diagnostics{errorDiag("Invalid parameter", err.Error(), st.block.TypeRange)}
		}
	}
	return ps, nil
}

func (a *assembler) stringList(expr hcl.Expression) ([]string, hcl.Diagnostics) {
	v, diags := expr.Value(a.evalContext())
	if diags.HasErrors() {
		return nil, diags
	}
	v, _ = v.UnmarkDeep()
	if v.Type() == cty.String {
		return []string{v.AsString()}, nil
	}
	var out []string
	if diags := gohcl.DecodeExpression(hcl.StaticExpr(v, expr.Range()), nil, &out); diags.HasErrors() {
		return nil, diags
	}
	return out, nil
}

// check turns a process error into a diagnostic pointing at block.
func (a *assembler) check(err error, block *hclsyntax.Block) hcl.Diagnostics {
	if err == nil {
		return nil
	}
	return a.fail(err, fmt.Sprintf("Invalid %s block", block.Type), block.DefRange())
}

func (a *assembler) fail(err error, summary string, rng hcl.Range) hcl.Diagnostics {
	if a.cause == nil {
		a.cause = err
	}
	return hcl.Diagnostics{errorDiag(summary, err.Error(), rng)}
}

// diagError reports diagnostics while keeping the underlying error
// reachable through errors.Is and errors.As.
type diagError struct {
	diags hcl.Diagnostics
	cause error
}

func (e *diagError) Error() string { return e.diags.Error() }

func (e *diagError) Unwrap() error { return e.cause }

// splitTarget splits "label.field[0].x" into the entry label and the field
// path.
func splitTarget(target string) (string, string) {
	if i := strings.IndexAny(target, ".["); i >= 0 {
		rest := target[i:]
		return target[:i], strings.TrimPrefix(rest, ".")
	}
	return target, ""
}

func wantLabels(block *hclsyntax.Block, names ...string) hcl.Diagnostics {
	if len(block.Labels) == len(names) {
		return nil
	}
	detail := fmt.Sprintf("A %s block takes no labels.", block.Type)
	if len(names) > 0 {
		detail = fmt.Sprintf("A %s block takes labels %s.", block.Type, strings.Join(names, ", "))
	}
	return hcl.Diagnostics{errorDiag("Wrong number of block labels", detail, block.TypeRange)}
}

func withoutAttribute(body *hclsyntax.Body, name string) *hclsyntax.Body {
	c := *body
	c.Attributes = make(hclsyntax.Attributes, len(body.Attributes))
	for k, v := range body.Attributes {
		if k != name {
			c.Attributes[k] = v
		}
	}
	return &c
}

// decode evaluates expr into a Go value.
func (a *assembler) decode(expr hcl.Expression, out any) hcl.Diagnostics {
	return gohcl.DecodeExpression(expr, a.evalContext(), out)
}
