package hclconfig

import (
	"math"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/specialistvlad/procgrid/internal/process"
	"github.com/specialistvlad/procgrid/internal/pset"
	"github.com/specialistvlad/procgrid/internal/registry"
	"github.com/specialistvlad/procgrid/internal/steering"
	"github.com/zclconf/go-cty/cty"
)

// Dump renders the configuration as HCL. Loading the result reproduces the
// process: the same labels, values, kinds and composition order.
func (c *Config) Dump() []byte {
	return Dump(c.Process, c.Profiles)
}

// Dump renders a process and its steering profiles as HCL.
func Dump(proc *process.Process, profiles steering.Profiles) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	if proc.Name() != "" {
		root.SetAttributeValue("process", cty.StringVal(proc.Name()))
	}
	if proc.MaxEvents() != -1 {
		root.SetAttributeValue("max_events", cty.NumberIntVal(proc.MaxEvents()))
	}

	if proc.Options().Len() > 0 {
		root.AppendNewline()
		writeParams(root.AppendNewBlock(process.OptionsKeyword, nil).Body(), proc.Options())
	}
	if src := proc.Source(); src != nil {
		root.AppendNewline()
		writeParams(root.AppendNewBlock(src.Role.String(), []string{src.Type}).Body(), src.Params)
	}
	for _, serviceType := range proc.Services() {
		m, _ := proc.Service(serviceType)
		root.AppendNewline()
		writeParams(root.AppendNewBlock(m.Role.String(), []string{m.Type}).Body(), m.Params)
	}

	for _, moduleType := range proc.Catalog().Types() {
		d, _ := proc.Catalog().Lookup(moduleType)
		root.AppendNewline()
		writeDescription(root, d)
	}

	for _, label := range proc.Labels() {
		root.AppendNewline()
		switch proc.Kind(label) {
		case process.EntryModule:
			m, _ := proc.Module(label)
			writeParams(root.AppendNewBlock(m.Role.String(), []string{m.Type, label}).Body(), m.Params)
		case process.EntryPSet:
			ps, _ := proc.PSet(label)
			writeParams(root.AppendNewBlock("pset", []string{label}).Body(), ps)
		default:
			s, _ := proc.Sequence(label)
			body := root.AppendNewBlock(s.Kind().String(), []string{label}).Body()
			if !s.IsEmpty() {
				body.SetAttributeRaw("modules", sequenceTokens(s.String()))
			}
		}
	}

	if schedule := proc.Schedule(); len(schedule) > 0 {
		root.AppendNewline()
		root.SetAttributeRaw("schedule", labelTokens(schedule))
	}

	writeProfile(root, "test", profiles.Test)
	writeProfile(root, "full", profiles.Full)

	return hclwrite.Format(f.Bytes())
}

// writeParams writes the fields of ps in order. Tracked nested sets become
// blocks; everything else is an attribute.
func writeParams(body *hclwrite.Body, ps *pset.ParameterSet) {
	for _, name := range ps.Names() {
		v, _ := ps.Lookup(name)
		if v.Kind() == pset.KindPSet && !v.IsVector() && v.IsTracked() {
			nested, _ := v.AsPSet()
			writeParams(body.AppendNewBlock(name, nil).Body(), nested)
			continue
		}
		body.SetAttributeRaw(name, valueTokens(v))
	}
}

func writeDescription(root *hclwrite.Body, d *registry.Description) {
	body := root.AppendNewBlock("describe", []string{d.Type}).Body()
	body.SetAttributeValue("role", cty.StringVal(d.Role))
	for _, p := range d.Params {
		pb := body.AppendNewBlock("param", []string{p.Name}).Body()
		kind := hclwrite.TokensForIdentifier(p.Kind.String())
		if p.Vector {
			kind = hclwrite.TokensForFunctionCall("vector", kind)
		}
		pb.SetAttributeRaw("type", kind)
		if p.Optional {
			pb.SetAttributeValue("optional", cty.True)
		}
		if p.Untracked {
			pb.SetAttributeValue("untracked", cty.True)
		}
		if p.Default != nil {
			pb.SetAttributeRaw("default", valueTokens(*p.Default))
		}
	}
}

func writeProfile(root *hclwrite.Body, name string, p steering.Profile) {
	if p.IsZero() {
		return
	}
	root.AppendNewline()
	body := root.AppendNewBlock("profile", []string{name}).Body()
	if len(p.Files) > 0 {
		files := make([]cty.Value, len(p.Files))
		for i, f := range p.Files {
			files[i] = cty.StringVal(f)
		}
		body.SetAttributeValue("files", cty.TupleVal(files))
	}
	if p.MaxEvents != 0 {
		body.SetAttributeValue("max_events", cty.NumberIntVal(p.MaxEvents))
	}
	if p.Verbosity != "" {
		body.SetAttributeValue("verbosity", cty.StringVal(p.Verbosity))
	}
}

// valueTokens renders v so that reading it back yields the same kind.
// int32, bool and string need no annotation; fractional doubles neither.
func valueTokens(v pset.Value) hclwrite.Tokens {
	var toks hclwrite.Tokens
	if v.IsVector() {
		toks = vectorTokens(v)
	} else {
		toks = scalarTokens(v.Kind(), v.Items()[0])
	}
	if !v.IsTracked() {
		return hclwrite.TokensForFunctionCall("untracked", toks)
	}
	return toks
}

func scalarTokens(k pset.Kind, item any) hclwrite.Tokens {
	toks := itemTokens(k, item)
	switch k {
	case pset.KindUint32, pset.KindInt64, pset.KindUint64:
		return hclwrite.TokensForFunctionCall(k.String(), toks)
	case pset.KindInputTag:
		return hclwrite.TokensForFunctionCall("tag", toks)
	case pset.KindDouble:
		if f := item.(float64); f == math.Trunc(f) {
			return hclwrite.TokensForFunctionCall(k.String(), toks)
		}
	}
	return toks
}

func vectorTokens(v pset.Value) hclwrite.Tokens {
	items := v.Items()
	if len(items) == 0 {
		if v.Kind() == pset.KindString {
			return hclwrite.TokensForTuple(nil)
		}
		return hclwrite.TokensForFunctionCall("empty", hclwrite.TokensForValue(cty.StringVal(v.Kind().String())))
	}

	elems := make([]hclwrite.Tokens, len(items))
	for i, it := range items {
		elems[i] = itemTokens(v.Kind(), it)
	}
	tuple := hclwrite.TokensForTuple(elems)
	switch v.Kind() {
	case pset.KindUint32, pset.KindInt64, pset.KindUint64, pset.KindDouble:
		return hclwrite.TokensForFunctionCall(v.Kind().String(), tuple)
	case pset.KindInputTag:
		return hclwrite.TokensForFunctionCall("tag", tuple)
	}
	return tuple
}

func itemTokens(k pset.Kind, item any) hclwrite.Tokens {
	switch k {
	case pset.KindBool:
		return hclwrite.TokensForValue(cty.BoolVal(item.(bool)))
	case pset.KindInt32, pset.KindInt64:
		return hclwrite.TokensForValue(cty.NumberIntVal(item.(int64)))
	case pset.KindUint32, pset.KindUint64:
		return hclwrite.TokensForValue(cty.NumberUIntVal(item.(uint64)))
	case pset.KindDouble:
		return hclwrite.TokensForValue(cty.NumberFloatVal(item.(float64)))
	case pset.KindString:
		return hclwrite.TokensForValue(cty.StringVal(item.(string)))
	case pset.KindInputTag:
		return hclwrite.TokensForValue(cty.StringVal(item.(pset.InputTag).String()))
	case pset.KindPSet:
		ps := item.(*pset.ParameterSet)
		attrs := make([]hclwrite.ObjectAttrTokens, 0, ps.Len())
		for _, name := range ps.Names() {
			fv, _ := ps.Lookup(name)
			attrs = append(attrs, hclwrite.ObjectAttrTokens{
				Name:  hclwrite.TokensForIdentifier(name),
				Value: valueTokens(fv),
			})
		}
		return hclwrite.TokensForObject(attrs)
	}
	return nil
}

// sequenceTokens lexes a rendered composition expression into tokens.
func sequenceTokens(expr string) hclwrite.Tokens {
	var toks hclwrite.Tokens
	for i := 0; i < len(expr); {
		c := expr[i]
		switch c {
		case ' ':
			i++
			continue
		case '*':
			toks = append(toks, token(hclsyntax.TokenStar, "*"))
		case '+':
			toks = append(toks, token(hclsyntax.TokenPlus, "+"))
		case '!':
			toks = append(toks, token(hclsyntax.TokenBang, "!"))
		case '(':
			toks = append(toks, token(hclsyntax.TokenOParen, "("))
		case ')':
			toks = append(toks, token(hclsyntax.TokenCParen, ")"))
		default:
			j := i
			for j < len(expr) && !strings.ContainsRune(" *+!()", rune(expr[j])) {
				j++
			}
			toks = append(toks, token(hclsyntax.TokenIdent, expr[i:j]))
			i = j
			continue
		}
		i++
	}
	return toks
}

func labelTokens(labels []string) hclwrite.Tokens {
	elems := make([]hclwrite.Tokens, len(labels))
	for i, l := range labels {
		elems[i] = hclwrite.TokensForIdentifier(l)
	}
	return hclwrite.TokensForTuple(elems)
}

func token(t hclsyntax.TokenType, s string) *hclwrite.Token {
	return &hclwrite.Token{Type: t, Bytes: []byte(s)}
}
