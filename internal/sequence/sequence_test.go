package sequence

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupIn(seqs map[string]*Sequence) Lookup {
	return func(label string) (*Sequence, bool) {
		s, ok := seqs[label]
		return s, ok
	}
}

func labelsOf(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Label
		if e.Invert {
			out[i] = "!" + e.Label
		}
	}
	return out
}

func TestParse_AndString(t *testing.T) {
	testCases := []struct {
		src      string
		expected string
	}{
		{src: "a", expected: "a"},
		{src: "a * b * c", expected: "a * b * c"},
		{src: "a + b", expected: "a + b"},
		{src: "a * b + c", expected: "a * b + c"},
		{src: "a * (b + c)", expected: "a * (b + c)"},
		{src: "(a * b) * c", expected: "a * b * c"},
		{src: "!hlt * reco", expected: "!hlt * reco"},
		{src: "((a))", expected: "a"},
	}

	for _, tc := range testCases {
		t.Run(tc.src, func(t *testing.T) {
			n, err := Parse(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, n.String())

			again, err := Parse(n.String())
			require.NoError(t, err)
			assert.True(t, n.Equal(again))
		})
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, src := range []string{"a - b", "module.a", "\"a\"", "!(a * b)", "-a", "a && b"} {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
		})
	}
}

func TestLinearize_OrderAndSharing(t *testing.T) {
	reco := New(KindSequence, Refs("muonMatch", "jetMatch"))
	seqs := map[string]*Sequence{"reco": reco}
	p1 := New(KindPath, And(Not("hltFilter"), Ref("reco"), Ref("ana1")))
	p2 := New(KindPath, Also(Ref("reco"), Ref("ana2")))

	e1, err := Linearize(p1, lookupIn(seqs))
	require.NoError(t, err)
	assert.Equal(t, []string{"!hltFilter", "muonMatch", "jetMatch", "ana1"}, labelsOf(e1))

	// Removing from the shared sequence changes both paths.
	assert.Equal(t, 1, reco.Remove("jetMatch"))

	e1, err = Linearize(p1, lookupIn(seqs))
	require.NoError(t, err)
	e2, err := Linearize(p2, lookupIn(seqs))
	require.NoError(t, err)
	assert.Equal(t, []string{"!hltFilter", "muonMatch", "ana1"}, labelsOf(e1))
	assert.Equal(t, []string{"muonMatch", "ana2"}, labelsOf(e2))
}

func TestLinearize_DuplicatesKeepFirstPosition(t *testing.T) {
	seqs := map[string]*Sequence{"s": New(KindSequence, Refs("b", "a"))}
	p := New(KindPath, Refs("a", "s", "c", "a"))

	entries, err := Linearize(p, lookupIn(seqs))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, labelsOf(entries))
}

func TestLinearize_Errors(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		seqs := map[string]*Sequence{}
		seqs["x"] = New(KindSequence, Refs("m", "y"))
		seqs["y"] = New(KindSequence, Refs("x"))
		_, err := Linearize(New(KindPath, Ref("x")), lookupIn(seqs))
		require.ErrorIs(t, err, ErrCycle)
	})

	t.Run("self reference", func(t *testing.T) {
		seqs := map[string]*Sequence{}
		seqs["x"] = New(KindSequence, Refs("m", "x"))
		_, err := Linearize(seqs["x"], lookupIn(seqs))
		require.ErrorIs(t, err, ErrCycle)
	})

	t.Run("inverted sequence", func(t *testing.T) {
		seqs := map[string]*Sequence{"x": New(KindSequence, Ref("m"))}
		_, err := Linearize(New(KindPath, Not("x")), lookupIn(seqs))
		require.ErrorIs(t, err, ErrInvertedSequence)
	})

	t.Run("same sequence twice is not a cycle", func(t *testing.T) {
		seqs := map[string]*Sequence{"x": New(KindSequence, Ref("m"))}
		entries, err := Linearize(New(KindPath, Refs("x", "x")), lookupIn(seqs))
		require.NoError(t, err)
		assert.Equal(t, []string{"m"}, labelsOf(entries))
	})
}

func TestMutations(t *testing.T) {
	mustParse := func(src string) *Node {
		n, err := Parse(src)
		require.NoError(t, err)
		return n
	}

	t.Run("append", func(t *testing.T) {
		s := New(KindSequence, mustParse("a + b"))
		s.Append(Ref("c"))
		assert.Equal(t, "(a + b) * c", s.String())

		empty := New(KindSequence, nil)
		assert.True(t, empty.IsEmpty())
		empty.Append(Ref("x"))
		assert.Equal(t, "x", empty.String())
	})

	t.Run("replace keeps position and inversion", func(t *testing.T) {
		s := New(KindPath, mustParse("!f * a * (b + a)"))
		assert.Equal(t, 2, s.Replace("a", "a2"))
		assert.Equal(t, 1, s.Replace("f", "g"))
		assert.Equal(t, "!g * a2 * (b + a2)", s.String())
		assert.Equal(t, 0, s.Replace("zzz", "y"))
	})

	t.Run("remove collapses", func(t *testing.T) {
		s := New(KindSequence, mustParse("a * (b + c) * d"))
		assert.Equal(t, 1, s.Remove("c"))
		assert.Equal(t, "a * b * d", s.String())
		s.Remove("a")
		s.Remove("b")
		s.Remove("d")
		assert.True(t, s.IsEmpty())
	})

	t.Run("insert", func(t *testing.T) {
		s := New(KindSequence, Refs("a", "c"))
		require.NoError(t, s.Insert(1, Ref("b")))
		require.NoError(t, s.Insert(0, Ref("z")))
		require.NoError(t, s.Insert(4, Ref("end")))
		assert.Equal(t, "z * a * b * c * end", s.String())
		require.Error(t, s.Insert(9, Ref("x")))
	})

	t.Run("clone is independent", func(t *testing.T) {
		s := New(KindSequence, Refs("a", "b"))
		c := s.Clone()
		c.Remove("a")
		assert.Equal(t, "a * b", s.String())
		assert.Equal(t, "b", c.String())
	})
}

func TestLabelsFromHCL(t *testing.T) {
	parse := func(src string) hcl.Expression {
		expr, diags := hclsyntax.ParseExpression([]byte(src), "test", hcl.InitialPos)
		require.False(t, diags.HasErrors(), diags.Error())
		return expr
	}

	labels, diags := LabelsFromHCL(parse("[jetMatch, muonMatch]"))
	require.False(t, diags.HasErrors())
	assert.Equal(t, []string{"jetMatch", "muonMatch"}, labels)

	_, diags = LabelsFromHCL(parse("[a, !b]"))
	assert.True(t, diags.HasErrors())

	_, diags = LabelsFromHCL(parse("a"))
	assert.True(t, diags.HasErrors())
}

func TestNode_Labels(t *testing.T) {
	n, err := Parse("a * (!b + c) * a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "a"}, n.Labels())
}
