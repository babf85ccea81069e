package pset

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClone_WithOverrides_LeavesOriginalUntouched(t *testing.T) {
	orig := New().
		With("threshold", Int32(250)).
		With("mode", String("text"))

	clone, err := orig.Clone(O("mode", String("binary")))
	require.NoError(t, err)

	wantClone := []Field{
		{Name: "threshold", Type: "int32", Value: int64(250)},
		{Name: "mode", Type: "string", Value: "binary"},
	}
	if diff := cmp.Diff(wantClone, clone.Export()); diff != "" {
		t.Errorf("clone mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, `{threshold = 250, mode = "text"}`, orig.String())

	mode, err := orig.Get("mode")
	require.NoError(t, err)
	s, _ := mode.AsString()
	assert.Equal(t, "text", s)
}

func TestClone_FailingOverrideReturnsError(t *testing.T) {
	orig := New().With("threshold", Int32(250))

	clone, err := orig.Clone(O("threshold", Int32(1)), O("missing", Bool(true)))
	require.ErrorIs(t, err, ErrUndeclaredField)
	assert.Nil(t, clone)

	v, err := orig.Get("threshold")
	require.NoError(t, err)
	i, _ := v.AsInt()
	assert.Equal(t, int64(250), i)
}

func TestClone_DeepCopiesNestedSets(t *testing.T) {
	cuts := New().With("ptMin", Double(20))
	orig := New().With("cuts", PSet(cuts))

	clone, err := orig.Clone(O("cuts.ptMin", Double(30)))
	require.NoError(t, err)

	origPt, _ := orig.Get("cuts.ptMin")
	clonePt, _ := clone.Get("cuts.ptMin")
	o, _ := origPt.AsDouble()
	c, _ := clonePt.AsDouble()
	assert.Equal(t, 20.0, o)
	assert.Equal(t, 30.0, c)

	// The value constructor copies, so mutating the source set is invisible.
	require.NoError(t, cuts.Set("ptMin", Double(99)))
	origPt, _ = orig.Get("cuts.ptMin")
	o, _ = origPt.AsDouble()
	assert.Equal(t, 20.0, o)
}

func TestDeclare_RejectsDuplicatesAndBadNames(t *testing.T) {
	p := New()
	require.NoError(t, p.Declare("src", Tag(MustParseInputTag("muons"))))
	require.ErrorIs(t, p.Declare("src", Bool(true)), ErrDuplicateField)
	require.ErrorIs(t, p.Declare("bad-name", Bool(true)), ErrInvalidName)
	assert.Equal(t, []string{"src"}, p.Names())
}

func TestAssign_DeclarePolicy(t *testing.T) {
	p := New().With("a", Int32(1))

	require.ErrorIs(t, p.Set("b", Int32(2)), ErrUndeclaredField)
	require.ErrorIs(t, p.Assign("b", Int32(2), false), ErrUndeclaredField)
	require.NoError(t, p.Assign("b", Int32(2), true))
	require.NoError(t, p.Assign("a", Int32(5), true))

	assert.Equal(t, []string{"a", "b"}, p.Names())
	assert.Equal(t, "{a = 5, b = 2}", p.String())
}

func TestSet_KindRules(t *testing.T) {
	p := New().
		With("maxDR", Double(0.5)).
		With("nJets", Uint32(4)).
		With("label", String("x")).
		With("src", Tag(MustParseInputTag("jets")))

	require.NoError(t, p.Set("maxDR", Int32(1)), "integers widen to double")
	v, _ := p.Get("maxDR")
	assert.Equal(t, KindDouble, v.Kind())

	require.ErrorIs(t, p.Set("nJets", Int32(-1)), ErrKindMismatch)
	require.NoError(t, p.Set("nJets", Int32(6)))
	v, _ = p.Get("nJets")
	u, err := v.AsUint()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), u)

	require.ErrorIs(t, p.Set("label", Int32(1)), ErrKindMismatch)
	require.ErrorIs(t, p.Set("label", VString("a")), ErrKindMismatch)

	require.NoError(t, p.Set("src", String("selectedJets:tight")))
	v, _ = p.Get("src")
	tag, _ := v.AsInputTag()
	assert.Equal(t, InputTag{Label: "selectedJets", Instance: "tight"}, tag)
}

func TestSet_PreservesUntrackedness(t *testing.T) {
	p := New().With("verbose", Untracked(Bool(false)))
	require.NoError(t, p.Set("verbose", Bool(true)))

	v, _ := p.Get("verbose")
	assert.False(t, v.IsTracked())
	b, _ := v.AsBool()
	assert.True(t, b)
}

func TestAppend(t *testing.T) {
	p := New().With("outputCommands", VString("drop *"))

	require.NoError(t, p.Append("outputCommands", String("keep *_muons_*_*"), false))
	require.NoError(t, p.Append("outputCommands", VString("keep *_jets_*_*", "keep *_met_*_*"), false))

	v, _ := p.Get("outputCommands")
	cmds, err := v.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"drop *", "keep *_muons_*_*", "keep *_jets_*_*", "keep *_met_*_*"}, cmds)

	t.Run("undeclared without declare fails", func(t *testing.T) {
		require.ErrorIs(t, p.Append("fileNames", VString("a.root"), false), ErrUndeclaredField)
	})

	t.Run("undeclared with declare creates a vector", func(t *testing.T) {
		require.NoError(t, p.Append("fileNames", String("a.root"), true))
		v, _ := p.Get("fileNames")
		assert.True(t, v.IsVector())
		files, _ := v.Strings()
		assert.Equal(t, []string{"a.root"}, files)
	})

	t.Run("scalar target fails", func(t *testing.T) {
		require.NoError(t, p.Declare("one", String("x")))
		require.ErrorIs(t, p.Append("one", String("y"), false), ErrNotAVector)
	})

	t.Run("kind mismatch fails", func(t *testing.T) {
		require.ErrorIs(t, p.Append("outputCommands", Int32(1), false), ErrKindMismatch)
	})
}

func TestRemoveItems(t *testing.T) {
	p := New().With("cmds", VString("a", "b", "a", "c"))

	n, err := p.RemoveItems("cmds", String("a"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, _ := p.Get("cmds")
	cmds, _ := v.Strings()
	assert.Equal(t, []string{"b", "c"}, cmds)

	_, err = p.RemoveItems("nope", String("a"))
	require.ErrorIs(t, err, ErrUndeclaredField)
}

func TestPaths_IntoVPSet(t *testing.T) {
	rec := func(name string) *ParameterSet {
		return New().With("record", String(name)).With("tag", String(name+"_v1"))
	}
	p := New().With("toGet", VPSet(rec("AlCaRecoTriggerBitsRcd"), rec("BeamSpotObjectsRcd")))

	v, err := p.Get("toGet[1].record")
	require.NoError(t, err)
	s, _ := v.AsString()
	assert.Equal(t, "BeamSpotObjectsRcd", s)

	require.NoError(t, p.Set("toGet[0].tag", String("override")))
	v, _ = p.Get("toGet[0].tag")
	s, _ = v.AsString()
	assert.Equal(t, "override", s)

	_, err = p.Get("toGet[5].record")
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = p.Get("toGet.record")
	require.ErrorIs(t, err, ErrNotAPSet)
}

func TestSetIndex_OnScalarVector(t *testing.T) {
	p := New().With("bins", VDouble(0, 10, 20))
	require.NoError(t, p.Set("bins[1]", Int32(15)))

	v, _ := p.Get("bins")
	bins, _ := v.Doubles()
	assert.Equal(t, []float64{0, 15, 20}, bins)

	require.ErrorIs(t, p.Set("bins[3]", Double(1)), ErrIndexOutOfRange)
}

func TestNested_ReturnsReference(t *testing.T) {
	p := New().With("cuts", PSet(New().With("etaMax", Double(2.4))))

	cuts, err := p.Nested("cuts")
	require.NoError(t, err)
	require.NoError(t, cuts.Set("etaMax", Double(2.1)))

	v, _ := p.Get("cuts.etaMax")
	d, _ := v.AsDouble()
	assert.Equal(t, 2.1, d)
}

func TestDelete(t *testing.T) {
	p := New().With("a", Int32(1)).With("b", PSet(New().With("c", Int32(2))))
	assert.True(t, p.Delete("b.c"))
	assert.True(t, p.Delete("a"))
	assert.False(t, p.Delete("a"))
	assert.Equal(t, []string{"b"}, p.Names())
}

func TestWalkAndInputTags(t *testing.T) {
	p := New().
		With("src", Tag(MustParseInputTag("muons"))).
		With("matched", PSet(New().With("jets", VTag(MustParseInputTag("ak4:corr"), MustParseInputTag("ak8"))))).
		With("list", VPSet(New().With("x", Int32(1))))

	var paths []string
	require.NoError(t, p.Walk(func(path string, _ Value) error {
		paths = append(paths, path)
		return nil
	}))
	assert.Equal(t, []string{"src", "matched", "matched.jets", "list", "list[0].x"}, paths)

	assert.Equal(t, []InputTag{
		{Label: "muons"},
		{Label: "ak4", Instance: "corr"},
		{Label: "ak8"},
	}, p.InputTags())
}

func TestEqual(t *testing.T) {
	a := New().With("x", Int32(1)).With("y", String("s"))
	b := New().With("x", Int32(1)).With("y", String("s"))
	c := New().With("y", String("s")).With("x", Int32(1))
	d := New().With("x", Int64(1)).With("y", String("s"))

	assert.True(t, a.Equal(b))
	if diff := cmp.Diff(a.Export(), b.Export()); diff != "" {
		t.Errorf("equal sets export differently (-a +b):\n%s", diff)
	}
	assert.NotEmpty(t, cmp.Diff(a.Export(), c.Export()))
	assert.False(t, a.Equal(c), "order matters")
	assert.False(t, a.Equal(d), "kind matters")
	assert.False(t, a.Equal(nil))
}

func TestMarshalJSON_KeepsOrder(t *testing.T) {
	p := New().
		With("z", Untracked(Int32(1))).
		With("a", VTag(MustParseInputTag("m:i:p")))

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"name":"z","type":"int32","untracked":true,"value":1},{"name":"a","type":"vinputtag","value":["m:i:p"]}]`,
		string(out))
}
