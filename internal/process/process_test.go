package process

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/procgrid/internal/pset"
	"github.com/specialistvlad/procgrid/internal/registry"
	"github.com/specialistvlad/procgrid/internal/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func tag(s string) pset.Value { return pset.Tag(pset.MustParseInputTag(s)) }

func mustParse(t *testing.T, src string) *sequence.Node {
	t.Helper()
	n, err := sequence.Parse(src)
	require.NoError(t, err)
	return n
}

// newRecoProcess builds a small but complete process:
//
//	path p1 = !hltFilter * reco * ana1
//	path p2 = reco + ana2
//	endpath out = writer
func newRecoProcess(t *testing.T) *Process {
	t.Helper()
	p := New("RECO")
	require.NoError(t, p.SetSource(NewModule("PoolSource", RoleSource, pset.New().With("fileNames", pset.VString("file:in.root")))))
	require.NoError(t, p.Declare("hltFilter", NewModule("HLTHighLevel", RoleFilter, nil)))
	require.NoError(t, p.Declare("muonMatch", NewModule("PATTriggerMatcherDRLessByR", RoleProducer, pset.New().With("src", tag("selectedMuons")))))
	require.NoError(t, p.Declare("jetMatch", NewModule("PATTriggerMatcherDRLessByR", RoleProducer, pset.New().With("src", tag("selectedJets")))))
	require.NoError(t, p.Declare("ana1", NewModule("TriggerAnalyzer", RoleAnalyzer, pset.New().With("matches", tag("muonMatch")))))
	require.NoError(t, p.Declare("ana2", NewModule("TriggerAnalyzer", RoleAnalyzer, pset.New().With("matches", tag("jetMatch")))))
	require.NoError(t, p.Declare("writer", NewModule("PoolOutputModule", RoleOutput, pset.New().With("fileName", pset.String("out.root")))))
	require.NoError(t, p.DeclareSequence("reco", sequence.Refs("muonMatch", "jetMatch")))
	require.NoError(t, p.DeclarePath("p1", mustParse(t, "!hltFilter * reco * ana1")))
	require.NoError(t, p.DeclarePath("p2", mustParse(t, "reco + ana2")))
	require.NoError(t, p.DeclareEndPath("out", sequence.Ref("writer")))
	return p
}

func TestDeclare(t *testing.T) {
	p := New("TEST")
	require.NoError(t, p.Declare("a", NewModule("A", RoleProducer, nil)))

	require.ErrorIs(t, p.Declare("a", NewModule("B", RoleProducer, nil)), ErrDuplicateLabel)
	require.ErrorIs(t, p.DeclarePSet("a", pset.New()), ErrDuplicateLabel)
	require.ErrorIs(t, p.DeclarePath("a", sequence.Ref("x")), ErrDuplicateLabel)
	require.ErrorIs(t, p.Declare("source", NewModule("B", RoleProducer, nil)), ErrInvalidLabel)
	require.ErrorIs(t, p.Declare("bad-label", NewModule("B", RoleProducer, nil)), ErrInvalidLabel)
	require.ErrorIs(t, p.Declare("src", NewModule("PoolSource", RoleSource, nil)), ErrWrongRole)
	require.ErrorIs(t, p.SetSource(NewModule("A", RoleProducer, nil)), ErrWrongRole)
	require.ErrorIs(t, p.DeclareService(NewModule("A", RoleProducer, nil)), ErrWrongRole)

	require.NoError(t, p.DeclareService(NewModule("MessageLogger", RoleService, nil)))
	require.ErrorIs(t, p.DeclareService(NewModule("MessageLogger", RoleService, nil)), ErrDuplicateLabel)

	assert.Equal(t, []string{"a"}, p.Labels())
	assert.Equal(t, EntryModule, p.Kind("a"))
	assert.Equal(t, EntryNone, p.Kind("zzz"))
}

func TestLoad_SharesByReference(t *testing.T) {
	ctx := context.Background()
	base := newRecoProcess(t)
	p := New("ANA")
	require.NoError(t, p.Load(ctx, base))

	target, err := p.Target("muonMatch")
	require.NoError(t, err)
	require.NoError(t, target.Set("src", pset.String("tightMuons")))

	m, _ := base.Module("muonMatch")
	v, _ := m.Params.Get("src")
	got, _ := v.AsInputTag()
	assert.Equal(t, "tightMuons", got.String(), "mutation through the loading process is visible in the loaded one")

	// Sequences are shared too.
	s, _ := p.Sequence("reco")
	s.Remove("jetMatch")
	baseSeq, _ := base.Sequence("reco")
	assert.Equal(t, "muonMatch", baseSeq.String())

	assert.Same(t, base.Source(), p.Source())
	assert.Equal(t, base.Labels(), p.Labels())
}

func TestLoad_Idempotent(t *testing.T) {
	ctx := context.Background()
	base := newRecoProcess(t)
	p := New("ANA")
	require.NoError(t, p.Load(ctx, base))
	require.NoError(t, p.Load(ctx, base))
	assert.Equal(t, base.Labels(), p.Labels())

	// The same objects reached through another fragment are not duplicates.
	mid := New("")
	require.NoError(t, mid.Load(ctx, base))
	require.NoError(t, mid.Declare("extra", NewModule("X", RoleProducer, nil)))
	require.NoError(t, p.Load(ctx, mid))
	assert.Equal(t, append(base.Labels(), "extra"), p.Labels())
}

func TestLoad_ConflictingLabel(t *testing.T) {
	ctx := context.Background()
	base := newRecoProcess(t)
	p := New("ANA")
	require.NoError(t, p.Declare("ana1", NewModule("Other", RoleAnalyzer, nil)))
	require.ErrorIs(t, p.Load(ctx, base), ErrDuplicateLabel)
}

func TestLoad_ConflictLeavesProcessUnchanged(t *testing.T) {
	ctx := context.Background()
	base := newRecoProcess(t)
	p := New("ANA")
	// ana1 comes late in base, after several entries that would import cleanly.
	require.NoError(t, p.Declare("ana1", NewModule("Other", RoleAnalyzer, nil)))

	require.ErrorIs(t, p.Load(ctx, base), ErrDuplicateLabel)
	if diff := cmp.Diff([]string{"ana1"}, p.Labels()); diff != "" {
		t.Errorf("labels changed by a failed load (-want +got):\n%s", diff)
	}
	assert.Nil(t, p.Source())

	t.Run("clashing description", func(t *testing.T) {
		other := New("")
		require.NoError(t, other.Declare("fresh", NewModule("X", RoleProducer, nil)))
		require.NoError(t, other.Catalog().Register(ctx, &registry.Description{Type: "X"}))
		require.NoError(t, p.Catalog().Register(ctx, &registry.Description{Type: "X"}))

		require.Error(t, p.Load(ctx, other))
		assert.False(t, p.Has("fresh"))
	})
}

func TestLoad_SettingsFillGaps(t *testing.T) {
	ctx := context.Background()
	base := New("")
	base.Options().With("wantSummary", pset.Untracked(pset.Bool(true)))
	base.SetMaxEvents(100)

	p := New("ANA")
	p.SetMaxEvents(10)
	p.Options().With("numberOfThreads", pset.Untracked(pset.Uint32(4)))
	require.NoError(t, p.Load(ctx, base))

	assert.Equal(t, int64(10), p.MaxEvents())
	assert.Equal(t, []string{"numberOfThreads", "wantSummary"}, p.Options().Names())
}

func TestRemove_FromSharedSequenceAffectsEveryPath(t *testing.T) {
	ctx := context.Background()
	p := newRecoProcess(t)

	n, err := p.Remove("jetMatch")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok := p.Module("jetMatch")
	assert.True(t, ok, "remove keeps the descriptor")

	plan, err := p.Finalize(ctx)
	require.NoError(t, err)
	p1, _ := plan.Path("p1")
	p2, _ := plan.Path("p2")
	assert.Equal(t, []string{"!hltFilter", "muonMatch", "ana1"}, p1.Labels())
	assert.Equal(t, []string{"muonMatch", "ana2"}, p2.Labels())
	assert.Equal(t, []string{"jetMatch"}, plan.Unscheduled)

	_, err = p.Remove("nothing")
	require.ErrorIs(t, err, ErrUnknownLabel)
}

func TestDelete(t *testing.T) {
	p := newRecoProcess(t)
	p.SetSchedule([]string{"p1", "out"})
	require.NoError(t, p.Delete("out"))
	require.NoError(t, p.Delete("writer"))

	assert.False(t, p.Has("writer"))
	assert.Equal(t, []string{"p1"}, p.Schedule())
	require.ErrorIs(t, p.Delete("writer"), ErrUnknownLabel)
}

func TestReplace_KeepsPositionEverywhere(t *testing.T) {
	ctx := context.Background()
	base := newRecoProcess(t)
	p := New("RECO")
	require.NoError(t, p.Load(ctx, base))

	require.NoError(t, p.Replace("muonMatch", NewModule("PATTriggerMatcherDRDPtLessByR", RoleProducer, pset.New().With("src", tag("selectedMuons")))))
	require.ErrorIs(t, p.Replace("nope", NewModule("X", RoleProducer, nil)), ErrUnknownLabel)

	m, _ := base.Module("muonMatch")
	assert.Equal(t, "PATTriggerMatcherDRDPtLessByR", m.Type)

	plan, err := p.Finalize(ctx)
	require.NoError(t, err)
	p1, _ := plan.Path("p1")
	assert.Equal(t, []string{"!hltFilter", "muonMatch", "jetMatch", "ana1"}, p1.Labels())
	assert.Equal(t, "PATTriggerMatcherDRDPtLessByR", p1.Entries[1].Type)
}

func TestCloneModule(t *testing.T) {
	p := newRecoProcess(t)
	require.NoError(t, p.CloneModule("eleMatch", "muonMatch", pset.O("src", pset.String("selectedElectrons"))))

	orig, _ := p.Module("muonMatch")
	clone, _ := p.Module("eleMatch")
	assert.Equal(t, orig.Type, clone.Type)
	assert.NotSame(t, orig.Params, clone.Params)
	v, _ := orig.Params.Get("src")
	got, _ := v.AsInputTag()
	assert.Equal(t, "selectedMuons", got.String())

	require.ErrorIs(t, p.CloneModule("x", "nope"), ErrUnknownLabel)
	require.ErrorIs(t, p.CloneModule("y", "muonMatch", pset.O("missing", pset.Bool(true))), pset.ErrUndeclaredField)
	assert.False(t, p.Has("y"))
}

func TestTarget(t *testing.T) {
	p := newRecoProcess(t)
	require.NoError(t, p.DeclareService(NewModule("MessageLogger", RoleService, pset.New().With("threshold", pset.Untracked(pset.String("INFO"))))))
	require.NoError(t, p.DeclarePSet("cuts", pset.New().With("ptMin", pset.Double(20))))

	for _, label := range []string{"muonMatch", "cuts", "source", "options", "MessageLogger"} {
		ps, err := p.Target(label)
		require.NoError(t, err, label)
		assert.NotNil(t, ps, label)
	}

	_, err := p.Target("reco")
	require.ErrorIs(t, err, ErrUnknownLabel)
	assert.ErrorContains(t, err, "is a sequence")
	_, err = New("X").Target("source")
	require.ErrorIs(t, err, ErrUnknownLabel)
}

func TestFinalize_Plan(t *testing.T) {
	ctx := context.Background()
	p := newRecoProcess(t)
	p.SetMaxEvents(50)
	require.NoError(t, p.Declare("onDemand", NewModule("X", RoleProducer, nil)))
	require.NoError(t, p.Declare("geometry", NewModule("XMLIdealGeometryESSource", RoleESSource, nil)))

	plan, err := p.Finalize(ctx)
	require.NoError(t, err)

	assert.Equal(t, "RECO", plan.Process)
	assert.Equal(t, int64(50), plan.MaxEvents)
	assert.Equal(t, "PoolSource", plan.Source)
	require.Len(t, plan.Paths, 3)
	assert.Equal(t, "p1", plan.Paths[0].Label)
	assert.Equal(t, "p2", plan.Paths[1].Label)
	assert.True(t, plan.Paths[2].EndPath)
	assert.Equal(t, PlannedEntry{Label: "hltFilter", Type: "HLTHighLevel", Role: RoleFilter, Inverted: true}, plan.Paths[0].Entries[0])
	assert.Equal(t, []string{"onDemand"}, plan.Unscheduled)

	t.Run("explicit schedule", func(t *testing.T) {
		p.SetSchedule([]string{"out", "p2"})
		plan, err := p.Finalize(ctx)
		require.NoError(t, err)
		require.Len(t, plan.Paths, 2)
		assert.Equal(t, "out", plan.Paths[0].Label)
		assert.Contains(t, plan.Unscheduled, "ana1")
	})
}

func TestFinalize_ReportsEveryProblem(t *testing.T) {
	ctx := context.Background()
	p := New("bad name")
	require.NoError(t, p.Declare("ana", NewModule("A", RoleAnalyzer, nil)))
	require.NoError(t, p.Declare("writer", NewModule("PoolOutputModule", RoleOutput, nil)))
	require.NoError(t, p.Declare("geom", NewModule("G", RoleESSource, nil)))
	require.NoError(t, p.DeclarePSet("cuts", pset.New()))
	require.NoError(t, p.DeclarePath("p", mustParse(t, "!ana * writer * geom * cuts * missing")))
	p.SetSchedule([]string{"p", "nope"})

	_, err := p.Finalize(ctx)
	require.Error(t, err)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 8)
	for _, target := range []error{ErrInvalidLabel, ErrNoSource, ErrInvalidInversion, ErrNotSchedulable, ErrUnknownLabel} {
		assert.ErrorIs(t, err, target)
	}
	assert.ErrorContains(t, err, `"writer" belongs in an endpath`)
	assert.ErrorContains(t, err, `"cuts" is a pset`)
	assert.ErrorContains(t, err, `"geom" is a es_source`)
	assert.ErrorContains(t, err, `schedule entry "nope"`)
}

func TestFinalize_Cycles(t *testing.T) {
	ctx := context.Background()

	t.Run("sequence nesting", func(t *testing.T) {
		p := newRecoProcess(t)
		require.NoError(t, p.DeclareSequence("x", sequence.Refs("ana1", "y")))
		require.NoError(t, p.DeclareSequence("y", sequence.Refs("x")))
		_, err := p.Finalize(ctx)
		require.ErrorIs(t, err, ErrCycle)
	})

	t.Run("sequence containing itself", func(t *testing.T) {
		p := newRecoProcess(t)
		s, _ := p.Sequence("reco")
		s.Append(sequence.Ref("reco"))
		_, err := p.Finalize(ctx)
		require.ErrorIs(t, err, ErrCycle)
		assert.Len(t, multierr.Errors(err), 1, "the linearization does not report the cycle twice")
	})

	t.Run("inverted sequence", func(t *testing.T) {
		p := newRecoProcess(t)
		require.NoError(t, p.DeclarePath("p3", mustParse(t, "!reco")))
		_, err := p.Finalize(ctx)
		require.ErrorIs(t, err, ErrInvalidInversion)
	})

	t.Run("product consumption", func(t *testing.T) {
		p := newRecoProcess(t)
		m, _ := p.Module("muonMatch")
		require.NoError(t, m.Params.Assign("matched", tag("ana1"), true))
		_, err := p.Finalize(ctx)
		require.ErrorIs(t, err, ErrCycle)
		assert.ErrorContains(t, err, "product consumption")
	})

	t.Run("tags from other processes are external", func(t *testing.T) {
		p := newRecoProcess(t)
		m, _ := p.Module("muonMatch")
		require.NoError(t, m.Params.Assign("matched", tag("ana1::HLT"), true))
		_, err := p.Finalize(ctx)
		require.NoError(t, err)
	})
}

func TestFinalize_CatalogValidation(t *testing.T) {
	ctx := context.Background()
	p := newRecoProcess(t)
	def := pset.Double(0.5)
	require.NoError(t, p.Catalog().Register(ctx, &registry.Description{
		Type: "PATTriggerMatcherDRLessByR",
		Role: "producer",
		Params: []registry.Param{
			{Name: "src", Kind: pset.KindInputTag},
			{Name: "maxDeltaR", Kind: pset.KindDouble, Default: &def},
		},
	}))

	_, err := p.Finalize(ctx)
	require.NoError(t, err)
	m, _ := p.Module("jetMatch")
	assert.Equal(t, []string{"src", "maxDeltaR"}, m.Params.Names())

	m.Params.With("typo", pset.Int32(1))
	_, err = p.Finalize(ctx)
	require.ErrorIs(t, err, registry.ErrValidation)
}

func TestRole(t *testing.T) {
	for _, r := range Roles() {
		parsed, err := ParseRole(r.String())
		require.NoError(t, err)
		assert.Equal(t, r, parsed)
	}
	assert.True(t, RoleFilter.Invertible())
	assert.False(t, RoleProducer.Invertible())
	assert.True(t, RoleOutput.EndPathOnly())
	assert.False(t, RoleESProducer.Schedulable())
	assert.True(t, RoleProducer.ProducesData())
	assert.True(t, RoleAnalyzer.ReadOnly())
	_, err := ParseRole("EDProducer")
	require.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	p := newRecoProcess(t)
	p.SetSchedule([]string{"p1", "out"})
	s := p.Snapshot()

	assert.Equal(t, "RECO", s.Process)
	assert.Equal(t, int64(-1), s.MaxEvents)
	wantSource := &ModuleSnapshot{
		Type:   "PoolSource",
		Role:   RoleSource,
		Params: []pset.Field{{Name: "fileNames", Type: "vstring", Value: []any{"file:in.root"}}},
	}
	if diff := cmp.Diff(wantSource, s.Source); diff != "" {
		t.Errorf("source mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p1", "out"}, s.Schedule); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, s.Entries, len(p.Labels()))

	byLabel := map[string]EntrySnapshot{}
	for _, e := range s.Entries {
		byLabel[e.Label] = e
	}
	wantMatch := EntrySnapshot{
		Label: "muonMatch",
		Kind:  "module",
		Module: &ModuleSnapshot{
			Type:   "PATTriggerMatcherDRLessByR",
			Role:   RoleProducer,
			Params: []pset.Field{{Name: "src", Type: "inputtag", Value: "selectedMuons"}},
		},
	}
	if diff := cmp.Diff(wantMatch, byLabel["muonMatch"]); diff != "" {
		t.Errorf("muonMatch mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "path", byLabel["p1"].Kind)
	assert.Equal(t, "!hltFilter * reco * ana1", byLabel["p1"].Modules)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"role":"producer"`)
}
