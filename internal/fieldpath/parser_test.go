package fieldpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name         string
		raw          string
		expectErr    bool
		expectedPath *Path
	}{
		{
			name: "single field",
			raw:  "threshold",
			expectedPath: &Path{
				Segments: []Segment{NewSegment("threshold")},
			},
		},
		{
			name: "nested fields",
			raw:  "cuts.muons.ptMin",
			expectedPath: &Path{
				Segments: []Segment{NewSegment("cuts"), NewSegment("muons"), NewSegment("ptMin")},
			},
		},
		{
			name: "vpset index",
			raw:  "toGet[0].record",
			expectedPath: &Path{
				Segments: []Segment{NewSegmentWithIndex("toGet", 0), NewSegment("record")},
			},
		},
		{
			name: "underscore names",
			raw:  "_private.max_dr[12]",
			expectedPath: &Path{
				Segments: []Segment{NewSegment("_private"), NewSegmentWithIndex("max_dr", 12)},
			},
		},
		{name: "error - empty", raw: "", expectErr: true},
		{name: "error - empty segment", raw: "a..b", expectErr: true},
		{name: "error - trailing dot", raw: "a.", expectErr: true},
		{name: "error - non numeric index", raw: "a[x]", expectErr: true},
		{name: "error - leading digit", raw: "1abc", expectErr: true},
		{name: "error - hyphen", raw: "max-dr", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Parse(tc.raw)

			if tc.expectErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, p)
			assert.True(t, tc.expectedPath.Equal(p), "parsed path %q does not match expected", p.String())
		})
	}
}

func TestPath_RoundTrip(t *testing.T) {
	for _, raw := range []string{"a", "a.b.c", "toGet[3].tag", "x[0].y[1].z"} {
		t.Run(raw, func(t *testing.T) {
			p, err := Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, p.String())

			again, err := Parse(p.String())
			require.NoError(t, err)
			assert.True(t, p.Equal(again))
		})
	}
}

func TestPath_Parent(t *testing.T) {
	p := MustParse("a.b[1].c")
	parent := p.Parent()
	require.NotNil(t, parent)
	assert.Equal(t, "a.b[1]", parent.String())
	assert.Equal(t, "c", p.Last().Name)

	assert.Nil(t, MustParse("a").Parent())
	assert.Equal(t, "", (*Path)(nil).String())
	assert.True(t, (*Path)(nil).Equal(nil))
	assert.False(t, p.Equal(nil))
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("a..b") })
}
