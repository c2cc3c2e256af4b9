package gaps

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/bsaid97/go-nogaps/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geos"
)

func newTestExtractor(tolerance float64) *extractor {
	return &extractor{kernel: GEOSKernel{}, tolerance: tolerance, logger: slog.Default()}
}

func extract(t *testing.T, e *extractor, in subtileInput) []*geos.Geom {
	t.Helper()
	candidates, _ := e.candidates(in)
	for _, c := range candidates {
		t.Cleanup(c.Destroy)
	}
	return candidates
}

func TestClipEnvelope(t *testing.T) {
	allBox := NewBox(0, 0, 200, 200)

	assert.Equal(t, NewBox(99.97, 99.97, 200, 200),
		ClipEnvelope(NewBox(100, 100, 200, 200), allBox, 0.01))
	assert.Equal(t, NewBox(0, 0, 100, 100),
		ClipEnvelope(NewBox(0, 0, 100, 100), allBox, 0.01), "clamped to the run box")
}

func TestExtractor_NoGaps(t *testing.T) {
	tile := NewBox(0, 0, 100, 100)
	candidates := extract(t, newTestExtractor(0.01), subtileInput{
		subtile:  tile,
		allBox:   tile,
		features: []*geos.Geom{rect(t, 0, 0, 60, 100), rect(t, 60, 0, 100, 100)},
	})
	assert.Empty(t, candidates)
}

func TestExtractor_NoFeatures(t *testing.T) {
	tile := NewBox(0, 0, 100, 100)
	candidates := extract(t, newTestExtractor(0.01), subtileInput{subtile: tile, allBox: tile})

	require.Len(t, candidates, 1)
	assert.InDelta(t, 10000.0, candidates[0].Area(), 1e-9)
}

func TestExtractor_GapBetweenFeatures(t *testing.T) {
	tile := NewBox(0, 0, 100, 100)
	candidates := extract(t, newTestExtractor(0.01), subtileInput{
		subtile:  tile,
		allBox:   tile,
		features: []*geos.Geom{rect(t, 0, 0, 40, 100), rect(t, 50, 0, 100, 100), rect(t, 20, 20, 30, 30)},
	})

	require.Len(t, candidates, 1)
	assert.InDelta(t, 1000.0, candidates[0].Area(), 1e-9)
	assert.Equal(t, NewBox(40, 0, 50, 100), BoxOf(candidates[0]))
}

func TestExtractor_FeatureStraddlingTileBoundary(t *testing.T) {
	allBox := NewBox(0, 0, 200, 100)
	features := []*geos.Geom{rect(t, 0, 0, 130, 100), rect(t, 130, 0, 200, 100)}
	e := newTestExtractor(0.01)

	for _, tile := range []Box{NewBox(0, 0, 100, 100), NewBox(100, 0, 200, 100)} {
		candidates := extract(t, e, subtileInput{subtile: tile, allBox: allBox, features: features})
		assert.Empty(t, candidates, "no sliver along the tile boundary %s", tile)
	}
}

func TestExtractor_OffsetArea(t *testing.T) {
	allBox := NewBox(0, 0, 200, 100)
	tile := NewBox(100, 0, 200, 100)
	e := newTestExtractor(0.01)

	t.Run("gap within offset strip", func(t *testing.T) {
		candidates := extract(t, e, subtileInput{
			subtile:  tile,
			allBox:   allBox,
			features: []*geos.Geom{rect(t, 0, 0, 99.98, 100), rect(t, 99.99, 0, 200, 100)},
		})
		assert.Empty(t, candidates)
	})

	t.Run("gap crossing into tile", func(t *testing.T) {
		candidates := extract(t, e, subtileInput{
			subtile:  tile,
			allBox:   allBox,
			features: []*geos.Geom{rect(t, 0, 0, 99.98, 100), rect(t, 100.5, 0, 200, 100)},
		})
		require.Len(t, candidates, 1)
		assert.InDelta(t, 52.0, candidates[0].Area(), 1e-6)
	})

	t.Run("small gap touching tile interior", func(t *testing.T) {
		// fits the offset strip by area but reaches into the tile
		candidates := extract(t, e, subtileInput{
			subtile: tile,
			allBox:  allBox,
			features: []*geos.Geom{
				rect(t, 0, 0, 200, 50),
				rect(t, 0, 50, 99.99, 100),
				rect(t, 100.01, 50, 200, 100),
				rect(t, 99.99, 51, 100.01, 100),
			},
		})
		require.Len(t, candidates, 1)
		assert.InDelta(t, 0.02, candidates[0].Area(), 1e-9)
	})
}

func TestExtractor_AreasOfInterest(t *testing.T) {
	tile := NewBox(0, 0, 100, 100)
	features := []*geos.Geom{rect(t, 0, 0, 40, 100), rect(t, 50, 0, 100, 100)}
	e := newTestExtractor(0.01)

	candidates := extract(t, e, subtileInput{
		subtile:         tile,
		allBox:          tile,
		features:        features,
		areasOfInterest: []*geos.Geom{rect(t, 0, 0, 45, 100)},
		restrictToAOI:   true,
	})
	require.Len(t, candidates, 1)
	assert.InDelta(t, 500.0, candidates[0].Area(), 1e-9)

	candidates = extract(t, e, subtileInput{
		subtile:         tile,
		allBox:          tile,
		features:        features,
		areasOfInterest: []*geos.Geom{rect(t, 300, 300, 400, 400)},
		restrictToAOI:   true,
	})
	assert.Empty(t, candidates, "no area of interest in this subtile")

	candidates = extract(t, e, subtileInput{
		subtile:       tile,
		allBox:        tile,
		features:      features,
		restrictToAOI: true,
	})
	assert.Empty(t, candidates)
}

func TestExtractor_SnapToGrid(t *testing.T) {
	tile := NewBox(0, 0, 100, 100)
	features := []*geos.Geom{rect(t, 0, 0, 40.2, 100), rect(t, 40.4, 0, 100, 100)}

	e := newTestExtractor(0.01)
	require.Len(t, extract(t, e, subtileInput{subtile: tile, allBox: tile, features: features}), 1)

	e.snap = &utils.Grid{Resolution: 1}
	assert.Empty(t, extract(t, e, subtileInput{subtile: tile, allBox: tile, features: features}))
}

func TestGEOSKernel_ClipDropsBoundaryContacts(t *testing.T) {
	box := NewBox(0, 0, 50, 50)
	kernel := GEOSKernel{}

	touching := kernel.Clip(rect(t, 50, 0, 100, 50), box)
	defer touching.Destroy()
	assert.True(t, touching.IsEmpty())

	// overlaps the box in the upper corner and runs along its east edge below
	lShaped := mustWKT(t, "POLYGON ((50 0, 100 0, 100 50, 45 50, 45 40, 50 40, 50 0))")
	clipped := kernel.Clip(lShaped, box)
	defer clipped.Destroy()
	assert.Contains(t, []geos.TypeID{geos.TypeIDPolygon, geos.TypeIDMultiPolygon}, clipped.TypeID())
	assert.InDelta(t, 50.0, clipped.Area(), 1e-9)
}

func TestExtractor_NeighbourTouchingClipEdge(t *testing.T) {
	allBox := NewBox(0, 0, 100, 50)
	tile := NewBox(0, 0, 50, 50)

	tests := []struct {
		name      string
		neighbour string
		wantArea  float64
	}{
		{"touching edge", "POLYGON ((50 0, 100 0, 100 50, 50 50, 50 0))", 250},
		{"overlapping and touching", "POLYGON ((50 0, 100 0, 100 50, 45 50, 45 40, 50 40, 50 0))", 200},
	}
	for _, tt := range tests {
		for _, snap := range []*utils.Grid{nil, {Resolution: 0.01}} {
			t.Run(fmt.Sprintf("%s snapped=%t", tt.name, snap != nil), func(t *testing.T) {
				e := newTestExtractor(0.01)
				e.snap = snap

				candidates := extract(t, e, subtileInput{
					subtile:  tile,
					allBox:   allBox,
					features: []*geos.Geom{rect(t, 0, 0, 45, 50), mustWKT(t, tt.neighbour)},
				})
				require.Len(t, candidates, 1)
				assert.InDelta(t, tt.wantArea, candidates[0].Area(), 1e-6)
			})
		}
	}
}
