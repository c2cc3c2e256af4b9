package gaps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geos"
)

const knownGapsTolerance = 0.01

// tileCandidates clips the gap polygons to the clip envelope of a tile, the
// way the extractor hands them to the accumulator.
func tileCandidates(t *testing.T, gapPolygons []*geos.Geom, tile, allBox Box) []*geos.Geom {
	t.Helper()
	kernel := GEOSKernel{}
	clipBox := ClipEnvelope(tile, allBox, knownGapsTolerance)

	var result []*geos.Geom
	for _, polygon := range gapPolygons {
		clipped := kernel.Clip(polygon, clipBox)
		result = append(result, kernel.ConnectedComponents(clipped)...)
		clipped.Destroy()
	}
	return result
}

// runTiles feeds the gap polygons through a 2x2 tiling of [0,100]² and
// returns the gaps completed per tile, in visiting order.
func runTiles(t *testing.T, k *KnownGaps, gapPolygons []*geos.Geom) [][]*geos.Geom {
	t.Helper()
	allBox := NewBox(0, 0, 100, 100)
	tiles := []Box{
		NewBox(0, 0, 50, 50), NewBox(50, 0, 100, 50),
		NewBox(0, 50, 50, 100), NewBox(50, 50, 100, 100),
	}

	var result [][]*geos.Geom
	for i, tile := range tiles {
		completed := k.Ingest(tileCandidates(t, gapPolygons, tile, allBox), tile)
		if i == len(tiles)-1 {
			completed = append(completed, k.Flush()...)
		}
		for _, g := range completed {
			t.Cleanup(g.Destroy)
		}
		result = append(result, completed)
	}
	return result
}

func newTestKnownGaps(maxArea float64, excludeRunBoundaryGaps bool) *KnownGaps {
	return NewKnownGaps(KnownGapsOptions{
		Tolerance:              knownGapsTolerance,
		AllBox:                 NewBox(0, 0, 100, 100),
		MaxArea:                maxArea,
		ExcludeRunBoundaryGaps: excludeRunBoundaryGaps,
	})
}

func completedCounts(perTile [][]*geos.Geom) []int {
	counts := make([]int, len(perTile))
	for i, gaps := range perTile {
		counts[i] = len(gaps)
	}
	return counts
}

func TestKnownGaps_ExactlyOnceAcrossTwoTiles(t *testing.T) {
	allBox := NewBox(0, 0, 200, 100)
	left, right := NewBox(0, 0, 100, 100), NewBox(100, 0, 200, 100)
	k := NewKnownGaps(KnownGapsOptions{Tolerance: knownGapsTolerance, AllBox: allBox})

	west := rect(t, 90, 40, 100, 60)
	east := rect(t, 100, 40, 110, 60)

	completed := k.Ingest([]*geos.Geom{west.Clone()}, left)
	assert.Empty(t, completed, "gap open to the east must stay pending")
	assert.Equal(t, 1, k.Pending())

	completed = k.Ingest([]*geos.Geom{east.Clone()}, right)
	require.Len(t, completed, 1)
	defer completed[0].Destroy()

	assert.InDelta(t, west.Area()+east.Area(), completed[0].Area(), 1e-9)
	assert.Equal(t, NewBox(90, 40, 110, 60), BoxOf(completed[0]))
	assert.Equal(t, 0, k.Pending())

	assert.Empty(t, k.Flush())
}

func TestKnownGaps_CrossingGapsCombined(t *testing.T) {
	k := newTestKnownGaps(200, true)
	gaps := []*geos.Geom{
		rect(t, -5, 10, 5, 20),    // at run boundary
		rect(t, 10, 10, 15, 20),   // inside first tile
		rect(t, 10, 10, 51, 20),   // larger than limit, mostly in first tile
		rect(t, 49, 40, 51, 41),   // crosses into second tile
		rect(t, 50, 49, 51, 51),   // crosses into fourth tile
		rect(t, 10, 49, 11, 51),   // crosses into third tile
		rect(t, 80, 80, 110, 110), // at run boundary, larger than limit
		rect(t, 99, 99, 100, 100), // at run boundary
	}

	perTile := runTiles(t, k, gaps)
	assert.Equal(t, []int{1, 1, 1, 1}, completedCounts(perTile))
	assert.Equal(t, 0, k.Pending())
}

func TestKnownGaps_LargeCrossingGapIgnored(t *testing.T) {
	tests := []struct {
		name string
		gap  [4]float64
	}{
		{"spanning all tiles", [4]float64{45, 45, 55, 55.1}},
		{"large in first tile", [4]float64{20, 20, 50.1, 50.1}},
		{"small in second, large in fourth tile", [4]float64{60, 49, 70, 90}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newTestKnownGaps(100, true)
			perTile := runTiles(t, k, []*geos.Geom{rect(t, tt.gap[0], tt.gap[1], tt.gap[2], tt.gap[3])})
			assert.Equal(t, []int{0, 0, 0, 0}, completedCounts(perTile))
		})
	}
}

func TestKnownGaps_SmallCrossingGap(t *testing.T) {
	k := newTestKnownGaps(100, true)
	perTile := runTiles(t, k, []*geos.Geom{rect(t, 49, 10, 51, 11)})

	assert.Equal(t, []int{0, 1, 0, 0}, completedCounts(perTile))
	assert.InDelta(t, 2.0, perTile[1][0].Area(), 1e-9)
}

func TestKnownGaps_GapsAtTileBoundary(t *testing.T) {
	tests := []struct {
		name string
		gap  [4]float64
		want []int
	}{
		{"west of boundary", [4]float64{49, 10, 50, 11}, []int{0, 1, 0, 0}},
		{"east of boundary", [4]float64{50, 10, 51, 11}, []int{0, 1, 0, 0}},
		{"touching tile corner", [4]float64{49, 49, 50, 50}, []int{0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := newTestKnownGaps(100, true)
			perTile := runTiles(t, k, []*geos.Geom{rect(t, tt.gap[0], tt.gap[1], tt.gap[2], tt.gap[3])})
			assert.Equal(t, tt.want, completedCounts(perTile))
		})
	}
}

func TestKnownGaps_CrossingGapsLargerThanLimit(t *testing.T) {
	gaps := func(t *testing.T) []*geos.Geom {
		return []*geos.Geom{
			rect(t, -10, -10, 10, 10),
			rect(t, 40, -10, 60, 10),
			rect(t, 90, -10, 110, 10),
			rect(t, -10, 40, 10, 60),
			rect(t, 40, 40, 60, 60),
			rect(t, 90, 40, 110, 60),
			rect(t, -10, 90, 10, 110),
			rect(t, 40, 90, 60, 110),
			rect(t, 90, 90, 110, 110),
		}
	}

	t.Run("max area exceeded", func(t *testing.T) {
		k := newTestKnownGaps(100, true)
		perTile := runTiles(t, k, gaps(t))
		assert.Equal(t, []int{0, 0, 0, 0}, completedCounts(perTile))
	})

	t.Run("max area not exceeded", func(t *testing.T) {
		k := newTestKnownGaps(1000, true)
		perTile := runTiles(t, k, gaps(t))
		require.Equal(t, []int{0, 0, 0, 1}, completedCounts(perTile))
		assert.InDelta(t, 400.0, perTile[3][0].Area(), 1e-9)
	})
}

func TestKnownGaps_RunBoundaryGapsReported(t *testing.T) {
	k := newTestKnownGaps(0, false)
	perTile := runTiles(t, k, []*geos.Geom{
		rect(t, 0, 10, 5, 20),
		rect(t, 99, 99, 100, 100),
	})

	assert.Equal(t, []int{1, 0, 0, 1}, completedCounts(perTile))
}

func TestKnownGaps_ReleaseDropsPending(t *testing.T) {
	k := newTestKnownGaps(0, false)
	completed := k.Ingest([]*geos.Geom{rect(t, 45, 10, 50, 20).Clone()}, NewBox(0, 0, 50, 50))
	assert.Empty(t, completed)
	require.Equal(t, 1, k.Pending())

	k.Release()
	assert.Equal(t, 0, k.Pending())
	assert.Empty(t, k.Flush())
}

func TestDisjointSet(t *testing.T) {
	d := newDisjointSet()
	for _, id := range []int{1, 2, 3, 4, 5} {
		d.add(id)
	}
	d.union(1, 3)
	d.union(4, 5)
	d.union(3, 5)

	assert.Equal(t, [][]int{{1, 3, 4, 5}, {2}}, d.groups())
}
