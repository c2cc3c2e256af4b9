package gaps

import (
	"log/slog"
	"math"

	"github.com/bsaid97/go-nogaps/utils"
	"github.com/twpayne/go-geos"
)

// clipOffsetFactor is the multiple of the tolerance by which the clip
// envelope extends to the west and south. A tolerance-wide offset misses
// errors for features touching tile boundaries.
const clipOffsetFactor = 3

// ClipEnvelope enlarges a subtile to the west and south by three times the
// tolerance, unless that would leave the run box. East and north stay on the
// tile boundary so that every boundary strip is processed from one side only.
func ClipEnvelope(subtile, allBox Box, tolerance float64) Box {
	offset := tolerance * clipOffsetFactor
	return NewBox(
		math.Max(allBox.XMin(), subtile.XMin()-offset),
		math.Max(allBox.YMin(), subtile.YMin()-offset),
		subtile.XMax(),
		subtile.YMax(),
	)
}

// extractor computes the gap candidates of one subtile.
type extractor struct {
	kernel    Kernel
	tolerance float64
	// snap is set when polygon copies are snapped to a synthesized grid
	snap   *utils.Grid
	logger *slog.Logger
}

type subtileInput struct {
	subtile  Box
	allBox   Box
	features []*geos.Geom
	// areasOfInterest is only consulted when restrictToAOI is set
	areasOfInterest []*geos.Geom
	restrictToAOI   bool
}

// candidates returns the gap candidates of a subtile and the clip envelope
// they were computed against. The caller owns the candidates. All
// intermediate geometries are released before returning.
func (e *extractor) candidates(in subtileInput) ([]*geos.Geom, Box) {
	clipBox := ClipEnvelope(in.subtile, in.allBox, e.tolerance)

	clipped, release := e.clipPolygons(in.features, clipBox)
	defer destroyAll(release)

	gapRegion := e.gapRegion(clipped, clipBox)
	defer func() { gapRegion.Destroy() }()

	if in.restrictToAOI && !gapRegion.IsEmpty() {
		restricted := e.intersectAreasOfInterest(gapRegion, in.areasOfInterest, clipBox)
		gapRegion.Destroy()
		gapRegion = restricted
	}

	components := e.kernel.ConnectedComponents(gapRegion)
	if len(components) == 0 {
		return nil, clipBox
	}

	evaluator := newOffsetAreaEvaluator(in.subtile, clipBox, e.kernel)
	defer evaluator.close()

	result := components[:0]
	for _, component := range components {
		if evaluator.inOffsetArea(component) {
			component.Destroy()
			continue
		}
		result = append(result, component)
	}
	return result, clipBox
}

// clipPolygons clips every feature to the clip box. Features already
// contained in the box are used as they are, unless they have to be snapped.
// The second result lists the copies to release.
func (e *extractor) clipPolygons(features []*geos.Geom, clipBox Box) ([]*geos.Geom, []*geos.Geom) {
	result := make([]*geos.Geom, 0, len(features))
	var copies []*geos.Geom

	for _, feature := range features {
		clipped, copied := e.clipPolygon(feature, clipBox)
		if e.snap != nil {
			snapped, err := utils.SnapToGrid(clipped, *e.snap)
			if copied {
				clipped.Destroy()
			}
			if err != nil {
				e.logger.Warn("cannot snap polygon copy, skipping", "error", err)
				continue
			}
			clipped, copied = snapped, true
		}

		if copied {
			copies = append(copies, clipped)
		}
		if clipped.IsEmpty() {
			continue
		}
		result = append(result, clipped)
	}
	return result, copies
}

func (e *extractor) clipPolygon(polygon *geos.Geom, clipBox Box) (*geos.Geom, bool) {
	if clipBox.Contains(e.kernel.Envelope(polygon)) {
		return polygon, false
	}
	return e.kernel.Clip(polygon, clipBox), true
}

// gapRegion returns the part of the clip box not covered by the clipped
// polygons.
func (e *extractor) gapRegion(clipped []*geos.Geom, clipBox Box) *geos.Geom {
	clipPolygon := clipBox.Polygon()
	if len(clipped) == 0 {
		return clipPolygon
	}
	defer clipPolygon.Destroy()

	coverage := e.kernel.Union(clipped)
	defer coverage.Destroy()

	return e.kernel.Difference(clipPolygon, coverage)
}

func (e *extractor) intersectAreasOfInterest(gapRegion *geos.Geom, areasOfInterest []*geos.Geom, clipBox Box) *geos.Geom {
	clipped, release := e.clipAreasOfInterest(areasOfInterest, clipBox)
	defer destroyAll(release)

	if len(clipped) == 0 {
		// no area of interest reaches into this subtile
		empty, _ := geos.NewGeomFromWKT("POLYGON EMPTY")
		return empty
	}

	unioned := e.kernel.Union(clipped)
	defer unioned.Destroy()

	return e.kernel.Intersection(gapRegion, unioned)
}

func (e *extractor) clipAreasOfInterest(areasOfInterest []*geos.Geom, clipBox Box) ([]*geos.Geom, []*geos.Geom) {
	var result, copies []*geos.Geom
	for _, aoi := range areasOfInterest {
		clipped, copied := e.clipPolygon(aoi, clipBox)
		if copied {
			copies = append(copies, clipped)
		}
		if !clipped.IsEmpty() {
			result = append(result, clipped)
		}
	}
	return result, copies
}

// offsetAreaEvaluator decides whether a gap candidate lies completely within
// the offset strip between the tile envelope and the clip envelope. Such a
// candidate was seen completely by the neighbouring tile to the west or
// south.
type offsetAreaEvaluator struct {
	tile   Box
	clip   Box
	kernel Kernel

	offsetArea  float64
	tilePolygon *geos.Geom
}

func newOffsetAreaEvaluator(tile, clip Box, kernel Kernel) *offsetAreaEvaluator {
	return &offsetAreaEvaluator{
		tile:       tile,
		clip:       clip,
		kernel:     kernel,
		offsetArea: clip.Area() - tile.Area(),
	}
}

func (o *offsetAreaEvaluator) inOffsetArea(gap *geos.Geom) bool {
	env := o.kernel.Envelope(gap)

	if env.XMin() >= o.tile.XMin() && env.YMin() >= o.tile.YMin() {
		// does not reach across the left/lower tile boundary
		return false
	}

	if env.XMax() <= o.tile.XMin() || env.YMax() <= o.tile.YMin() {
		// no interior intersection with the tile envelope
		return true
	}

	if o.kernel.Area(gap) > o.offsetArea {
		return false
	}

	// small enough to fit the offset strip, check the tile interior
	if o.tilePolygon == nil {
		o.tilePolygon = o.tile.Polygon()
	}
	inside := o.kernel.Intersection(gap, o.tilePolygon)
	defer inside.Destroy()

	return o.kernel.Area(inside) <= minimumGapArea
}

func (o *offsetAreaEvaluator) close() {
	if o.tilePolygon != nil {
		o.tilePolygon.Destroy()
		o.tilePolygon = nil
	}
}
