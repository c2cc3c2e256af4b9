package utils

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geos"
)

// Grid is a resolution grid anchored at an origin.
type Grid struct {
	Resolution float64
	OriginX    float64
	OriginY    float64
}

func (g Grid) snap(x, y float64) (float64, float64) {
	return snapValue(x, g.OriginX, g.Resolution), snapValue(y, g.OriginY, g.Resolution)
}

func snapValue(v, origin, resolution float64) float64 {
	return origin + math.Round((v-origin)/resolution)*resolution
}

// SnapToGrid rounds every vertex of a polygon or multipolygon to the grid.
// Rings collapsing to fewer than four vertices are dropped; a result that is
// no longer valid is repaired. The caller owns the returned geometry, the
// input is left untouched.
func SnapToGrid(feature *geos.Geom, grid Grid) (*geos.Geom, error) {
	if feature == nil {
		return nil, fmt.Errorf(`geometry is nil`)
	}
	if grid.Resolution <= 0 {
		return feature.Clone(), nil
	}

	var polygons []*geos.Geom
	switch feature.TypeID() {
	case geos.TypeIDPolygon:
		if p := snapSinglePolygon(feature, grid); p != nil {
			polygons = append(polygons, p)
		}
	case geos.TypeIDMultiPolygon:
		for i := range feature.NumGeometries() {
			if p := snapSinglePolygon(feature.Geometry(i), grid); p != nil {
				polygons = append(polygons, p)
			}
		}
	default:
		return nil, fmt.Errorf("cannot snap geometry of type %d", feature.TypeID())
	}

	var result *geos.Geom
	switch len(polygons) {
	case 0:
		return geos.NewGeomFromWKT("POLYGON EMPTY")
	case 1:
		result = polygons[0]
	default:
		result = geos.NewCollection(geos.TypeIDMultiPolygon, polygons)
	}

	if !result.IsValid() {
		repaired := result.MakeValidWithParams(geos.MakeValidStructure, geos.MakeValidDiscardCollapsed)
		result.Destroy()
		result = repaired
	}
	return result, nil
}

func snapSinglePolygon(polygon *geos.Geom, grid Grid) *geos.Geom {
	if polygon.IsEmpty() {
		return nil
	}
	exterior := snapRing(polygon.ExteriorRing().CoordSeq(), grid)
	if exterior == nil {
		return nil
	}

	rings := [][][]float64{exterior}
	for r := range polygon.NumInteriorRings() {
		if ring := snapRing(polygon.InteriorRing(r).CoordSeq(), grid); ring != nil {
			rings = append(rings, ring)
		}
	}

	return geos.NewPolygon(rings)
}

func snapRing(coords *geos.CoordSeq, grid Grid) [][]float64 {
	var ring [][]float64
	for i := range coords.Size() {
		x, y := grid.snap(coords.X(i), coords.Y(i))
		if n := len(ring); n > 0 && ring[n-1][0] == x && ring[n-1][1] == y {
			continue
		}
		ring = append(ring, []float64{x, y})
	}
	if n := len(ring); n > 0 && (ring[0][0] != ring[n-1][0] || ring[0][1] != ring[n-1][1]) {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return nil
	}
	return ring
}
