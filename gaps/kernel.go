package gaps

import (
	"github.com/twpayne/go-geos"
)

// minimumGapArea is the area below which a polygon produced by the set
// operations is treated as a degenerate artifact.
const minimumGapArea = 1e-10

// Kernel is the set of planar operations the gap search relies on. Every
// returned geometry is owned by the caller; inputs are never destroyed.
type Kernel interface {
	Clip(g *geos.Geom, box Box) *geos.Geom
	Union(geoms []*geos.Geom) *geos.Geom
	Difference(a, b *geos.Geom) *geos.Geom
	Intersection(a, b *geos.Geom) *geos.Geom
	ConnectedComponents(g *geos.Geom) []*geos.Geom
	Area(g *geos.Geom) float64
	Perimeter(g *geos.Geom) float64
	Envelope(g *geos.Geom) Box
}

// GEOSKernel binds Kernel to GEOS.
type GEOSKernel struct{}

// Clip returns the polygonal part of g within box. Lines and points left by
// polygons touching the box boundary are dropped.
func (GEOSKernel) Clip(g *geos.Geom, box Box) *geos.Geom {
	clipPolygon := box.Polygon()
	defer clipPolygon.Destroy()

	clipped := g.Intersection(clipPolygon)
	switch clipped.TypeID() {
	case geos.TypeIDPolygon, geos.TypeIDMultiPolygon:
		return clipped
	}
	defer clipped.Destroy()
	return polygonalPart(clipped)
}

// polygonalPart returns the polygons of g as a polygon, a multipolygon or an
// empty polygon.
func polygonalPart(g *geos.Geom) *geos.Geom {
	var polygons []*geos.Geom
	collectPolygons(g, &polygons)
	switch len(polygons) {
	case 0:
		empty, _ := geos.NewGeomFromWKT("POLYGON EMPTY")
		return empty
	case 1:
		return polygons[0]
	default:
		return geos.NewCollection(geos.TypeIDMultiPolygon, polygons)
	}
}

func (GEOSKernel) Union(geoms []*geos.Geom) *geos.Geom {
	return cascadedUnion(geoms)
}

func (GEOSKernel) Difference(a, b *geos.Geom) *geos.Geom {
	return a.Difference(b)
}

func (GEOSKernel) Intersection(a, b *geos.Geom) *geos.Geom {
	return a.Intersection(b)
}

// ConnectedComponents returns clones of the polygonal parts of g with a
// non-degenerate area.
func (GEOSKernel) ConnectedComponents(g *geos.Geom) []*geos.Geom {
	var result []*geos.Geom
	collectPolygons(g, &result)
	return result
}

func collectPolygons(g *geos.Geom, result *[]*geos.Geom) {
	if g == nil || g.IsEmpty() {
		return
	}
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		if g.Area() > minimumGapArea {
			*result = append(*result, g.Clone())
		}
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		for i := range g.NumGeometries() {
			collectPolygons(g.Geometry(i), result)
		}
	}
}

func (GEOSKernel) Area(g *geos.Geom) float64 {
	return g.Area()
}

func (GEOSKernel) Perimeter(g *geos.Geom) float64 {
	return g.Length()
}

func (GEOSKernel) Envelope(g *geos.Geom) Box {
	return BoxOf(g)
}

// cascadedUnion unions geometries pairwise, releasing intermediate results as
// it goes. The inputs stay untouched.
func cascadedUnion(geometries []*geos.Geom) *geos.Geom {
	switch len(geometries) {
	case 0:
		return nil
	case 1:
		return geometries[0].Clone()
	case 2:
		return geometries[0].Union(geometries[1])
	}

	mid := len(geometries) / 2
	left := cascadedUnion(geometries[:mid])
	right := cascadedUnion(geometries[mid:])

	result := left.Union(right)

	left.Destroy()
	right.Destroy()

	return result
}

func destroyAll(geoms []*geos.Geom) {
	for _, g := range geoms {
		if g != nil {
			g.Destroy()
		}
	}
}
