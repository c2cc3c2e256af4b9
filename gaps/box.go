package gaps

import (
	"fmt"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/twpayne/go-geos"
)

// Box is an axis-aligned rectangle used for tile extents, clip extents and the
// overall run extent.
type Box struct {
	rect r2.Rect
}

func NewBox(xMin, yMin, xMax, yMax float64) Box {
	return Box{rect: r2.Rect{
		X: r1.Interval{Lo: xMin, Hi: xMax},
		Y: r1.Interval{Lo: yMin, Hi: yMax},
	}}
}

// BoxOf returns the envelope of a geometry. Empty geometries yield an empty box.
func BoxOf(g *geos.Geom) Box {
	if g == nil || g.IsEmpty() {
		return Box{rect: r2.EmptyRect()}
	}
	b := g.Bounds()
	return NewBox(b.MinX, b.MinY, b.MaxX, b.MaxY)
}

func (b Box) XMin() float64 { return b.rect.X.Lo }
func (b Box) YMin() float64 { return b.rect.Y.Lo }
func (b Box) XMax() float64 { return b.rect.X.Hi }
func (b Box) YMax() float64 { return b.rect.Y.Hi }

func (b Box) Width() float64  { return b.rect.X.Length() }
func (b Box) Height() float64 { return b.rect.Y.Length() }

func (b Box) IsEmpty() bool { return b.rect.IsEmpty() }

func (b Box) Area() float64 {
	if b.IsEmpty() {
		return 0
	}
	return b.Width() * b.Height()
}

// Intersects reports whether the closed boxes share at least one point.
func (b Box) Intersects(other Box) bool {
	return b.rect.Intersects(other.rect)
}

// InteriorIntersects reports whether the interiors of both boxes overlap.
func (b Box) InteriorIntersects(other Box) bool {
	return b.rect.X.InteriorIntersects(other.rect.X) &&
		b.rect.Y.InteriorIntersects(other.rect.Y) &&
		other.rect.X.InteriorIntersects(b.rect.X) &&
		other.rect.Y.InteriorIntersects(b.rect.Y)
}

func (b Box) Contains(other Box) bool {
	return b.rect.Contains(other.rect)
}

// Expand returns a box grown by d on all sides.
func (b Box) Expand(d float64) Box {
	return Box{rect: b.rect.ExpandedByMargin(d)}
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(other Box) Box {
	return Box{rect: b.rect.Union(other.rect)}
}

func (b Box) Center() (float64, float64) {
	c := b.rect.Center()
	return c.X, c.Y
}

// Polygon builds a rectangular polygon for the box. The caller owns the result.
func (b Box) Polygon() *geos.Geom {
	return geos.NewPolygon([][][]float64{{
		{b.XMin(), b.YMin()},
		{b.XMax(), b.YMin()},
		{b.XMax(), b.YMax()},
		{b.XMin(), b.YMax()},
		{b.XMin(), b.YMin()},
	}})
}

// Box2D converts the box to the GEOS bounds type.
func (b Box) Box2D() *geos.Box2D {
	return &geos.Box2D{MinX: b.XMin(), MinY: b.YMin(), MaxX: b.XMax(), MaxY: b.YMax()}
}

func (b Box) String() string {
	return fmt.Sprintf("[%g %g, %g %g]", b.XMin(), b.YMin(), b.XMax(), b.YMax())
}
