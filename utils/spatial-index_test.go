package utils

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/twpayne/go-geos"
)

func box(minX, minY, maxX, maxY float64) *geos.Box2D {
	return &geos.Box2D{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

func sorted(ids []int) []int {
	sort.Ints(ids)
	return ids
}

func TestSpatialIndex_Query(t *testing.T) {
	si := NewSpatialIndex(10)
	si.Insert(1, box(0, 0, 5, 5))
	si.Insert(2, box(8, 8, 25, 12))
	si.Insert(3, box(-30, -30, -20, -20))

	assert.Equal(t, 3, si.Len())
	assert.Equal(t, []int{1, 2}, sorted(si.Query(box(4, 4, 9, 9))))
	assert.Equal(t, []int{2}, sorted(si.Query(box(20, 10, 21, 11))))
	assert.Equal(t, []int{3}, sorted(si.Query(box(-25, -25, -24, -24))))
	assert.Empty(t, si.Query(box(100, 100, 101, 101)))

	// touching bounds count as intersecting
	assert.Equal(t, []int{1}, sorted(si.Query(box(5, 0, 6, 1))))
}

func TestSpatialIndex_InsertReplacesAndRemove(t *testing.T) {
	si := NewSpatialIndex(10)
	si.Insert(1, box(0, 0, 5, 5))
	si.Insert(1, box(50, 50, 55, 55))

	assert.Equal(t, 1, si.Len())
	assert.Empty(t, si.Query(box(0, 0, 5, 5)))
	assert.Equal(t, []int{1}, si.Query(box(50, 50, 51, 51)))

	si.Remove(1)
	si.Remove(42)
	assert.Equal(t, 0, si.Len())
	assert.Empty(t, si.Query(box(50, 50, 51, 51)))
}

func TestSpatialIndex_AddGeometry(t *testing.T) {
	si := NewSpatialIndex(0)

	g, err := geos.NewGeomFromWKT("POLYGON ((1 1, 3 1, 3 3, 1 3, 1 1))")
	assert.NoError(t, err)
	defer g.Destroy()
	empty, err := geos.NewGeomFromWKT("POLYGON EMPTY")
	assert.NoError(t, err)
	defer empty.Destroy()

	si.AddGeometry(g, 7)
	si.AddGeometry(empty, 8)
	si.AddGeometry(nil, 9)

	assert.Equal(t, 1, si.Len())
	assert.Equal(t, []int{7}, si.Query(box(2, 2, 2, 2)))
}
