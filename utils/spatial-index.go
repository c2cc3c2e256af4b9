package utils

import (
	"math"

	"github.com/twpayne/go-geos"
)

// SpatialIndex is a uniform grid over integer ids and their bounds.
type SpatialIndex struct {
	cellSize float64
	bounds   map[int]*geos.Box2D
	grid     map[cellKey]map[int]struct{}
}

type cellKey struct {
	x, y int
}

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 || math.IsNaN(cellSize) || math.IsInf(cellSize, 0) {
		cellSize = 1
	}
	return &SpatialIndex{
		cellSize: cellSize,
		bounds:   make(map[int]*geos.Box2D),
		grid:     make(map[cellKey]map[int]struct{}),
	}
}

// AddGeometry indexes a geometry under id by its bounds. Empty geometries are
// ignored.
func (si *SpatialIndex) AddGeometry(geom *geos.Geom, id int) {
	if geom == nil || geom.IsEmpty() {
		return
	}
	si.Insert(id, geom.Bounds())
}

// Insert indexes id by bounds, replacing any previous entry for id.
func (si *SpatialIndex) Insert(id int, bounds *geos.Box2D) {
	if bounds == nil {
		return
	}
	si.Remove(id)
	b := *bounds
	si.bounds[id] = &b
	si.forEachCell(&b, func(key cellKey) {
		cell, ok := si.grid[key]
		if !ok {
			cell = make(map[int]struct{})
			si.grid[key] = cell
		}
		cell[id] = struct{}{}
	})
}

func (si *SpatialIndex) Remove(id int) {
	b, ok := si.bounds[id]
	if !ok {
		return
	}
	delete(si.bounds, id)
	si.forEachCell(b, func(key cellKey) {
		if cell, ok := si.grid[key]; ok {
			delete(cell, id)
			if len(cell) == 0 {
				delete(si.grid, key)
			}
		}
	})
}

func (si *SpatialIndex) Len() int {
	return len(si.bounds)
}

// Query returns the ids whose bounds intersect the query bounds, in no
// particular order.
func (si *SpatialIndex) Query(query *geos.Box2D) []int {
	seen := make(map[int]struct{})
	var result []int
	si.forEachCell(query, func(key cellKey) {
		for id := range si.grid[key] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if intersects(si.bounds[id], query) {
				result = append(result, id)
			}
		}
	})
	return result
}

func (si *SpatialIndex) forEachCell(b *geos.Box2D, fn func(cellKey)) {
	minCellX := int(math.Floor(b.MinX / si.cellSize))
	minCellY := int(math.Floor(b.MinY / si.cellSize))
	maxCellX := int(math.Floor(b.MaxX / si.cellSize))
	maxCellY := int(math.Floor(b.MaxY / si.cellSize))

	for x := minCellX; x <= maxCellX; x++ {
		for y := minCellY; y <= maxCellY; y++ {
			fn(cellKey{x, y})
		}
	}
}

func intersects(a, b *geos.Box2D) bool {
	return a.MinX <= b.MaxX && b.MinX <= a.MaxX && a.MinY <= b.MaxY && b.MinY <= a.MaxY
}
