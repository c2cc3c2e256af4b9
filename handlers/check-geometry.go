package handlers

import (
	"fmt"

	"github.com/twpayne/go-geos"
)

// Error describes an input feature that had to be repaired or was dropped.
type Error struct {
	Ref          int    `json:"ref"`
	ErrorMessage string `json:"errorMessage"`
}

// CheckGeometry returns the reason a geometry is invalid, or an empty string.
func CheckGeometry(shape *geos.Geom) string {
	if shape.IsValid() {
		return ""
	}
	return shape.IsValidReason()
}

// RepairGeometry makes an input shape usable by the gap rule. Invalid shapes
// are repaired, and the polygonal part of the result is kept. The input is
// consumed. A nil result means nothing polygonal is left.
func RepairGeometry(shape *geos.Geom) (*geos.Geom, error) {
	if shape.IsEmpty() {
		shape.Destroy()
		return nil, nil
	}

	if !shape.IsValid() {
		repaired := shape.MakeValidWithParams(geos.MakeValidStructure, geos.MakeValidDiscardCollapsed)
		shape.Destroy()
		if repaired == nil {
			return nil, fmt.Errorf("make valid failed")
		}
		shape = repaired
	}

	switch shape.TypeID() {
	case geos.TypeIDPolygon, geos.TypeIDMultiPolygon:
		return shape, nil
	case geos.TypeIDGeometryCollection:
		polygonal := polygonalParts(shape)
		shape.Destroy()
		return polygonal, nil
	default:
		typeID := shape.TypeID()
		shape.Destroy()
		return nil, fmt.Errorf("not a polygon (type %d)", typeID)
	}
}

// polygonalParts collects the polygons of a collection into a multipolygon.
func polygonalParts(collection *geos.Geom) *geos.Geom {
	var polygons []*geos.Geom
	for i := range collection.NumGeometries() {
		part := collection.Geometry(i)
		switch part.TypeID() {
		case geos.TypeIDPolygon:
			polygons = append(polygons, part.Clone())
		case geos.TypeIDMultiPolygon:
			for j := range part.NumGeometries() {
				polygons = append(polygons, part.Geometry(j).Clone())
			}
		}
	}
	if len(polygons) == 0 {
		return nil
	}
	return geos.NewCollection(geos.TypeIDMultiPolygon, polygons)
}
