package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-nogaps/config"
)

// enclosedGapCollection surrounds an 80x20 gap with four polygons. The
// polygons span 100x100 so a tile size of 50 splits the gap over four tiles.
const enclosedGapCollection = `{
	"type": "FeatureCollection",
	"features": [
		{"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[0,0],[100,0],[100,40],[0,40],[0,0]]]}},
		{"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[0,60],[100,60],[100,100],[0,100],[0,60]]]}},
		{"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[0,40],[10,40],[10,60],[0,60],[0,40]]]}},
		{"type": "Feature", "properties": {}, "geometry": {"type": "Polygon", "coordinates": [[[90,40],[100,40],[100,60],[90,60],[90,40]]]}}
	]
}`

const enclosedGapArea = 1600.0

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Tiling.TileSize = 50
	cfg.Tiling.Workers = 2
	return cfg
}

func polygon(t *testing.T, xMin, yMin, xMax, yMax float64) *geom.Polygon {
	t.Helper()
	p, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{{
		{xMin, yMin}, {xMax, yMin}, {xMax, yMax}, {xMin, yMax}, {xMin, yMin},
	}})
	require.NoError(t, err)
	return p
}

func enclosedGapRequest(t *testing.T) Request {
	t.Helper()
	req, err := ParseGeoJSONRequest([]byte(enclosedGapCollection))
	require.NoError(t, err)
	return req
}
