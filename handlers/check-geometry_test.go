package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geos"
)

func TestCheckGeometry(t *testing.T) {
	valid, err := geos.NewGeomFromWKT("POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))")
	require.NoError(t, err)
	defer valid.Destroy()
	assert.Empty(t, CheckGeometry(valid))

	bowtie, err := geos.NewGeomFromWKT("POLYGON ((0 0, 2 2, 2 0, 0 2, 0 0))")
	require.NoError(t, err)
	defer bowtie.Destroy()
	assert.Contains(t, CheckGeometry(bowtie), "Self-intersection")
}

func TestRepairGeometry(t *testing.T) {
	tests := []struct {
		name     string
		wkt      string
		wantArea float64
		wantNil  bool
		wantErr  bool
	}{
		{name: "valid polygon", wkt: "POLYGON ((0 0, 1 0, 1 1, 0 1, 0 0))", wantArea: 1},
		{name: "bowtie", wkt: "POLYGON ((0 0, 2 2, 2 0, 0 2, 0 0))", wantArea: 2},
		{name: "polygon in collection", wkt: "GEOMETRYCOLLECTION (POINT (5 5), POLYGON ((0 0, 3 0, 3 3, 0 3, 0 0)))", wantArea: 9},
		{name: "collection without polygon", wkt: "GEOMETRYCOLLECTION (POINT (5 5))", wantNil: true},
		{name: "empty", wkt: "POLYGON EMPTY", wantNil: true},
		{name: "line", wkt: "LINESTRING (0 0, 1 1)", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, err := geos.NewGeomFromWKT(tt.wkt)
			require.NoError(t, err)

			repaired, err := RepairGeometry(shape)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, repaired)
				return
			}
			require.NotNil(t, repaired)
			defer repaired.Destroy()

			assert.True(t, repaired.IsValid())
			assert.InDelta(t, tt.wantArea, repaired.Area(), 1e-9)
		})
	}
}
