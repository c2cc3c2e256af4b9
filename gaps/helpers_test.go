package gaps

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geos"
)

func mustWKT(t *testing.T, wkt string) *geos.Geom {
	t.Helper()
	g, err := geos.NewGeomFromWKT(wkt)
	require.NoError(t, err)
	t.Cleanup(g.Destroy)
	return g
}

func rect(t *testing.T, xMin, yMin, xMax, yMax float64) *geos.Geom {
	t.Helper()
	g := NewBox(xMin, yMin, xMax, yMax).Polygon()
	t.Cleanup(g.Destroy)
	return g
}

func totalArea(geoms []*geos.Geom) float64 {
	area := 0.0
	for _, g := range geoms {
		area += g.Area()
	}
	return area
}

// recordingSink keeps every reported issue.
type recordingSink struct {
	issues []recordedIssue
}

type recordedIssue struct {
	description string
	area        float64
	code        IssueCode
}

func (s *recordingSink) Report(description string, geometry *geos.Geom, code IssueCode, _ string) int {
	s.issues = append(s.issues, recordedIssue{description: description, area: geometry.Area(), code: code})
	geometry.Destroy()
	return 1
}
