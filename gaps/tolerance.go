package gaps

import (
	"fmt"
	"math"
)

// SpatialReference describes the coordinate system of a polygon source along
// with its xy precision domain. FalseX/FalseY are the origin of the
// resolution grid.
type SpatialReference struct {
	Name         string  `yaml:"name" json:"name"`
	WKID         int     `yaml:"wkid" json:"wkid"`
	XYResolution float64 `yaml:"xyResolution" json:"xyResolution"`
	XYTolerance  float64 `yaml:"xyTolerance" json:"xyTolerance"`
	FalseX       float64 `yaml:"falseX" json:"falseX"`
	FalseY       float64 `yaml:"falseY" json:"falseY"`
}

// Equal compares coordinate system, precision and tolerance exactly.
func (sr *SpatialReference) Equal(other *SpatialReference) bool {
	if sr == nil || other == nil {
		return sr == other
	}
	return sr.WKID == other.WKID &&
		sr.XYResolution == other.XYResolution &&
		sr.XYTolerance == other.XYTolerance &&
		sr.FalseX == other.FalseX &&
		sr.FalseY == other.FalseY
}

// gridAligned reports whether two precision domains snap to the same pixels.
func (sr *SpatialReference) gridAligned(other *SpatialReference) bool {
	if sr.WKID != other.WKID || sr.XYResolution != other.XYResolution {
		return false
	}
	if sr.XYResolution <= 0 {
		return sr.FalseX == other.FalseX && sr.FalseY == other.FalseY
	}
	return isMultiple(sr.FalseX-other.FalseX, sr.XYResolution) &&
		isMultiple(sr.FalseY-other.FalseY, sr.XYResolution)
}

func isMultiple(d, unit float64) bool {
	n := d / unit
	return math.Abs(n-math.Round(n)) < 1e-6
}

// PolygonSource is a dataset whose rows are fed to the rule.
type PolygonSource struct {
	Name             string
	SpatialReference *SpatialReference
}

// Resolution is the tolerance triple shared by every set operation of a run.
type Resolution struct {
	SpatialReference    SpatialReference
	XYTolerance         float64
	MinimumSubtileWidth float64
}

// SnapGrid returns the resolution grid polygon copies are snapped to, or zero
// when no snapping applies.
func (r Resolution) SnapGrid() (resolution, originX, originY float64) {
	return r.SpatialReference.XYResolution, r.SpatialReference.FalseX, r.SpatialReference.FalseY
}

// ResolveCommonReference requires all sources to share one spatial reference
// with equal precision and tolerance.
func ResolveCommonReference(sources []PolygonSource) (Resolution, error) {
	var common *SpatialReference
	for _, source := range sources {
		if source.SpatialReference == nil {
			return Resolution{}, fmt.Errorf("%w: source %q", ErrNoSpatialReference, source.Name)
		}
		if common == nil {
			common = source.SpatialReference
			continue
		}
		if !common.Equal(source.SpatialReference) {
			return Resolution{}, fmt.Errorf("%w: source %q (%s) differs from %s",
				ErrSpatialReferenceMismatch, source.Name,
				describe(source.SpatialReference), describe(common))
		}
	}
	if common == nil {
		return Resolution{}, ErrNoSpatialReference
	}

	return Resolution{
		SpatialReference:    *common,
		XYTolerance:         common.XYTolerance,
		MinimumSubtileWidth: common.XYTolerance * 100,
	}, nil
}

// ResolveMaximumResolution derives a shared reference fine enough to find gaps
// below the natural tolerance of the sources. runBox centers the synthesized
// precision domain.
func ResolveMaximumResolution(sources []PolygonSource, runBox Box) (Resolution, error) {
	var first *SpatialReference
	minResolution := math.Inf(1)
	maxResolution := 0.0
	aligned := true

	for _, source := range sources {
		sr := source.SpatialReference
		if sr == nil {
			return Resolution{}, fmt.Errorf("%w: source %q", ErrNoSpatialReference, source.Name)
		}
		if sr.XYResolution <= 0 {
			return Resolution{}, fmt.Errorf("%w: source %q has resolution %g",
				ErrNoSpatialReference, source.Name, sr.XYResolution)
		}
		if first == nil {
			first = sr
		} else if !first.gridAligned(sr) {
			aligned = false
		}
		minResolution = math.Min(minResolution, sr.XYResolution)
		maxResolution = math.Max(maxResolution, sr.XYResolution)
	}
	if first == nil {
		return Resolution{}, ErrNoSpatialReference
	}

	result := *first
	resolution := maxResolution
	if aligned {
		resolution = minResolution
		// keep coordinate magnitudes small relative to the grid origin
		cx, cy := runBox.Center()
		if !runBox.IsEmpty() {
			result.FalseX = first.FalseX + math.Round((cx-first.FalseX)/resolution)*resolution
			result.FalseY = first.FalseY + math.Round((cy-first.FalseY)/resolution)*resolution
		}
	}
	result.XYResolution = resolution
	result.XYTolerance = resolution * 2

	return Resolution{
		SpatialReference:    result,
		XYTolerance:         result.XYTolerance,
		MinimumSubtileWidth: resolution * 10000,
	}, nil
}

func describe(sr *SpatialReference) string {
	return fmt.Sprintf("wkid=%d resolution=%g tolerance=%g", sr.WKID, sr.XYResolution, sr.XYTolerance)
}
