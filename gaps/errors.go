package gaps

import "errors"

// Configuration errors. They are returned before any tile is processed and
// abort the run.
var (
	ErrNoPolygonSources         = errors.New("gaps: no polygon sources")
	ErrNoSpatialReference       = errors.New("gaps: dataset without spatial reference")
	ErrSpatialReferenceMismatch = errors.New("gaps: all datasets must have the same spatial reference (with equal tolerance/resolution)")
	ErrInvalidSubdivision       = errors.New("gaps: subtile width and subdivision count are mutually exclusive")
	ErrSubtileWidthTooSmall     = errors.New("gaps: invalid subtile width")
	ErrInvalidLimit             = errors.New("gaps: limits must not be negative")
)
