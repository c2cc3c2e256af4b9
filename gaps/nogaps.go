package gaps

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bsaid97/go-nogaps/utils"
	"github.com/twpayne/go-geos"
)

// TileState is the position of a tile within a run.
type TileState int

const (
	// TileInitial announces a new run. No tile is processed.
	TileInitial TileState = iota
	TileInProgress
	// TileFinal is the last tile of the run.
	TileFinal
)

func (s TileState) String() string {
	switch s {
	case TileInitial:
		return "initial"
	case TileInProgress:
		return "in progress"
	case TileFinal:
		return "final"
	default:
		return fmt.Sprintf("TileState(%d)", int(s))
	}
}

type TileInfo struct {
	State           TileState
	CurrentEnvelope Box
	AllBox          Box
}

// Row is a feature fed to the rule. The shape is referenced, not owned, and
// must stay alive until the tile is completed.
type Row struct {
	OID   int64
	Shape *geos.Geom
}

// Options configure the gap rule. Zero limits are disabled.
type Options struct {
	SliverLimit            float64
	MaxArea                float64
	SubtileWidth           float64
	SubdivisionCount       int
	FindGapsBelowTolerance bool
	ExcludeRunBoundaryGaps bool

	Logger *slog.Logger
	Kernel Kernel
}

// NoGaps finds gaps between the polygons of one or more sources, tile by
// tile. The host calls BeginTile, ExecuteCore for every row of the tile and
// then CompleteTile.
type NoGaps struct {
	polygonSources []PolygonSource
	aoiSources     []PolygonSource
	opts           Options
	sink           ErrorSink
	logger         *slog.Logger
	kernel         Kernel
	validator      GapValidator

	resolution *Resolution

	features        []*geos.Geom
	areasOfInterest []*geos.Geom

	knownGaps *KnownGaps
}

// NewNoGaps creates the rule. Rows with a source index beyond the polygon
// sources belong to the area of interest sources. Without
// FindGapsBelowTolerance the spatial references are checked right away.
func NewNoGaps(polygonSources, aoiSources []PolygonSource, opts Options, sink ErrorSink) (*NoGaps, error) {
	if len(polygonSources) == 0 {
		return nil, ErrNoPolygonSources
	}
	if sink == nil {
		return nil, errors.New("gaps: error sink is required")
	}
	if opts.SliverLimit < 0 || opts.MaxArea < 0 || opts.SubtileWidth < 0 || opts.SubdivisionCount < 0 {
		return nil, ErrInvalidLimit
	}
	if opts.SubtileWidth > 0 && opts.SubdivisionCount > 0 {
		return nil, ErrInvalidSubdivision
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	kernel := opts.Kernel
	if kernel == nil {
		kernel = GEOSKernel{}
	}

	n := &NoGaps{
		polygonSources: polygonSources,
		aoiSources:     aoiSources,
		opts:           opts,
		sink:           sink,
		logger:         logger,
		kernel:         kernel,
		validator: GapValidator{
			MaxArea:     opts.MaxArea,
			SliverLimit: opts.SliverLimit,
			Kernel:      kernel,
		},
	}

	if !opts.FindGapsBelowTolerance {
		if err := n.resolve(Box{}); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// BeginTile is called before the rows of a tile are passed. The resolution
// is derived on the first tile of a run once the run envelope is known.
func (n *NoGaps) BeginTile(tile, run Box) error {
	n.logger.Debug("begin tile", "tile", tile)
	if n.resolution != nil {
		return nil
	}
	return n.resolve(run)
}

func (n *NoGaps) resolve(run Box) error {
	var (
		resolution Resolution
		err        error
	)
	if n.opts.FindGapsBelowTolerance {
		resolution, err = ResolveMaximumResolution(n.polygonSources, run)
	} else {
		resolution, err = ResolveCommonReference(n.polygonSources)
	}
	if err != nil {
		return err
	}

	if err := n.subdivision().validate(resolution.MinimumSubtileWidth); err != nil {
		return err
	}

	n.resolution = &resolution
	n.logger.Info("gap rule resolution",
		"tolerance", resolution.XYTolerance,
		"resolution", resolution.SpatialReference.XYResolution,
		"minimumSubtileWidth", resolution.MinimumSubtileWidth,
		"findGapsBelowTolerance", n.opts.FindGapsBelowTolerance)
	return nil
}

// Tolerance returns the resolved xy tolerance, or zero before resolution.
func (n *NoGaps) Tolerance() float64 {
	if n.resolution == nil {
		return 0
	}
	return n.resolution.XYTolerance
}

// SearchDistance is the distance by which the host has to enlarge a tile
// when selecting its rows.
func (n *NoGaps) SearchDistance() float64 {
	return n.Tolerance() * clipOffsetFactor
}

// ExecuteCore buffers the shape of a row for the current tile. Rows without
// a polygon shape are ignored. It never reports errors itself.
func (n *NoGaps) ExecuteCore(row Row, sourceIndex int) int {
	shape := row.Shape
	if shape == nil || shape.IsEmpty() {
		return 0
	}
	switch shape.TypeID() {
	case geos.TypeIDPolygon, geos.TypeIDMultiPolygon:
	default:
		n.logger.Debug("ignoring non-polygon row", "oid", row.OID, "type", shape.TypeID())
		return 0
	}

	if sourceIndex >= len(n.polygonSources) {
		n.areasOfInterest = append(n.areasOfInterest, shape)
	} else {
		n.features = append(n.features, shape)
	}
	return 0
}

// CompleteTile searches the gaps of the buffered rows and reports every gap
// completed by this tile. The returned count is the number of errors the
// sink recorded.
func (n *NoGaps) CompleteTile(info TileInfo) (int, error) {
	if info.State == TileInitial {
		n.reset()
		return 0, nil
	}
	defer n.clearTile()

	if n.resolution == nil {
		return 0, errors.New("gaps: tile completed before resolution, call BeginTile first")
	}
	if n.knownGaps == nil {
		n.knownGaps = NewKnownGaps(KnownGapsOptions{
			Tolerance:              n.resolution.XYTolerance,
			AllBox:                 info.AllBox,
			MaxArea:                n.opts.MaxArea,
			ExcludeRunBoundaryGaps: n.opts.ExcludeRunBoundaryGaps,
			Kernel:                 n.kernel,
		})
	}

	ex := &extractor{
		kernel:    n.kernel,
		tolerance: n.resolution.XYTolerance,
		logger:    n.logger,
	}
	if n.opts.FindGapsBelowTolerance {
		resolution, originX, originY := n.resolution.SnapGrid()
		ex.snap = &utils.Grid{Resolution: resolution, OriginX: originX, OriginY: originY}
	}

	errorCount := 0
	subtiles := Subtiles(info.CurrentEnvelope, n.subdivision(), n.resolution.MinimumSubtileWidth)
	for _, subtile := range subtiles {
		candidates, clipBox := ex.candidates(subtileInput{
			subtile:         subtile,
			allBox:          info.AllBox,
			features:        n.features,
			areasOfInterest: n.areasOfInterest,
			restrictToAOI:   len(n.aoiSources) > 0,
		})
		n.logger.Debug("subtile processed",
			"subtile", subtile, "clip", clipBox, "candidates", len(candidates))

		errorCount += n.report(n.knownGaps.Ingest(candidates, subtile))
	}

	if info.State == TileFinal {
		errorCount += n.report(n.knownGaps.Flush())
		n.knownGaps.Release()
		n.knownGaps = nil
	}

	n.logger.Debug("tile completed",
		"tile", info.CurrentEnvelope, "state", info.State,
		"subtiles", len(subtiles), "errors", errorCount, "pending", n.pending())
	return errorCount, nil
}

// report validates completed gaps and hands the accepted ones to the sink.
func (n *NoGaps) report(completed []*geos.Geom) int {
	errorCount := 0
	for _, gap := range completed {
		issue, ok := n.validator.Validate(gap)
		if !ok {
			gap.Destroy()
			continue
		}
		n.logger.Debug("gap found", "area", issue.Area, "code", issue.Code)
		errorCount += n.sink.Report(issue.Description, gap, issue.Code, "")
	}
	return errorCount
}

func (n *NoGaps) subdivision() Subdivision {
	return Subdivision{Width: n.opts.SubtileWidth, Count: n.opts.SubdivisionCount}
}

func (n *NoGaps) pending() int {
	if n.knownGaps == nil {
		return 0
	}
	return n.knownGaps.Pending()
}

// reset prepares a new run.
func (n *NoGaps) reset() {
	n.clearTile()
	if n.knownGaps != nil {
		n.knownGaps.Release()
		n.knownGaps = nil
	}
	if n.opts.FindGapsBelowTolerance {
		n.resolution = nil
	}
}

func (n *NoGaps) clearTile() {
	clear(n.features)
	n.features = n.features[:0]
	clear(n.areasOfInterest)
	n.areasOfInterest = n.areasOfInterest[:0]
}
