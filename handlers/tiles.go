package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/bsaid97/go-nogaps/gaps"
	"github.com/bsaid97/go-nogaps/utils"
)

const (
	// maxTiles bounds the tiles of one run
	maxTiles = 1 << 20
	// minTileSizeFactor is the smallest tile size as a multiple of the
	// tolerance
	minTileSizeFactor = 100
)

var (
	ErrInvalidTileSize = errors.New("invalid tile size")
	ErrTooManyTiles    = errors.New("too many tiles")
)

// TileStats summarizes a tiled run.
type TileStats struct {
	AllBox     gaps.Box
	Tiles      int
	ErrorCount int
}

// RunTiles feeds the features to the rule tile by tile. Tiles of tileSize
// cover the envelope of all features and are visited row by row from south
// to north, west to east within a row. Each tile receives the features
// intersecting the tile enlarged by the search distance of the rule.
func RunTiles(ctx context.Context, rule *gaps.NoGaps, features []Feature, tileSize float64, logger *slog.Logger) (TileStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !(tileSize > 0) || math.IsInf(tileSize, 0) {
		return TileStats{}, fmt.Errorf("%w %g", ErrInvalidTileSize, tileSize)
	}

	allBox := gaps.BoxOf(nil)
	for _, f := range features {
		allBox = allBox.Union(gaps.BoxOf(f.Geom))
	}
	stats := TileStats{AllBox: allBox}
	if allBox.IsEmpty() {
		logger.Info("nothing to check")
		return stats, nil
	}

	if err := checkTileSize(rule, tileSize); err != nil {
		return stats, err
	}
	if tiles := tileCount(allBox.Width(), tileSize) * tileCount(allBox.Height(), tileSize); tiles > maxTiles {
		return stats, fmt.Errorf("%w: tile size %g gives %g tiles over %s, at most %d allowed",
			ErrTooManyTiles, tileSize, tiles, allBox, maxTiles)
	}
	columns := int(tileCount(allBox.Width(), tileSize))
	rows := int(tileCount(allBox.Height(), tileSize))

	index := utils.NewSpatialIndex(tileSize)
	for i, f := range features {
		index.AddGeometry(f.Geom, i)
	}

	if _, err := rule.CompleteTile(gaps.TileInfo{State: gaps.TileInitial, AllBox: allBox}); err != nil {
		return stats, err
	}

	logger.Info("checking tiles", "allBox", allBox, "columns", columns, "rows", rows, "tileSize", tileSize)
	for row := range rows {
		for column := range columns {
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			tile := tileBox(allBox, tileSize, column, row)
			if err := rule.BeginTile(tile, allBox); err != nil {
				return stats, err
			}
			if err := checkTileSize(rule, tileSize); err != nil {
				return stats, err
			}

			ids := index.Query(tile.Expand(rule.SearchDistance()).Box2D())
			sort.Ints(ids)
			for _, id := range ids {
				f := features[id]
				rule.ExecuteCore(gaps.Row{OID: f.OID, Shape: f.Geom}, f.SourceIndex)
			}

			state := gaps.TileInProgress
			if row == rows-1 && column == columns-1 {
				state = gaps.TileFinal
			}
			errorCount, err := rule.CompleteTile(gaps.TileInfo{
				State:           state,
				CurrentEnvelope: tile,
				AllBox:          allBox,
			})
			if err != nil {
				return stats, err
			}

			stats.Tiles++
			stats.ErrorCount += errorCount
			tilesProcessed.Inc()
		}
	}
	return stats, nil
}

// checkTileSize rejects tiles narrower than a hundred tolerances. Before the
// rule is resolved its tolerance is zero and any size passes.
func checkTileSize(rule *gaps.NoGaps, tileSize float64) error {
	if minimum := rule.Tolerance() * minTileSizeFactor; tileSize < minimum {
		return fmt.Errorf("%w %g, must be at least %g", ErrInvalidTileSize, tileSize, minimum)
	}
	return nil
}

// tileCount is kept as a float so that huge counts cannot overflow.
func tileCount(extent, tileSize float64) float64 {
	return math.Max(1, math.Ceil(extent/tileSize))
}

// tileBox returns the tile at column/row, clipped to the run box.
func tileBox(allBox gaps.Box, tileSize float64, column, row int) gaps.Box {
	xMin := allBox.XMin() + float64(column)*tileSize
	yMin := allBox.YMin() + float64(row)*tileSize
	return gaps.NewBox(
		xMin,
		yMin,
		math.Min(xMin+tileSize, allBox.XMax()),
		math.Min(yMin+tileSize, allBox.YMax()),
	)
}
