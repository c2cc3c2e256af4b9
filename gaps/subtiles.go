package gaps

import "fmt"

// Subdivision selects how a tile is split into subtiles. At most one of Width
// and Count may be set.
type Subdivision struct {
	Width float64
	Count int
}

func (s Subdivision) validate(minimumWidth float64) error {
	if s.Width > 0 && s.Count > 0 {
		return ErrInvalidSubdivision
	}
	if s.Width > 0 && s.Width <= minimumWidth {
		return fmt.Errorf("%w: %g, minimum value: %g", ErrSubtileWidthTooSmall, s.Width, minimumWidth)
	}
	return nil
}

// Subtiles splits a tile envelope into strips along the X axis.
//
// Only X is subdivided: tiles are completed row by row and splitting along Y
// would break the completion logic of the known gaps.
func Subtiles(tile Box, s Subdivision, minimumWidth float64) []Box {
	if s.Width > 0 && s.Count == 0 {
		return subtilesByWidth(tile, s.Width, minimumWidth)
	}
	return subtilesByCount(tile, s.Count, minimumWidth)
}

func subtilesByWidth(tile Box, width, minimumWidth float64) []Box {
	if width+minimumWidth > tile.Width() {
		// the second subtile would be below the minimum width
		return []Box{tile}
	}

	var result []Box
	xMin := tile.XMin()
	for {
		xMax := xMin + width
		last := xMax >= tile.XMax() || tile.XMax()-xMax < minimumWidth
		if last {
			// the remainder is too narrow, extend this strip to the tile edge
			xMax = tile.XMax()
		}
		result = append(result, NewBox(xMin, tile.YMin(), xMax, tile.YMax()))
		if last {
			return result
		}
		xMin = xMax
	}
}

func subtilesByCount(tile Box, subdivisions int, minimumWidth float64) []Box {
	if subdivisions <= 1 {
		return []Box{tile}
	}

	// one subdivision yields two subtiles
	count := subdivisions + 1
	width := tile.Width() / float64(count)
	if width < minimumWidth {
		return []Box{tile}
	}

	result := make([]Box, 0, count)
	xMin := tile.XMin()
	for i := range count {
		xMax := xMin + width
		if i == count-1 {
			xMax = tile.XMax()
		}
		result = append(result, NewBox(xMin, tile.YMin(), xMax, tile.YMax()))
		xMin = xMax
	}
	return result
}
