package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-nogaps/gaps"
	"github.com/bsaid97/go-nogaps/utils"
)

const (
	// SourceIndexProperty selects the polygon source of a GeoJSON feature.
	SourceIndexProperty = "sourceIndex"
	// SourceIndexField selects the polygon source of a shapefile record.
	// Shapefile field names are limited to ten characters.
	SourceIndexField = "SOURCE_IDX"

	// maxSourceIndex bounds the number of polygon sources of a run
	maxSourceIndex = 1023
)

// RawFeature is an input feature before conversion to GEOS.
type RawFeature struct {
	Ref         int
	SourceIndex int
	Geometry    geom.T
}

// Request holds the polygons to check and the optional areas of interest.
type Request struct {
	Polygons       []RawFeature
	AreaOfInterest []RawFeature
}

type requestBody struct {
	Type           string                     `json:"type"`
	Polygons       *geojson.FeatureCollection `json:"polygons"`
	AreaOfInterest *geojson.FeatureCollection `json:"areaOfInterest"`
}

// ParseGeoJSONRequest accepts either a FeatureCollection of polygons or an
// object with "polygons" and "areaOfInterest" collections.
func ParseGeoJSONRequest(data []byte) (Request, error) {
	var body requestBody
	if err := json.Unmarshal(data, &body); err != nil {
		return Request{}, fmt.Errorf("failed to parse request: %w", err)
	}

	if body.Type == "FeatureCollection" {
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return Request{}, fmt.Errorf("failed to parse feature collection: %w", err)
		}
		body.Polygons = &fc
	}
	if body.Polygons == nil {
		return Request{}, fmt.Errorf("request contains no polygons")
	}

	polygons, err := rawFeatures(body.Polygons, true)
	if err != nil {
		return Request{}, err
	}
	req := Request{Polygons: polygons}

	if body.AreaOfInterest != nil {
		if req.AreaOfInterest, err = rawFeatures(body.AreaOfInterest, false); err != nil {
			return Request{}, err
		}
	}
	return req, nil
}

func rawFeatures(fc *geojson.FeatureCollection, withSourceIndex bool) ([]RawFeature, error) {
	result := make([]RawFeature, 0, len(fc.Features))
	for i, feature := range fc.Features {
		raw := RawFeature{Ref: i, Geometry: feature.Geometry}
		if withSourceIndex {
			index, err := sourceIndex(feature.Properties)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			raw.SourceIndex = index
		}
		result = append(result, raw)
	}
	return result, nil
}

func sourceIndex(properties map[string]interface{}) (int, error) {
	value, ok := properties[SourceIndexProperty]
	if !ok || value == nil {
		return 0, nil
	}
	switch v := value.(type) {
	case float64:
		return checkSourceIndex(v)
	case string:
		return parseSourceIndex(v)
	default:
		return 0, fmt.Errorf("invalid %s %v", SourceIndexProperty, value)
	}
}

// parseSourceIndex parses a source index given as text, as in string
// properties and numeric DBF fields. Empty text selects the first source.
func parseSourceIndex(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", SourceIndexProperty, value)
	}
	return checkSourceIndex(parsed)
}

func checkSourceIndex(index float64) (int, error) {
	if index != math.Trunc(index) {
		return 0, fmt.Errorf("%s %v is not a whole number", SourceIndexProperty, index)
	}
	if index < 0 || index > maxSourceIndex {
		return 0, fmt.Errorf("%s %v out of range 0..%d", SourceIndexProperty, index, maxSourceIndex)
	}
	return int(index), nil
}

// ReadInputFile reads polygons from a GeoJSON file, a shapefile, or a zipped
// shapefile.
func ReadInputFile(path string) ([]RawFeature, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return readShapefile(path)
	case ".zip":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return readShapefileZip(data)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		req, err := ParseGeoJSONRequest(data)
		if err != nil {
			return nil, err
		}
		return req.Polygons, nil
	}
}

func readShapefileZip(data []byte) ([]RawFeature, error) {
	dir, shpPath, err := utils.ExtractShapefileZip(data)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	return readShapefile(shpPath)
}

func readShapefile(path string) ([]RawFeature, error) {
	features, err := utils.ReadShapefilePolygons(path)
	if err != nil {
		return nil, err
	}
	result := make([]RawFeature, 0, len(features))
	for _, feature := range features {
		index, err := parseSourceIndex(shapefileAttribute(feature.Properties, SourceIndexField))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", feature.Index, err)
		}
		result = append(result, RawFeature{Ref: feature.Index, SourceIndex: index, Geometry: feature.Geometry})
	}
	return result, nil
}

// shapefileAttribute looks up a field ignoring case, as DBF writers differ in
// the case of field names.
func shapefileAttribute(properties map[string]string, field string) string {
	for name, value := range properties {
		if strings.EqualFold(name, field) {
			return value
		}
	}
	return ""
}

// Feature is an input polygon prepared for the rule.
type Feature struct {
	OID         int64
	SourceIndex int
	Geom        *geos.Geom
}

// Dataset holds the prepared features of a run. Features of the area of
// interest use the source index following the polygon sources.
type Dataset struct {
	Sources    []gaps.PolygonSource
	AOISources []gaps.PolygonSource
	Features   []Feature
}

func (d *Dataset) Destroy() {
	for _, f := range d.Features {
		f.Geom.Destroy()
	}
	d.Features = nil
}

type parseResult struct {
	feature Feature
	err     *Error
}

// BuildDataset converts and repairs the request features in parallel. All
// sources share the given spatial reference. Features that cannot be used are
// skipped and returned as input errors.
func BuildDataset(ctx context.Context, req Request, sr gaps.SpatialReference, workers int, logger *slog.Logger) (*Dataset, []Error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sourceCount := 1
	for _, f := range req.Polygons {
		sourceCount = max(sourceCount, f.SourceIndex+1)
	}

	dataset := &Dataset{}
	for i := range sourceCount {
		dataset.Sources = append(dataset.Sources, gaps.PolygonSource{
			Name:             fmt.Sprintf("polygons %d", i),
			SpatialReference: &sr,
		})
	}

	items := req.Polygons
	if len(req.AreaOfInterest) > 0 {
		dataset.AOISources = []gaps.PolygonSource{{Name: "area of interest", SpatialReference: &sr}}
		items = make([]RawFeature, 0, len(req.Polygons)+len(req.AreaOfInterest))
		items = append(items, req.Polygons...)
		for _, f := range req.AreaOfInterest {
			f.SourceIndex = sourceCount
			items = append(items, f)
		}
	}

	processor := utils.NewParallelProcessor(workers, logger)
	results, err := utils.ProcessBatch(ctx, processor, items,
		func(_ context.Context, i int, raw RawFeature) (parseResult, error) {
			return parseFeature(int64(i+1), raw), nil
		}, "Parsing geometries")
	if err != nil {
		return nil, nil, err
	}

	var inputErrors []Error
	for _, result := range results {
		if result.err != nil {
			inputErrors = append(inputErrors, *result.err)
		}
		if result.feature.Geom != nil {
			dataset.Features = append(dataset.Features, result.feature)
		}
	}

	logger.Info("input prepared",
		"features", len(dataset.Features),
		"sources", len(dataset.Sources),
		"areaOfInterest", len(req.AreaOfInterest),
		"inputErrors", len(inputErrors))
	return dataset, inputErrors, nil
}

func parseFeature(oid int64, raw RawFeature) parseResult {
	if raw.Geometry == nil {
		return parseResult{err: &Error{Ref: raw.Ref, ErrorMessage: "missing geometry"}}
	}

	data, err := wkb.Marshal(raw.Geometry, wkb.NDR)
	if err != nil {
		return parseResult{err: &Error{Ref: raw.Ref, ErrorMessage: err.Error()}}
	}
	shape, err := geos.NewGeomFromWKB(data)
	if err != nil {
		return parseResult{err: &Error{Ref: raw.Ref, ErrorMessage: err.Error()}}
	}

	var inputErr *Error
	if reason := CheckGeometry(shape); reason != "" {
		inputErr = &Error{Ref: raw.Ref, ErrorMessage: "repaired: " + reason}
	}

	repaired, err := RepairGeometry(shape)
	if err != nil {
		return parseResult{err: &Error{Ref: raw.Ref, ErrorMessage: err.Error()}}
	}
	if repaired == nil {
		if inputErr == nil {
			inputErr = &Error{Ref: raw.Ref, ErrorMessage: "empty geometry"}
		}
		return parseResult{err: inputErr}
	}

	return parseResult{
		feature: Feature{OID: oid, SourceIndex: raw.SourceIndex, Geom: repaired},
		err:     inputErr,
	}
}
