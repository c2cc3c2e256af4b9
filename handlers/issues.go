package handlers

import (
	"encoding/json"
	"log/slog"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geos"

	"github.com/bsaid97/go-nogaps/gaps"
	"github.com/bsaid97/go-nogaps/utils"
)

// IssueLayerName names the files of the issue output.
const IssueLayerName = "gaps"

type Issue struct {
	Description   string
	Code          gaps.IssueCode
	AffectedField string
	Area          float64
	Geometry      geom.T
}

// IssueCollector is the error sink of a run. It keeps every reported issue
// in memory.
type IssueCollector struct {
	Issues []Issue
	logger *slog.Logger
}

func NewIssueCollector(logger *slog.Logger) *IssueCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &IssueCollector{logger: logger}
}

func (c *IssueCollector) Report(description string, geometry *geos.Geom, code gaps.IssueCode, affectedField string) int {
	defer geometry.Destroy()

	g, err := wkb.Unmarshal(geometry.ToWKB())
	if err != nil {
		c.logger.Warn("cannot encode issue geometry", "error", err, "description", description)
		return 0
	}

	c.Issues = append(c.Issues, Issue{
		Description:   description,
		Code:          code,
		AffectedField: affectedField,
		Area:          geometry.Area(),
		Geometry:      g,
	})
	gapsReported.WithLabelValues(string(code)).Inc()
	return 1
}

// FeatureCollection encodes the issues as a GeoJSON FeatureCollection.
func (c *IssueCollector) FeatureCollection() ([]byte, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(c.Issues))}
	for i, issue := range c.Issues {
		properties := map[string]interface{}{
			"id":          i + 1,
			"description": issue.Description,
			"issueCode":   string(issue.Code),
			"area":        issue.Area,
		}
		if issue.AffectedField != "" {
			properties["affectedField"] = issue.AffectedField
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   issue.Geometry,
			Properties: properties,
		})
	}
	return json.Marshal(&fc)
}

// ShapefileLayer returns the issues as a polygon shapefile layer.
func (c *IssueCollector) ShapefileLayer() utils.ShapefileLayer {
	layer := utils.ShapefileLayer{
		Name: IssueLayerName,
		Fields: []shp.Field{
			shp.NumberField("ID", 10),
			shp.StringField("DESCRIPT", 254),
			shp.StringField("CODE", 60),
			shp.StringField("FIELD", 30),
			shp.FloatField("AREA", 19, 6),
		},
	}
	for i, issue := range c.Issues {
		layer.Records = append(layer.Records, utils.ShapefileRecord{
			Geometry: issue.Geometry,
			Values:   []any{i + 1, issue.Description, string(issue.Code), issue.AffectedField, issue.Area},
		})
	}
	return layer
}

// Zip bundles the GeoJSON and shapefile output of the issues.
func (c *IssueCollector) Zip() ([]byte, error) {
	data, err := c.FeatureCollection()
	if err != nil {
		return nil, err
	}
	return utils.GenerateShapefileZip(data, c.ShapefileLayer())
}
