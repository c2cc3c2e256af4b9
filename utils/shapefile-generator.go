package utils

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// ShapefileLayer is a polygon layer written as .shp/.shx/.dbf.
type ShapefileLayer struct {
	Name    string
	Fields  []shp.Field
	Records []ShapefileRecord
}

// ShapefileRecord holds a polygon or multipolygon and one value per field.
type ShapefileRecord struct {
	Geometry geom.T
	Values   []any
}

// GenerateShapefileZip creates a zip file containing the GeoJSON document
// and the shapefile of the layer
func GenerateShapefileZip(jsonData []byte, layer ShapefileLayer) ([]byte, error) {
	var zipBuffer bytes.Buffer
	zipWriter := zip.NewWriter(&zipBuffer)

	jsonFile, err := zipWriter.Create(layer.Name + ".geojson")
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON file in zip: %w", err)
	}
	if _, err := jsonFile.Write(jsonData); err != nil {
		return nil, fmt.Errorf("failed to write JSON data to zip: %w", err)
	}

	if err := addShapefileToZip(zipWriter, layer); err != nil {
		return nil, fmt.Errorf("failed to add shapefile to zip: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip writer: %w", err)
	}
	return zipBuffer.Bytes(), nil
}

// addShapefileToZip creates shapefile components and adds them to the zip
func addShapefileToZip(zipWriter *zip.Writer, layer ShapefileLayer) error {
	tempDir, err := os.MkdirTemp("", "shapefile_")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	if err := WriteShapefile(filepath.Join(tempDir, layer.Name+".shp"), layer); err != nil {
		return err
	}

	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		fileContent, err := os.ReadFile(filepath.Join(tempDir, layer.Name+ext))
		if err != nil {
			return fmt.Errorf("failed to read shapefile component %s: %w", ext, err)
		}

		zipFile, err := zipWriter.Create(layer.Name + ext)
		if err != nil {
			return fmt.Errorf("failed to create %s file in zip: %w", ext, err)
		}
		if _, err := zipFile.Write(fileContent); err != nil {
			return fmt.Errorf("failed to write %s data to zip: %w", ext, err)
		}
	}
	return nil
}

// WriteShapefile writes the layer as a polygon shapefile at path.
func WriteShapefile(path string, layer ShapefileLayer) error {
	writer, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("failed to create shapefile: %w", err)
	}
	defer writer.Close()

	if err := writer.SetFields(layer.Fields); err != nil {
		return fmt.Errorf("failed to set shapefile fields: %w", err)
	}

	for i, record := range layer.Records {
		polygon, err := toShapePolygon(record.Geometry)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		row := int(writer.Write(polygon))

		for field, value := range record.Values {
			if field >= len(layer.Fields) {
				break
			}
			if err := writer.WriteAttribute(row, field, value); err != nil {
				return fmt.Errorf("record %d, field %d: %w", i, field, err)
			}
		}
	}
	return nil
}

// toShapePolygon converts a polygon or multipolygon into shapefile parts:
// exterior rings clockwise, holes counter-clockwise.
func toShapePolygon(g geom.T) (*shp.Polygon, error) {
	var polygons []*geom.Polygon
	switch t := g.(type) {
	case *geom.Polygon:
		polygons = append(polygons, t)
	case *geom.MultiPolygon:
		for i := range t.NumPolygons() {
			polygons = append(polygons, t.Polygon(i))
		}
	default:
		return nil, fmt.Errorf("unsupported geometry type: %T", g)
	}

	var parts [][]shp.Point
	for _, polygon := range polygons {
		for r := range polygon.NumLinearRings() {
			coords := polygon.LinearRing(r).Coords()
			if len(coords) < 4 {
				continue
			}
			clockwise := signedArea(coords) < 0
			if wantClockwise := r == 0; clockwise != wantClockwise {
				coords = reversed(coords)
			}
			points := make([]shp.Point, len(coords))
			for i, c := range coords {
				points[i] = shp.Point{X: c.X(), Y: c.Y()}
			}
			parts = append(parts, points)
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("polygon without rings")
	}

	polygon := shp.Polygon(*shp.NewPolyLine(parts))
	return &polygon, nil
}

// signedArea is positive for counter-clockwise rings.
func signedArea(coords []geom.Coord) float64 {
	sum := 0.0
	for i := 0; i+1 < len(coords); i++ {
		sum += coords[i].X()*coords[i+1].Y() - coords[i+1].X()*coords[i].Y()
	}
	return sum / 2
}

func reversed(coords []geom.Coord) []geom.Coord {
	result := make([]geom.Coord, len(coords))
	for i, c := range coords {
		result[len(coords)-1-i] = c
	}
	return result
}
