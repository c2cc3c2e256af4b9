package utils

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
)

// ShapefileFeature is a polygon read from a shapefile along with its
// attributes keyed by field name.
type ShapefileFeature struct {
	Index      int
	Geometry   *geom.MultiPolygon
	Properties map[string]string
}

// ReadShapefilePolygons reads every polygon record of the shapefile at path.
// Clockwise rings start a new polygon, counter-clockwise rings are holes of
// the preceding one.
func ReadShapefilePolygons(path string) ([]ShapefileFeature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shapefile: %w", err)
	}
	defer reader.Close()

	fields := reader.Fields()

	var features []ShapefileFeature
	for reader.Next() {
		n, shape := reader.Shape()

		polygon, ok := shape.(*shp.Polygon)
		if !ok {
			return nil, fmt.Errorf("record %d: unsupported shape type %T", n, shape)
		}

		multiPolygon, err := fromShapePolygon(polygon)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}

		properties := make(map[string]string, len(fields))
		for i, field := range fields {
			properties[field.String()] = strings.TrimSpace(reader.ReadAttribute(n, i))
		}

		features = append(features, ShapefileFeature{
			Index:      n,
			Geometry:   multiPolygon,
			Properties: properties,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read shapefile: %w", err)
	}
	return features, nil
}

func fromShapePolygon(polygon *shp.Polygon) (*geom.MultiPolygon, error) {
	var polygons [][][]geom.Coord

	for i := range polygon.Parts {
		start := int(polygon.Parts[i])
		end := len(polygon.Points)
		if i+1 < len(polygon.Parts) {
			end = int(polygon.Parts[i+1])
		}
		if start < 0 || end > len(polygon.Points) || end-start < 4 {
			continue
		}

		ring := make([]geom.Coord, 0, end-start)
		for _, p := range polygon.Points[start:end] {
			ring = append(ring, geom.Coord{p.X, p.Y})
		}

		if signedArea(ring) < 0 || len(polygons) == 0 {
			polygons = append(polygons, [][]geom.Coord{ring})
		} else {
			last := len(polygons) - 1
			polygons[last] = append(polygons[last], ring)
		}
	}

	return geom.NewMultiPolygon(geom.XY).SetCoords(polygons)
}

// ExtractShapefileZip unpacks a zipped shapefile into a new temporary
// directory and returns the directory and the path of the .shp file. The
// caller removes the directory.
func ExtractShapefileZip(data []byte) (string, string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", fmt.Errorf("failed to open zip: %w", err)
	}

	dir, err := os.MkdirTemp("", "shapefile_")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	var shpPath string
	for _, file := range archive.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(file.Name)
		ext := strings.ToLower(filepath.Ext(name))
		switch ext {
		case ".shp", ".shx", ".dbf", ".prj", ".cpg":
		default:
			continue
		}

		target := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+ext)
		if err := extractFile(file, target); err != nil {
			os.RemoveAll(dir)
			return "", "", err
		}
		if ext == ".shp" {
			shpPath = target
		}
	}

	if shpPath == "" {
		os.RemoveAll(dir)
		return "", "", fmt.Errorf("zip does not contain a .shp file")
	}
	return dir, shpPath, nil
}

func extractFile(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to extract %s: %w", file.Name, err)
	}
	return nil
}
