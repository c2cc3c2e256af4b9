package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/bsaid97/go-nogaps/gaps"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server           ServerConfig          `yaml:"server"`
	Tiling           TilingConfig          `yaml:"tiling"`
	Rule             RuleConfig            `yaml:"rule"`
	SpatialReference gaps.SpatialReference `yaml:"spatialReference"`
}

type ServerConfig struct {
	Address string `yaml:"address"`
}

type TilingConfig struct {
	// TileSize is the edge length of the square tiles the run box is cut into
	TileSize float64 `yaml:"tileSize"`
	// Workers bounds the goroutines used to parse input features, 0 means one
	// per CPU
	Workers int `yaml:"workers"`
}

type RuleConfig struct {
	SliverLimit            float64 `yaml:"sliverLimit"`
	MaxArea                float64 `yaml:"maxArea"`
	SubtileWidth           float64 `yaml:"subtileWidth"`
	SubdivisionCount       int     `yaml:"subdivisionCount"`
	FindGapsBelowTolerance bool    `yaml:"findGapsBelowTolerance"`
	ExcludeRunBoundaryGaps bool    `yaml:"excludeRunBoundaryGaps"`
}

// Default returns the configuration used when no file is given: 1 km tiles
// in a projected system with millimetre tolerance.
func Default() Config {
	return Config{
		Server: ServerConfig{Address: ":8080"},
		Tiling: TilingConfig{TileSize: 1000},
		SpatialReference: gaps.SpatialReference{
			Name:         "default",
			XYResolution: 0.0001,
			XYTolerance:  0.001,
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if !(c.Tiling.TileSize > 0) || math.IsInf(c.Tiling.TileSize, 0) {
		errs = append(errs, fmt.Errorf("tiling.tileSize must be positive, got %g", c.Tiling.TileSize))
	}
	if c.Tiling.Workers < 0 {
		errs = append(errs, fmt.Errorf("tiling.workers must not be negative"))
	}
	if c.Rule.SliverLimit < 0 || c.Rule.MaxArea < 0 || c.Rule.SubtileWidth < 0 || c.Rule.SubdivisionCount < 0 {
		errs = append(errs, fmt.Errorf("rule: %w", gaps.ErrInvalidLimit))
	}
	if c.Rule.SubtileWidth > 0 && c.Rule.SubdivisionCount > 0 {
		errs = append(errs, fmt.Errorf("rule: %w", gaps.ErrInvalidSubdivision))
	}
	if c.SpatialReference.XYTolerance <= 0 {
		errs = append(errs, fmt.Errorf("spatialReference.xyTolerance must be positive"))
	}
	if c.Rule.FindGapsBelowTolerance && c.SpatialReference.XYResolution <= 0 {
		errs = append(errs, fmt.Errorf("spatialReference.xyResolution must be positive to find gaps below tolerance"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// RuleOptions maps the rule section to the options of the gap rule.
func (c Config) RuleOptions() gaps.Options {
	return gaps.Options{
		SliverLimit:            c.Rule.SliverLimit,
		MaxArea:                c.Rule.MaxArea,
		SubtileWidth:           c.Rule.SubtileWidth,
		SubdivisionCount:       c.Rule.SubdivisionCount,
		FindGapsBelowTolerance: c.Rule.FindGapsBelowTolerance,
		ExcludeRunBoundaryGaps: c.Rule.ExcludeRunBoundaryGaps,
	}
}
