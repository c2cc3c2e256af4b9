package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bsaid97/go-nogaps/config"
	"github.com/bsaid97/go-nogaps/gaps"
	"github.com/bsaid97/go-nogaps/utils"
)

// maxBodySize limits JSON request bodies.
const maxBodySize = 512 << 20

// CheckResult is the outcome of one gap check run.
type CheckResult struct {
	RunID       string
	Stats       TileStats
	InputErrors []Error
	Issues      *IssueCollector
}

// CheckGaps runs the gap rule over the request features.
func CheckGaps(ctx context.Context, req Request, cfg config.Config, logger *slog.Logger) (result *CheckResult, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.NewString()
	logger = logger.With("runId", runID)
	start := time.Now()

	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
		runsTotal.WithLabelValues(runResult(err)).Inc()
	}()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("gap check started", "polygons", len(req.Polygons), "areaOfInterest", len(req.AreaOfInterest))

	dataset, inputErrors, err := BuildDataset(ctx, req, cfg.SpatialReference, cfg.Tiling.Workers, logger)
	if err != nil {
		return nil, err
	}
	defer dataset.Destroy()

	collector := NewIssueCollector(logger)
	opts := cfg.RuleOptions()
	opts.Logger = logger
	rule, err := gaps.NewNoGaps(dataset.Sources, dataset.AOISources, opts, collector)
	if err != nil {
		return nil, err
	}

	stats, err := RunTiles(ctx, rule, dataset.Features, cfg.Tiling.TileSize, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("gap check finished",
		"tiles", stats.Tiles,
		"gaps", len(collector.Issues),
		"inputErrors", len(inputErrors),
		"elapsed", time.Since(start))

	return &CheckResult{
		RunID:       runID,
		Stats:       stats,
		InputErrors: inputErrors,
		Issues:      collector,
	}, nil
}

func runResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case isConfigError(err):
		return "config_error"
	default:
		return "error"
	}
}

// isConfigError reports errors caused by the settings of a run rather than
// by the engine.
func isConfigError(err error) bool {
	for _, target := range []error{
		config.ErrInvalidConfig,
		ErrInvalidTileSize,
		ErrTooManyTiles,
		gaps.ErrNoPolygonSources,
		gaps.ErrNoSpatialReference,
		gaps.ErrSpatialReferenceMismatch,
		gaps.ErrInvalidSubdivision,
		gaps.ErrSubtileWidthTooSmall,
		gaps.ErrInvalidLimit,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// CheckGapsHandler serves POST /check-gaps. The body is either GeoJSON or a
// multipart upload with the input under "file" (GeoJSON or a zipped
// shapefile). Rule settings may be overridden by query or form values.
// format=zip answers with the GeoJSON and shapefile output in a zip.
func CheckGapsHandler(cfg config.Config, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		// the geometry engine may panic on pathological input
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered in check-gaps handler", "panic", rec)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()

		if r.Method != http.MethodPost {
			http.Error(w, "Invalid request method, only POST allowed", http.StatusMethodNotAllowed)
			return
		}

		req, values, err := readCheckRequest(r)
		if err != nil {
			http.Error(w, fmt.Sprintf("ERROR: %v", err), http.StatusBadRequest)
			return
		}

		runCfg, err := applyOverrides(cfg, values)
		if err != nil {
			http.Error(w, fmt.Sprintf("ERROR: %v", err), http.StatusBadRequest)
			return
		}

		result, err := CheckGaps(r.Context(), req, runCfg, logger)
		if err != nil {
			status := http.StatusInternalServerError
			if isConfigError(err) || errors.Is(err, errInvalidOverride) {
				status = http.StatusBadRequest
			}
			http.Error(w, fmt.Sprintf("ERROR: gap check failed: %v", err), status)
			return
		}

		w.Header().Set("X-Run-Id", result.RunID)
		w.Header().Set("X-Gap-Count", strconv.Itoa(len(result.Issues.Issues)))

		if values("format") == "zip" {
			zipData, err := result.Issues.Zip()
			if err != nil {
				http.Error(w, fmt.Sprintf("ERROR: %v", err), http.StatusInternalServerError)
				return
			}
			sendZipResponse(w, zipData)
			return
		}

		fc, err := result.Issues.FeatureCollection()
		if err != nil {
			http.Error(w, fmt.Sprintf("ERROR: %v", err), http.StatusInternalServerError)
			return
		}
		sendResponse(w, fc)
	}
}

// readCheckRequest parses the request body and returns a lookup for the
// query and form values.
func readCheckRequest(r *http.Request) (Request, func(string) string, error) {
	query := r.URL.Query()
	values := query.Get

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		form, err := utils.ReadMultiPartForm(r, "file")
		if err != nil {
			return Request{}, values, err
		}
		values = func(key string) string {
			if v, ok := form.Values[key]; ok {
				return v
			}
			return query.Get(key)
		}
		if form.File == nil {
			return Request{}, values, fmt.Errorf("no file uploaded")
		}
		if strings.HasSuffix(strings.ToLower(form.FileName), ".zip") {
			polygons, err := readShapefileZip(form.File)
			return Request{Polygons: polygons}, values, err
		}
		req, err := ParseGeoJSONRequest(form.File)
		return req, values, err
	}

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return Request{}, values, fmt.Errorf("error reading request body: %w", err)
	}
	if len(body) == 0 {
		return Request{}, values, fmt.Errorf("empty request body")
	}
	req, err := ParseGeoJSONRequest(body)
	return req, values, err
}

var errInvalidOverride = errors.New("invalid setting")

// applyOverrides returns cfg with the rule and tiling settings found in
// values.
func applyOverrides(cfg config.Config, values func(string) string) (config.Config, error) {
	floats := map[string]*float64{
		"sliverLimit":  &cfg.Rule.SliverLimit,
		"maxArea":      &cfg.Rule.MaxArea,
		"subtileWidth": &cfg.Rule.SubtileWidth,
		"tileSize":     &cfg.Tiling.TileSize,
	}
	for key, target := range floats {
		if v := values(key); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return cfg, fmt.Errorf("%w %s=%q", errInvalidOverride, key, v)
			}
			*target = parsed
		}
	}

	if v := values("subdivisionCount"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%w subdivisionCount=%q", errInvalidOverride, v)
		}
		cfg.Rule.SubdivisionCount = parsed
	}

	bools := map[string]*bool{
		"findGapsBelowTolerance": &cfg.Rule.FindGapsBelowTolerance,
		"excludeRunBoundaryGaps": &cfg.Rule.ExcludeRunBoundaryGaps,
	}
	for key, target := range bools {
		if v := values(key); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return cfg, fmt.Errorf("%w %s=%q", errInvalidOverride, key, v)
			}
			*target = parsed
		}
	}
	return cfg, nil
}

func sendResponse(w http.ResponseWriter, response []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(response)
}

func sendZipResponse(w http.ResponseWriter, zipData []byte) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+IssueLayerName+".zip\"")
	w.WriteHeader(http.StatusOK)
	w.Write(zipData)
}
