package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tj/go-spin"

	"github.com/bsaid97/go-nogaps/handlers"
)

var (
	aoiPath     string
	outputPath  string
	tileSize    float64
	maxArea     float64
	sliverLimit float64

	checkCmd = &cobra.Command{
		Use:   "check [input]",
		Short: "Checks a GeoJSON file or shapefile for gaps",
		Long: `Checks the polygons of a GeoJSON file, a shapefile or a zipped shapefile.
The gaps are written as GeoJSON, or as GeoJSON and shapefile when the output ends in .zip.`,
		Args: cobra.ExactArgs(1),
		RunE: runCheck,
	}
)

func init() {
	checkCmd.Flags().StringVar(&aoiPath, "aoi", "", "polygons limiting the checked area")
	checkCmd.Flags().StringVarP(&outputPath, "out", "o", "", "output file, stdout when empty")
	checkCmd.Flags().Float64Var(&tileSize, "tile-size", 0, "tile edge length, overrides the configuration")
	checkCmd.Flags().Float64Var(&maxArea, "max-area", 0, "largest reported gap area, overrides the configuration")
	checkCmd.Flags().Float64Var(&sliverLimit, "sliver-limit", 0, "report only gaps with a larger perimeter²/area ratio")
}

func runCheck(cmd *cobra.Command, args []string) error {
	runCfg := cfg
	if cmd.Flags().Changed("tile-size") {
		runCfg.Tiling.TileSize = tileSize
	}
	if cmd.Flags().Changed("max-area") {
		runCfg.Rule.MaxArea = maxArea
	}
	if cmd.Flags().Changed("sliver-limit") {
		runCfg.Rule.SliverLimit = sliverLimit
	}

	polygons, err := handlers.ReadInputFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	req := handlers.Request{Polygons: polygons}
	if aoiPath != "" {
		if req.AreaOfInterest, err = handlers.ReadInputFile(aoiPath); err != nil {
			return fmt.Errorf("failed to read %s: %w", aoiPath, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	stopSpinner := startSpinner(fmt.Sprintf("checking %d polygons", len(polygons)))
	result, err := handlers.CheckGaps(ctx, req, runCfg, nil)
	stopSpinner()
	if err != nil {
		return err
	}

	for _, inputErr := range result.InputErrors {
		fmt.Fprintf(os.Stderr, "feature %d: %s\n", inputErr.Ref, inputErr.ErrorMessage)
	}

	var output []byte
	if strings.EqualFold(filepath.Ext(outputPath), ".zip") {
		output, err = result.Issues.Zip()
	} else {
		output, err = result.Issues.FeatureCollection()
	}
	if err != nil {
		return err
	}

	if outputPath == "" {
		_, err = os.Stdout.Write(output)
		return err
	}
	if err := os.WriteFile(outputPath, output, 0644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d gaps in %d tiles written to %s\n", len(result.Issues.Issues), result.Stats.Tiles, outputPath)
	return nil
}

// startSpinner animates a spinner on stderr until the returned function is
// called.
func startSpinner(message string) func() {
	s := spin.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				fmt.Fprint(os.Stderr, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprintf(os.Stderr, "\r%s %s", s.Next(), message)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
