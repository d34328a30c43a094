// Package cmd - mask command
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cloudmask/adapters/engine"
	"cloudmask/adapters/sceneconfig"
	"cloudmask/core/pipeline"
	"cloudmask/core/render"
	"cloudmask/internal/config"
	"cloudmask/internal/logging"
)

var (
	outputFile string
	zoom       int
)

// maskCmd represents the mask command
var maskCmd = &cobra.Command{
	Use:   "mask [scene file]",
	Short: "Compute a cloud/shadow mask and render it as a map",
	Long: `Build the mask pipeline for the scene described in an HCL scene file,
materialize every display layer against the image service and write an
interactive HTML map.

Examples:
  cloudmask mask scene.hcl
  cloudmask mask --output darmstadt.html scene.hcl`,
	Args: cobra.ExactArgs(1),
	RunE: runMask,
}

func init() {
	maskCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output HTML file (default from config)")
	maskCmd.Flags().IntVar(&zoom, "zoom", 0, "initial map zoom (default from config)")
}

func runMask(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()
	cfg := config.Get()

	run, err := sceneconfig.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading scene file: %w", err)
	}

	logging.Info("starting mask pipeline",
		zap.String("scene_file", args[0]),
		zap.Float64("cloud_filter", run.CloudFilter))

	session, err := engine.NewSession(ctx, engine.Config{
		Endpoint: cfg.Engine.Endpoint,
		Project:  cfg.Engine.Project,
		Token:    os.Getenv(cfg.Engine.TokenEnv),
		Timeout:  time.Duration(cfg.Engine.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connecting to image service: %w", err)
	}

	col := pipeline.Masked(
		pipeline.BuildCollection(run.AOI, run.Dates, run.CloudFilter),
		run.Thresholds,
	)

	mapZoom := cfg.Output.Zoom
	if zoom > 0 {
		mapZoom = zoom
	}
	m, err := render.BuildMap(ctx, session, run.AOI, col, mapZoom, cfg.Output.MinZoom)
	if err != nil {
		return fmt.Errorf("rendering map: %w", err)
	}

	path := cfg.Output.MapFile
	if outputFile != "" {
		path = outputFile
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer out.Close()

	if err := m.WriteHTML(out); err != nil {
		return err
	}

	fmt.Printf("Wrote %d layers to %s in %s\n", len(m.Layers), path, time.Since(start).Round(time.Millisecond))
	return nil
}
