package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"scanview/internal/models"
	"scanview/pkg/config"
	"scanview/pkg/convert"
	"scanview/pkg/display"
	"scanview/pkg/pipeline"
	"scanview/pkg/slicer"
	"scanview/pkg/volume"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "scanview.yaml", "Path to YAML configuration file")
	patternName := flag.String("pattern", "", "Synthetic pattern (densityRamp, solidSphere, shells, noise); overrides config")
	size := flag.Int("size", 0, "Volume edge length in voxels; overrides config")
	frames := flag.Int("frames", 120, "Number of presentation frames to run")
	axisName := flag.String("axis", "z", "Slice axis (x, y or z)")
	withLabels := flag.Bool("labels", true, "Generate label data for the debug bundle")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *patternName != "" {
		cfg.Volume.Pattern = *patternName
	}
	if *size > 0 {
		cfg.Volume.Size = *size
	}

	pattern, err := volume.ParsePattern(cfg.Volume.Pattern)
	if err != nil {
		log.Fatalf("Invalid pattern: %v", err)
	}

	var axis models.Axis
	switch *axisName {
	case "x", "X":
		axis = models.AxisX
	case "y", "Y":
		axis = models.AxisY
	case "z", "Z":
		axis = models.AxisZ
	default:
		log.Fatalf("Invalid axis %q (must be x, y, or z)", *axisName)
	}

	fmt.Println("================================")
	fmt.Println("SCANVIEW - VOLUMETRIC SCAN VISUALIZATION PIPELINE")
	fmt.Println("================================")
	fmt.Printf("Pattern: %s, volume: %d^3, frames: %d\n", pattern, cfg.Volume.Size, *frames)

	// Synthesize the base dataset the live slice panel sections through
	fmt.Println("Synthesizing base volume...")
	base := models.NewVolume(cfg.Volume.Size, cfg.Volume.Size, cfg.Volume.Size, *withLabels)
	if err := volume.GenerateParallel(pattern, cfg.Volume.Size, cfg.Volume.Workers,
		base.Data, base.Labels, nil); err != nil {
		log.Fatalf("Volume synthesis failed: %v", err)
	}

	// Wire the pipeline: status sink, job runner, texture factory, panels
	status := pipeline.NewStatusLog(cfg.Display.StatusLines)
	runner := pipeline.NewRunner(status)
	textures := &display.MemoryTextureFactory{}

	slicePanel := display.NewSlicePanel(textures, runner, status, cfg.Display.ColorQuantile)
	slicePanel.Show()

	converter := &convert.ChunkedConverter{ChunkDepth: cfg.Convert.ChunkDepth}
	debugPanel := display.NewDebugPanel(converter, runner, status)
	defer debugPanel.Close()

	// Run the presentation loop for a fixed number of frames, sweeping the
	// slice index through the volume so the debounce and cancellation
	// paths all get exercised.
	frameBudget := time.Duration(cfg.Display.FrameBudgetMillis) * time.Millisecond
	startTime := time.Now()

	for frame := 0; frame < *frames; frame++ {
		// Drain-and-swap before anything would draw
		slicePanel.Tick()
		debugPanel.Tick()

		// Kick off the debug bundle once, up front
		if frame == 0 {
			debugPanel.Generate(display.DebugRequest{
				Pattern:    pattern,
				Size:       cfg.Volume.Size,
				WithLabels: *withLabels,
				Workers:    cfg.Volume.Workers,
				OutputDir:  cfg.Convert.OutputDir,
			})
		}

		// Sweep the slice index; repeated indexes are debounced away
		index := (frame / 4) % cfg.Volume.Size
		slicePanel.RequestUpdate(display.SliceRequest{
			Source: base,
			Axis:   axis,
			Index:  index,
			Filter: slicer.Filter{},
		})

		time.Sleep(frameBudget)
	}

	// Let in-flight jobs finish and apply their results
	runner.Wait()
	slicePanel.Tick()
	debugPanel.Tick()

	fmt.Printf("\nRan %d frames in %.2f seconds\n", *frames, time.Since(startTime).Seconds())
	fmt.Printf("Textures created: %d\n", textures.Created)

	if minV, maxV, ok := slicePanel.Bounds(); ok {
		fmt.Printf("Final color-scale bounds: [%.4f, %.4f]\n", minV, maxV)
	} else {
		fmt.Println("No slice data displayed")
	}
	fmt.Printf("Debug panel state: %s\n", debugPanel.State())

	fmt.Println("\nStatus log:")
	for _, line := range status.Lines() {
		fmt.Printf("  %s\n", line)
	}
}
