package slicer

import (
	"math"
	"testing"

	"scanview/internal/models"
	"scanview/pkg/volume"
)

func makeRamp(t *testing.T, size int, withLabels bool) *models.Volume {
	t.Helper()
	vol := models.NewVolume(size, size, size, withLabels)
	if err := volume.Generate(volume.DensityRamp, size, vol.Data, vol.Labels); err != nil {
		t.Fatalf("Failed to generate test volume: %v", err)
	}
	return vol
}

// TestRasterizeAxes verifies slice dimensions and values for each axis.
func TestRasterizeAxes(t *testing.T) {
	width, height, depth := 10, 10, 5
	vol := models.NewVolume(width, height, depth, false)

	// Each Z slice gets a unique constant value
	for z := 0; z < depth; z++ {
		value := float64(z) / float64(depth)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				vol.Data[vol.Index(x, y, z)] = value
			}
		}
	}

	viewer := NewViewer(vol)

	// Z slices carry their constant value
	for z := 0; z < depth; z++ {
		raster, ok, err := viewer.Rasterize(models.AxisZ, z, Filter{})
		if err != nil {
			t.Fatalf("Failed to rasterize Z slice %d: %v", z, err)
		}
		if !ok {
			t.Fatalf("Z slice %d unexpectedly empty", z)
		}
		if raster.Width != width || raster.Height != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d",
				width, height, raster.Width, raster.Height)
		}

		want := float64(z) / float64(depth)
		if raster.Min != want || raster.Max != want {
			t.Errorf("Z slice %d: expected constant %f, got min %f max %f",
				z, want, raster.Min, raster.Max)
		}
	}

	// X slice spans depth x height
	rasterX, ok, err := viewer.Rasterize(models.AxisX, width/2, Filter{})
	if err != nil || !ok {
		t.Fatalf("Failed to rasterize X slice: %v", err)
	}
	if rasterX.Width != depth || rasterX.Height != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d",
			depth, height, rasterX.Width, rasterX.Height)
	}

	// Y slice spans width x depth
	rasterY, ok, err := viewer.Rasterize(models.AxisY, height/2, Filter{})
	if err != nil || !ok {
		t.Fatalf("Failed to rasterize Y slice: %v", err)
	}
	if rasterY.Width != width || rasterY.Height != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d",
			width, depth, rasterY.Width, rasterY.Height)
	}
}

func TestRasterizeBoundsOnRamp(t *testing.T) {
	vol := makeRamp(t, 16, false)
	viewer := NewViewer(vol)

	raster, ok, err := viewer.Rasterize(models.AxisZ, 5, Filter{})
	if err != nil || !ok {
		t.Fatalf("Rasterize failed: %v", err)
	}

	if raster.Min != 0.0 {
		t.Errorf("Expected min 0 at the x=0 column, got %f", raster.Min)
	}
	if raster.Max != 1.0 {
		t.Errorf("Expected max 1 at the x=15 column, got %f", raster.Max)
	}
}

func TestRasterizeLabelFilter(t *testing.T) {
	vol := makeRamp(t, 16, true)
	viewer := NewViewer(vol)

	raster, ok, err := viewer.Rasterize(models.AxisZ, 3, Filter{LabelledOnly: true})
	if err != nil {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if !ok {
		t.Fatal("Labelled ramp slice unexpectedly empty")
	}

	// Ramp labels mark x > 8, so the smallest visible value is 9/15
	want := 9.0 / 15.0
	if math.Abs(raster.Min-want) > 1e-9 {
		t.Errorf("Expected min %f over labelled voxels, got %f", want, raster.Min)
	}

	// Unlabelled columns must be NaN in the pixel buffer
	if !math.IsNaN(raster.Pixels[0]) {
		t.Errorf("Expected NaN at filtered-out pixel, got %f", raster.Pixels[0])
	}
}

func TestRasterizeMaterialMask(t *testing.T) {
	size := 8
	vol := models.NewVolume(size, size, size, true)
	for i := range vol.Data {
		vol.Data[i] = float64(i%4) + 1
		vol.Labels[i] = uint8(i%4) + 1 // materials 1..4
	}
	viewer := NewViewer(vol)

	// Select only material 3 (bit 2)
	raster, ok, err := viewer.Rasterize(models.AxisZ, 0, Filter{Materials: 1 << 2})
	if err != nil || !ok {
		t.Fatalf("Rasterize failed: %v", err)
	}
	if raster.Min != 3 || raster.Max != 3 {
		t.Errorf("Expected only material 3 values, got min %f max %f", raster.Min, raster.Max)
	}
}

func TestRasterizeEmptyResult(t *testing.T) {
	vol := makeRamp(t, 8, false) // no labels
	viewer := NewViewer(vol)

	raster, ok, err := viewer.Rasterize(models.AxisZ, 0, Filter{LabelledOnly: true})
	if err != nil {
		t.Fatalf("Empty result must not be an error, got %v", err)
	}
	if ok || raster != nil {
		t.Error("Expected absent result when everything is filtered out")
	}
}

func TestRasterizeErrors(t *testing.T) {
	vol := makeRamp(t, 8, false)
	viewer := NewViewer(vol)

	if _, _, err := viewer.Rasterize(models.AxisZ, -1, Filter{}); err == nil {
		t.Error("Expected error for negative index")
	}
	if _, _, err := viewer.Rasterize(models.AxisZ, 8, Filter{}); err == nil {
		t.Error("Expected error for out-of-range index")
	}
	if _, _, err := viewer.Rasterize(models.Axis(9), 0, Filter{}); err == nil {
		t.Error("Expected error for invalid axis")
	}

	viewer.Close()
	if _, _, err := viewer.Rasterize(models.AxisZ, 0, Filter{}); err == nil {
		t.Error("Expected error after Close")
	}
	if viewer.Serial() != 0 {
		t.Error("Expected zero serial after Close")
	}
}

func TestBoundsQuantile(t *testing.T) {
	// 100 pixels: one extreme outlier at each end
	pixels := make([]float64, 100)
	for i := range pixels {
		pixels[i] = 0.5
	}
	pixels[0] = -1000
	pixels[99] = 1000

	raster := &Raster{Pixels: pixels, Width: 10, Height: 10, Min: -1000, Max: 1000}

	lo, hi := raster.Bounds(0)
	if lo != -1000 || hi != 1000 {
		t.Errorf("Quantile 0 must return raw min/max, got [%f, %f]", lo, hi)
	}

	lo, hi = raster.Bounds(0.05)
	if lo != 0.5 || hi != 0.5 {
		t.Errorf("Expected outliers clipped at the 5%% quantile, got [%f, %f]", lo, hi)
	}
}
