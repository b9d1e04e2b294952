// Package slicer rasterizes 2D cross-sections out of volumetric data
// sources for display. It generalizes slice extraction over any Source
// (in-memory or streamed volumes) and supports material filtering against
// per-voxel labels.
package slicer

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"scanview/internal/models"
)

// Source is a readable volumetric dataset. Implementations must tolerate
// concurrent readers only if they are immutable; the rasterizer itself never
// writes through a Source.
type Source interface {
	// Serial returns the dataset identity used for change detection.
	Serial() uint64

	// Dims returns the volume dimensions in voxels.
	Dims() (width, height, depth int)

	// At returns the intensity at the given voxel coordinates.
	At(x, y, z int) float64

	// LabelAt returns the material label at the given voxel coordinates,
	// 0 when unlabelled or when the dataset carries no labels.
	LabelAt(x, y, z int) uint8
}

// Filter restricts which voxels contribute pixels to a rasterized slice.
type Filter struct {
	// Materials is a bitmask of selected material labels: bit n selects
	// label n+1. Zero selects all materials.
	Materials uint64

	// LabelledOnly hides voxels whose label is 0 even when Materials is
	// zero.
	LabelledOnly bool
}

// selects reports whether a voxel with the given label passes the filter.
func (f Filter) selects(label uint8) bool {
	if f.LabelledOnly && label == 0 {
		return false
	}
	if f.Materials == 0 {
		return true
	}
	if label == 0 {
		return false
	}
	return f.Materials&(1<<(label-1)) != 0
}

// Raster is one rasterized cross-section. Filtered-out voxels hold NaN in
// Pixels; Min and Max cover only the visible values. A Raster is immutable
// once returned and safe to hand across goroutines.
type Raster struct {
	Pixels []float64
	Width  int
	Height int
	Min    float64
	Max    float64
}

// Bounds returns display bounds for the raster's visible values. q of 0
// returns the raw Min/Max; 0 < q < 0.5 returns the [q, 1-q] quantile
// interval, which keeps a few extreme voxels from flattening the color
// scale.
func (r *Raster) Bounds(q float64) (lo, hi float64) {
	if q <= 0 || q >= 0.5 {
		return r.Min, r.Max
	}

	visible := make([]float64, 0, len(r.Pixels))
	for _, v := range r.Pixels {
		if !math.IsNaN(v) {
			visible = append(visible, v)
		}
	}
	if len(visible) == 0 {
		return r.Min, r.Max
	}

	sort.Float64s(visible)
	lo = stat.Quantile(q, stat.Empirical, visible, nil)
	hi = stat.Quantile(1-q, stat.Empirical, visible, nil)
	return lo, hi
}

// Viewer extracts display slices from a single data source. A Viewer is
// cheap to construct; it holds no resources beyond the source reference.
type Viewer struct {
	src Source
}

// NewViewer creates a viewer over the given data source.
func NewViewer(src Source) *Viewer {
	return &Viewer{src: src}
}

// Serial returns the identity of the viewer's data source, or 0 once the
// viewer is closed.
func (v *Viewer) Serial() uint64 {
	if v.src == nil {
		return 0
	}
	return v.src.Serial()
}

// Close detaches the viewer from its source. Rasterize fails afterwards.
// Close does not release the source itself; datasets have their own
// disposal and are unloaded after the viewer in a bundle swap.
func (v *Viewer) Close() {
	v.src = nil
}

// Rasterize extracts the slice at the given index across the given axis.
//
// The second return value is false when the filter hides every voxel of the
// slice; that is a legitimate "nothing to display" outcome, not an error.
// Errors are reserved for out-of-range indexes, invalid axes, and closed
// viewers.
func (v *Viewer) Rasterize(axis models.Axis, index int, f Filter) (*Raster, bool, error) {
	if v.src == nil {
		return nil, false, fmt.Errorf("viewer is closed")
	}
	if index < 0 {
		return nil, false, fmt.Errorf("slice index must be non-negative")
	}

	width, height, depth := v.src.Dims()

	var w, h int
	var at func(i, j int) (float64, uint8)

	switch axis {
	case models.AxisX:
		// Slice along the YZ plane
		if index >= width {
			return nil, false, fmt.Errorf("index %d exceeds width %d", index, width)
		}
		w, h = depth, height
		at = func(i, j int) (float64, uint8) {
			return v.src.At(index, j, i), v.src.LabelAt(index, j, i)
		}

	case models.AxisY:
		// Slice along the XZ plane
		if index >= height {
			return nil, false, fmt.Errorf("index %d exceeds height %d", index, height)
		}
		w, h = width, depth
		at = func(i, j int) (float64, uint8) {
			return v.src.At(i, index, j), v.src.LabelAt(i, index, j)
		}

	case models.AxisZ:
		// Slice along the XY plane
		if index >= depth {
			return nil, false, fmt.Errorf("index %d exceeds depth %d", index, depth)
		}
		w, h = width, height
		at = func(i, j int) (float64, uint8) {
			return v.src.At(i, j, index), v.src.LabelAt(i, j, index)
		}

	default:
		return nil, false, fmt.Errorf("invalid axis %d", axis)
	}

	pixels := make([]float64, w*h)
	visible := make([]float64, 0, w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			value, label := at(i, j)
			if f.selects(label) {
				pixels[j*w+i] = value
				visible = append(visible, value)
			} else {
				pixels[j*w+i] = math.NaN()
			}
		}
	}

	if len(visible) == 0 {
		return nil, false, nil
	}

	return &Raster{
		Pixels: pixels,
		Width:  w,
		Height: h,
		Min:    floats.Min(visible),
		Max:    floats.Max(visible),
	}, true, nil
}
