package models

import (
	"sync/atomic"
)

// Axis identifies the anatomical axis a slice is taken across.
type Axis int

const (
	// AxisX extracts slices on the YZ plane.
	AxisX Axis = iota

	// AxisY extracts slices on the XZ plane.
	AxisY

	// AxisZ extracts slices on the XY plane.
	AxisZ
)

// String returns the lowercase axis letter, or "?" for an invalid axis.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "?"
	}
}

// serialCounter hands out volume serial numbers. Serials identify a dataset
// by allocation, not by content: two volumes with identical voxels still get
// distinct serials, and mutating a volume in place does not change its
// serial. Change detection built on serials inherits that limitation.
var serialCounter atomic.Uint64

// NewSerial hands out a process-unique dataset serial. Datasets constructed
// outside this package (streamed volumes) draw from the same counter so
// serials never collide across dataset kinds.
func NewSerial() uint64 {
	return serialCounter.Add(1)
}

// Volume is a 3D intensity volume reconstructed or synthesized for display.
type Volume struct {
	// Data is the volume intensity data as a 1D array in row-major order
	// (x fastest, then y, then z).
	Data []float64

	// Labels holds optional per-voxel material labels, same indexing as
	// Data. Nil when the volume carries no label information. Label 0
	// means unlabelled.
	Labels []uint8

	// Width, Height and Depth are the volume dimensions in voxels.
	Width, Height, Depth int

	// VoxelSize is the physical size of each voxel in mm.
	VoxelSize struct {
		X, Y, Z float64
	}

	// serial is the identity of this dataset, assigned at construction.
	serial uint64
}

// NewVolume allocates a volume of the given dimensions and assigns it a
// fresh serial number. When withLabels is true a zeroed label array is
// allocated alongside the intensity data.
func NewVolume(width, height, depth int, withLabels bool) *Volume {
	v := &Volume{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
		serial: NewSerial(),
	}
	if withLabels {
		v.Labels = make([]uint8, width*height*depth)
	}
	v.VoxelSize.X = 1.0
	v.VoxelSize.Y = 1.0
	v.VoxelSize.Z = 1.0
	return v
}

// Serial returns the dataset identity assigned at construction.
func (v *Volume) Serial() uint64 {
	return v.serial
}

// Dims returns the volume dimensions in voxels.
func (v *Volume) Dims() (width, height, depth int) {
	return v.Width, v.Height, v.Depth
}

// Index converts voxel coordinates to a flat Data index.
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the intensity at the given voxel coordinates.
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// LabelAt returns the material label at the given voxel coordinates, or 0
// when the volume carries no labels.
func (v *Volume) LabelAt(x, y, z int) uint8 {
	if v.Labels == nil {
		return 0
	}
	return v.Labels[v.Index(x, y, z)]
}

// Unload releases the volume's backing arrays. The volume must not be read
// afterwards. Unload is idempotent and never fails; it exists so editable
// datasets satisfy the same disposal contract as streamed ones.
func (v *Volume) Unload() error {
	v.Data = nil
	v.Labels = nil
	return nil
}
