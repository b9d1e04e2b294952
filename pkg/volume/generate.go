// Package volume generates synthetic test volumes used by the debug panels.
// Each pattern is a pure function over caller-supplied buffers, so the same
// pattern can fill an intensity array, a label array, or both, without
// touching any shared state.
package volume

import (
	"fmt"
	"math"
)

// Pattern selects one of the synthetic test-volume generators.
type Pattern int

const (
	// DensityRamp fills the volume with intensity rising linearly along X.
	// Labels mark the denser half of the ramp (x beyond the midpoint).
	DensityRamp Pattern = iota

	// SolidSphere places a filled sphere of radius size/4 at the volume
	// center. Labels mark the interior.
	SolidSphere

	// Shells produces concentric spherical shells of alternating
	// intensity. Labels cycle through materials 1-4 on the bright shells.
	Shells

	// Noise produces a deterministic pseudo-random field. Labels mark
	// voxels above the midpoint intensity.
	Noise
)

// String returns the YAML/flag name of the pattern.
func (p Pattern) String() string {
	switch p {
	case DensityRamp:
		return "densityRamp"
	case SolidSphere:
		return "solidSphere"
	case Shells:
		return "shells"
	case Noise:
		return "noise"
	default:
		return "unknown"
	}
}

// ParsePattern converts a pattern name to its Pattern value.
func ParsePattern(name string) (Pattern, error) {
	switch name {
	case "densityRamp":
		return DensityRamp, nil
	case "solidSphere":
		return SolidSphere, nil
	case "shells":
		return Shells, nil
	case "noise":
		return Noise, nil
	default:
		return 0, fmt.Errorf("unknown pattern %q", name)
	}
}

// Generate fills dst and/or labels with the given pattern over a cubic
// size^3 volume. Either buffer may be nil to skip it (generating labels for
// an already-filled volume, for instance), but not both. Non-nil buffers
// must hold size^3 elements. Generate reads nothing but its arguments and
// writes nothing but the supplied buffers.
func Generate(p Pattern, size int, dst []float64, labels []uint8) error {
	fill, err := validate(p, size, dst, labels)
	if err != nil {
		return err
	}
	fill(size, 0, size, dst, labels)
	return nil
}

// validate shares the argument checks between Generate and
// GenerateParallel.
func validate(p Pattern, size int, dst []float64, labels []uint8) (slabFill, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid volume size %d", size)
	}
	if dst == nil && labels == nil {
		return nil, fmt.Errorf("no output buffer supplied")
	}
	want := size * size * size
	if dst != nil && len(dst) != want {
		return nil, fmt.Errorf("intensity buffer holds %d values, need %d", len(dst), want)
	}
	if labels != nil && len(labels) != want {
		return nil, fmt.Errorf("label buffer holds %d values, need %d", len(labels), want)
	}
	return fillFunc(p)
}

// slabFill fills the Z range [z0, z1) of a size^3 volume. dst or labels may
// be nil. Implementations write only indices inside their Z range, which is
// what makes disjoint slabs safe to fill from separate goroutines.
type slabFill func(size, z0, z1 int, dst []float64, labels []uint8)

func fillFunc(p Pattern) (slabFill, error) {
	switch p {
	case DensityRamp:
		return fillDensityRamp, nil
	case SolidSphere:
		return fillSolidSphere, nil
	case Shells:
		return fillShells, nil
	case Noise:
		return fillNoise, nil
	default:
		return nil, fmt.Errorf("unknown pattern %d", p)
	}
}

// fillDensityRamp assigns intensity x/(size-1), so a Z slice ranges from 0
// at the x=0 column to 1 at the x=size-1 column. Labels mark x > size/2.
func fillDensityRamp(size, z0, z1 int, dst []float64, labels []uint8) {
	for z := z0; z < z1; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				idx := z*size*size + y*size + x
				if dst != nil {
					dst[idx] = float64(x) / float64(size-1)
				}
				if labels != nil && x > size/2 {
					labels[idx] = 1
				}
			}
		}
	}
}

func fillSolidSphere(size, z0, z1 int, dst []float64, labels []uint8) {
	radius := float64(size) / 4.0
	center := float64(size) / 2.0

	for z := z0; z < z1; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx := float64(x) - center
				dy := float64(y) - center
				dz := float64(z) - center
				dist := math.Sqrt(dx*dx + dy*dy + dz*dz)

				if dist >= radius {
					continue
				}
				idx := z*size*size + y*size + x
				if dst != nil {
					dst[idx] = 1.0
				}
				if labels != nil {
					labels[idx] = 1
				}
			}
		}
	}
}

func fillShells(size, z0, z1 int, dst []float64, labels []uint8) {
	center := float64(size) / 2.0
	shellWidth := float64(size) / 16.0
	if shellWidth < 1 {
		shellWidth = 1
	}

	for z := z0; z < z1; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx := float64(x) - center
				dy := float64(y) - center
				dz := float64(z) - center
				dist := math.Sqrt(dx*dx + dy*dy + dz*dz)

				shell := int(dist / shellWidth)
				idx := z*size*size + y*size + x
				if shell%2 == 0 {
					if dst != nil {
						dst[idx] = 1.0
					}
					if labels != nil {
						labels[idx] = uint8(shell/2%4 + 1)
					}
				} else if dst != nil {
					dst[idx] = 0.25
				}
			}
		}
	}
}

// fillNoise hashes voxel coordinates into [0, 1). The hash is fixed, so the
// pattern is reproducible across runs and across slab boundaries.
func fillNoise(size, z0, z1 int, dst []float64, labels []uint8) {
	for z := z0; z < z1; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				h := uint64(x)*0x9E3779B97F4A7C15 ^ uint64(y)*0xC2B2AE3D27D4EB4F ^ uint64(z)*0x165667B19E3779F9
				h ^= h >> 29
				h *= 0xBF58476D1CE4E5B9
				h ^= h >> 32
				value := float64(h%10000) / 10000.0

				idx := z*size*size + y*size + x
				if dst != nil {
					dst[idx] = value
				}
				if labels != nil && value > 0.5 {
					labels[idx] = 1
				}
			}
		}
	}
}
