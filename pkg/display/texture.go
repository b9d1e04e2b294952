// Package display holds the presentation-loop consumers: panels that
// request background generation, drain the pipeline mailbox once per frame,
// and swap results into live display state. The rendering layer itself is
// an external collaborator reached through the Texture abstraction.
package display

import (
	"fmt"
)

// Texture is a display resource created from slice pixels. The panel only
// needs to create, validity-check and dispose textures; everything else
// about them belongs to the renderer.
type Texture interface {
	// Valid reports whether the texture is still usable (not disposed).
	Valid() bool

	// Dispose releases the texture. Idempotent.
	Dispose()
}

// TextureFactory creates textures from raw slice pixels. Implemented by the
// rendering layer; MemoryTextureFactory serves headless runs and tests.
type TextureFactory interface {
	CreateFromPixels(pixels []float64, width, height int) (Texture, error)
}

// MemoryTexture keeps the pixel buffer in memory. It stands in for a real
// GPU texture in headless mode.
type MemoryTexture struct {
	Pixels []float64
	Width  int
	Height int

	disposed bool
}

// Valid implements Texture.
func (t *MemoryTexture) Valid() bool {
	return !t.disposed
}

// Dispose implements Texture.
func (t *MemoryTexture) Dispose() {
	t.disposed = true
	t.Pixels = nil
}

// MemoryTextureFactory creates MemoryTextures. The zero value is usable.
type MemoryTextureFactory struct {
	// Created counts successful creations, for tests and the demo's
	// end-of-run report.
	Created int
}

// CreateFromPixels implements TextureFactory. It rejects dimension
// mismatches so a torn artifact (buffer and dimensions from different
// results) can never become live state.
func (f *MemoryTextureFactory) CreateFromPixels(pixels []float64, width, height int) (Texture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid texture dimensions %dx%d", width, height)
	}
	if len(pixels) != width*height {
		return nil, fmt.Errorf("pixel buffer holds %d values, dimensions say %d", len(pixels), width*height)
	}
	f.Created++
	return &MemoryTexture{Pixels: pixels, Width: width, Height: height}, nil
}
