package volume

import (
	"errors"
)

// ErrCancelled reports that a parallel fill stopped because the caller's
// cancellation check fired. Callers treat it as a silent outcome, not a
// failure.
var ErrCancelled = errors.New("volume generation cancelled")

// GenerateParallel fills buffers like Generate, but splits the volume into
// disjoint Z slabs filled by workers goroutines. Each slab is written only
// by its owning goroutine, so no locking is needed on the buffers. Passing
// a nil dst with a non-nil labels buffer is the parallel label-population
// path the debug factory uses after synthesizing intensities.
//
// cancelled, when non-nil, is polled before each slab starts; once it
// returns true the remaining slabs are skipped and GenerateParallel returns
// ErrCancelled. Already-filled slabs are left as-is, which is fine because
// the caller abandons the buffers on cancellation.
func GenerateParallel(p Pattern, size, workers int, dst []float64, labels []uint8, cancelled func() bool) error {
	fill, err := validate(p, size, dst, labels)
	if err != nil {
		return err
	}
	if workers < 1 {
		workers = 1
	}
	if workers > size {
		workers = size
	}

	// Ceiling division so every Z index lands in exactly one slab.
	slabDepth := (size + workers - 1) / workers

	resultChan := make(chan error)

	launched := 0
	for w := 0; w < workers; w++ {
		z0 := w * slabDepth
		z1 := z0 + slabDepth
		if z1 > size {
			z1 = size
		}
		if z0 >= z1 {
			continue
		}
		launched++

		go func(z0, z1 int) {
			if cancelled != nil && cancelled() {
				resultChan <- ErrCancelled
				return
			}
			fill(size, z0, z1, dst, labels)
			resultChan <- nil
		}(z0, z1)
	}

	// Collect all results before returning so no goroutine is left writing
	// into buffers the caller may reuse.
	var firstErr error
	for completed := 0; completed < launched; completed++ {
		if err := <-resultChan; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
