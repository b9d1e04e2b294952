package pipeline

// Detector suppresses redundant generation work by comparing a comparable
// fingerprint of the new inputs against the fingerprint of the last
// generation that was started. Equal fingerprint means skip; a differing
// one is stored immediately so a burst of identical triggers while the job
// is still running enqueues nothing further.
//
// A Detector is confined to the UI thread: ShouldRegenerate is called
// before submitting work and never from a worker goroutine, so it needs no
// locking.
//
// Fingerprints compare by value. When inputs include a large buffer, the
// fingerprint should carry the buffer's identity (its dataset serial), not
// its content; that makes the comparison cheap but means an in-place
// mutation of the same buffer goes undetected. Force exists to punch
// through that case.
type Detector[F comparable] struct {
	last  F
	valid bool
	force bool
}

// ShouldRegenerate reports whether next differs from the fingerprint of the
// last started generation, storing next when it does. The first call always
// reports true.
func (d *Detector[F]) ShouldRegenerate(next F) bool {
	if d.valid && !d.force && next == d.last {
		return false
	}
	d.last = next
	d.valid = true
	d.force = false
	return true
}

// Force makes the next ShouldRegenerate call report true regardless of the
// fingerprint. Used when the panel becomes visible again or when the caller
// knows a dataset was mutated in place behind an unchanged serial.
func (d *Detector[F]) Force() {
	d.force = true
}

// Reset forgets the stored fingerprint entirely.
func (d *Detector[F]) Reset() {
	var zero F
	d.last = zero
	d.valid = false
	d.force = false
}
