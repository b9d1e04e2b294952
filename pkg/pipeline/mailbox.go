package pipeline

import (
	"sync"
)

// Mailbox is a single-slot hand-off point between background producers and
// the presentation-loop consumer. It holds zero or one pending artifact;
// a newer write overwrites an undrained one (latest wins, never a queue),
// and every write carries its request version so a slow job finishing after
// a newer job cannot clobber the newer result.
//
// Put is safe to call from any goroutine concurrently with Drain. Drain has
// a single consumer by contract (the presentation loop), though nothing
// breaks if that contract is violated — the lock covers both sides.
type Mailbox[T any] struct {
	mu      sync.Mutex
	value   T
	present bool

	// latest is the highest version ever accepted, drained or not. Writes
	// below it are stale and rejected.
	latest uint64

	// drops counts artifacts that were displaced or rejected before being
	// drained.
	drops uint64

	dispose func(T)
}

// NewMailbox creates a mailbox. dispose, when non-nil, is invoked exactly
// once on every artifact that is displaced by a newer write or rejected as
// stale — never on an artifact handed to the consumer, which owns disposal
// from then on.
func NewMailbox[T any](dispose func(T)) *Mailbox[T] {
	return &Mailbox[T]{dispose: dispose}
}

// Put offers an artifact produced for the given request version. It returns
// false when the write is stale (an artifact of equal or newer version was
// already accepted); the rejected artifact is disposed before returning.
// When the write wins and displaces an undrained artifact, that one is
// disposed instead.
//
// Version 0 opts out of the recency gate: such writes always win. Token
// versions start at 1, so 0 never collides with a real request version.
//
// Disposal runs outside the lock: it may be expensive and nothing it
// touches is mailbox state.
func (m *Mailbox[T]) Put(v T, version uint64) bool {
	var displaced T
	var hasDisplaced bool

	m.mu.Lock()
	if version != 0 && version <= m.latest {
		m.drops++
		m.mu.Unlock()
		if m.dispose != nil {
			m.dispose(v)
		}
		return false
	}
	if m.present {
		displaced = m.value
		hasDisplaced = true
		m.drops++
	}
	m.value = v
	m.present = true
	if version > m.latest {
		m.latest = version
	}
	m.mu.Unlock()

	if hasDisplaced && m.dispose != nil {
		m.dispose(displaced)
	}
	return true
}

// Drain returns and clears the pending artifact in one atomic step. The
// second result is false when the slot is empty. Ownership of the returned
// artifact transfers to the caller.
func (m *Mailbox[T]) Drain() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.present {
		var zero T
		return zero, false
	}
	v := m.value
	var zero T
	m.value = zero
	m.present = false
	return v, true
}

// Pending reports whether an undrained artifact is waiting.
func (m *Mailbox[T]) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.present
}

// Drops returns how many artifacts were displaced or rejected without ever
// reaching the consumer.
func (m *Mailbox[T]) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
