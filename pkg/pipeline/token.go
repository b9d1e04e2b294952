// Package pipeline implements the hand-off machinery between background
// generation jobs and the single-threaded presentation loop: cancellation
// tokens, input change detection, a single-slot mailbox, a job runner, and
// the status log the runner reports into.
//
// The ownership discipline is uniform across artifact kinds: a producer owns
// what it builds until the mailbox accepts it, the mailbox owns an undrained
// slot, and the consumer owns whatever it drains. Anything displaced along
// the way is disposed exactly once, by whoever displaced it.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
)

// Token is the revocable handle for one generation request. Workers poll
// Cancelled at phase boundaries; it is an atomic load, cheap enough for
// per-slab or per-chunk checks. Blocking collaborators that speak context
// (the conversion routine) use Context instead, which is cancelled together
// with the token.
type Token struct {
	cancelled atomic.Bool
	version   uint64
	ctx       context.Context
	cancel    context.CancelFunc
}

// Cancelled reports whether this token has been revoked.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

// Cancel revokes the token. Safe to call multiple times and from any
// goroutine.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
	t.cancel()
}

// Context returns a context that is cancelled when the token is. Use it for
// blocking calls into external collaborators; use Cancelled for polling
// checkpoints.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Version is the monotonic request version this token was issued for.
// Mailbox writes carry it so a superseded job's late result can be
// recognized and rejected.
func (t *Token) Version() uint64 {
	return t.version
}

// TokenSource issues tokens for one logical artifact stream. Issuing a new
// token revokes the previous one, which is what keeps at most one job
// meaningfully in flight per stream: an older job may still be running, but
// it is cancelled and its result can no longer win.
type TokenSource struct {
	mu      sync.Mutex
	current *Token
	next    uint64
}

// Next revokes the current token (if any) and returns a fresh one with the
// next request version. Versions start at 1.
func (s *TokenSource) Next() *Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Cancel()
	}

	s.next++
	ctx, cancel := context.WithCancel(context.Background())
	s.current = &Token{
		version: s.next,
		ctx:     ctx,
		cancel:  cancel,
	}
	return s.current
}

// CancelCurrent revokes the current token without issuing a new one. Used
// when the panel is hidden or torn down.
func (s *TokenSource) CancelCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.Cancel()
		s.current = nil
	}
}
