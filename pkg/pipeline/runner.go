package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Runner executes generation jobs on worker goroutines. Submit never blocks
// the caller; failures are converted into status lines instead of
// propagating, since by the time a job fails the submitting frame has long
// returned.
type Runner struct {
	status *StatusLog
	wg     sync.WaitGroup
}

// NewRunner creates a runner reporting into the given status log.
func NewRunner(status *StatusLog) *Runner {
	return &Runner{status: status}
}

// Submit runs job on its own goroutine. The job receives the token it was
// submitted with and is expected to poll it at phase boundaries, write its
// result to a mailbox itself on success, and return:
//
//   - nil on success or when it noticed cancellation and unwound,
//   - context.Canceled (or any error wrapping it) when a blocking call was
//     interrupted by cancellation,
//   - any other error on genuine failure.
//
// Cancellation is a normal, silent outcome: it produces no status line.
// Genuine failures (including panics, which a worker must not take the
// process down with) are logged with the job's name and short ID.
func (r *Runner) Submit(name string, tok *Token, job func(tok *Token) error) {
	id := uuid.NewString()[:8]

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.status.Appendf("%s [%s] panicked: %v", name, id, rec)
			}
		}()

		err := job(tok)
		if err == nil {
			return
		}
		if tok.Cancelled() || errors.Is(err, context.Canceled) {
			return
		}
		r.status.Appendf("%s [%s] failed: %v", name, id, err)
	}()
}

// Wait blocks until every submitted job has returned. Used on shutdown and
// in tests; the presentation loop itself never waits on background work.
func (r *Runner) Wait() {
	r.wg.Wait()
}
