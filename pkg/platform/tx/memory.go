package tx

import (
	"context"
)

// InMemoryRunner serializes transactions globally and rolls back failed ones
// through the undo journal. Waiting for the running transaction honours the
// caller's deadline, so a call that re-enters from a fresh context while the
// lock is held fails with a timeout instead of hanging.
type InMemoryRunner struct {
	sem  chan struct{}
	opts options
}

// NewInMemory constructs an InMemoryRunner.
func NewInMemory(opts ...Option) *InMemoryRunner {
	return &InMemoryRunner{sem: make(chan struct{}, 1), opts: buildOptions(opts)}
}

func (r *InMemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}

	ctx, cancel := withDefaultDeadline(ctx, r.opts.timeout)
	defer cancel()

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return aborted(ctx.Err())
	}
	defer func() { <-r.sem }()

	if err := ctx.Err(); err != nil {
		return aborted(err)
	}

	j := &journal{}
	committed := false
	defer func() {
		if !committed {
			j.rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		return err
	}
	committed = true
	return nil
}
