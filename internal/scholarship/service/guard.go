package service

import (
	"context"

	dErrors "meritledger/pkg/domain-errors"
)

type guardKey struct{}

// enterGuard marks ctx as inside a fund-transferring operation. The mark
// travels with every context derived from it, including the one handed to the
// vault, so a call back into Claim or Close from a transfer is rejected. The
// mark disappears with the call that placed it.
//
// Only re-entry through a derived context is recognised as reentrant_call. A
// callback that starts over from a fresh context cannot be told apart from an
// unrelated caller; it waits for the transaction the outer call holds and
// fails with timeout once its own deadline passes, which fails the transfer
// and rolls the outer call back.
func enterGuard(ctx context.Context, op string) (context.Context, error) {
	if held, ok := ctx.Value(guardKey{}).(string); ok {
		return ctx, dErrors.New(dErrors.CodeReentrant, op+" called while "+held+" is transferring funds")
	}
	return context.WithValue(ctx, guardKey{}, op), nil
}
