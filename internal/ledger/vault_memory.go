package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"meritledger/pkg/domain"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/requestcontext"
)

// InMemoryVault keeps balances in a map. Each mutation records an undo closure
// on the surrounding transaction.
type InMemoryVault struct {
	mu       sync.Mutex
	balances map[Account]domain.Amount
	entries  []Entry
	hook     TransferHook
}

type MemoryOption func(*InMemoryVault)

// WithTransferHook installs a hook that runs inside every Transfer.
func WithTransferHook(hook TransferHook) MemoryOption {
	return func(v *InMemoryVault) {
		v.hook = hook
	}
}

func NewInMemoryVault(opts ...MemoryOption) *InMemoryVault {
	v := &InMemoryVault{balances: make(map[Account]domain.Amount)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *InMemoryVault) Balance(_ context.Context, account Account) (domain.Amount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[account], nil
}

// Credit mints amount into account. Used for seeding balances.
func (v *InMemoryVault) Credit(ctx context.Context, account Account, amount domain.Amount, memo string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	prev := v.balances[account]
	next, ok := prev.CheckedAdd(amount)
	if !ok {
		return fmt.Errorf("credit %s: balance overflow", account)
	}
	v.balances[account] = next
	v.appendEntry(ctx, Entry{To: account, Amount: amount, Memo: memo, CreatedAt: requestcontext.Now(ctx)})
	tx.RecordUndo(ctx, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.balances[account] = prev
	})
	return nil
}

func (v *InMemoryVault) Transfer(ctx context.Context, from, to Account, amount domain.Amount, memo string) error {
	if from == to {
		return errors.New("transfer source and destination are the same account")
	}
	entry := Entry{From: from, To: to, Amount: amount, Memo: memo, CreatedAt: requestcontext.Now(ctx)}

	v.mu.Lock()
	fromPrev, toPrev := v.balances[from], v.balances[to]
	fromNext, ok := fromPrev.CheckedSub(amount)
	if !ok {
		v.mu.Unlock()
		return insufficient(from, fromPrev, amount)
	}
	toNext, ok := toPrev.CheckedAdd(amount)
	if !ok {
		v.mu.Unlock()
		return fmt.Errorf("transfer to %s: balance overflow", to)
	}
	v.balances[from] = fromNext
	v.balances[to] = toNext
	v.appendEntry(ctx, entry)
	tx.RecordUndo(ctx, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.balances[from] = fromPrev
		v.balances[to] = toPrev
	})
	hook := v.hook
	v.mu.Unlock()

	if hook != nil {
		return hook(ctx, entry)
	}
	return nil
}

// Entries returns the newest entries touching account, newest first. A limit
// of zero or less returns all of them.
func (v *InMemoryVault) Entries(_ context.Context, account Account, limit int) ([]Entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []Entry
	for i := len(v.entries) - 1; i >= 0; i-- {
		e := v.entries[i]
		if e.From != account && e.To != account {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// appendEntry must be called with mu held.
func (v *InMemoryVault) appendEntry(ctx context.Context, e Entry) {
	v.entries = append(v.entries, e)
	n := len(v.entries)
	tx.RecordUndo(ctx, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.entries = v.entries[:n-1]
	})
}
