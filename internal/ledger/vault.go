// Package ledger holds the value accounts scholarships are funded from and paid
// out of. Every movement is a Transfer between two accounts; balances never go
// negative.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meritledger/pkg/domain"
	"meritledger/pkg/platform/sentinel"
)

// Account names a balance holder: a principal or the escrow pool.
type Account string

// EscrowAccount holds every funded scholarship's unpaid remainder.
const EscrowAccount Account = "escrow:scholarships"

// PrincipalAccount is the account owned by p.
func PrincipalAccount(p domain.Principal) Account {
	return Account(p.String())
}

func (a Account) String() string {
	return string(a)
}

// ErrInsufficientBalance is returned when the source account cannot cover a
// transfer.
var ErrInsufficientBalance = sentinel.ErrInsufficientBalance

// Entry is one recorded movement.
type Entry struct {
	From      Account       `json:"from"`
	To        Account       `json:"to"`
	Amount    domain.Amount `json:"amount"`
	Memo      string        `json:"memo,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Vault moves value between accounts. Implementations participate in the
// transaction carried by ctx, so a rolled-back operation also rolls back its
// transfers.
type Vault interface {
	Balance(ctx context.Context, account Account) (domain.Amount, error)
	Credit(ctx context.Context, account Account, amount domain.Amount, memo string) error
	Transfer(ctx context.Context, from, to Account, amount domain.Amount, memo string) error
	Entries(ctx context.Context, account Account, limit int) ([]Entry, error)
}

// TransferHook runs after a transfer has moved the balances and before it
// returns. It stands in for the recipient taking control during payout.
type TransferHook func(ctx context.Context, entry Entry) error

func insufficient(from Account, have, want domain.Amount) error {
	return fmt.Errorf("account %s holds %d, needs %d: %w", from, have, want, ErrInsufficientBalance)
}

// IsInsufficientBalance reports whether err was caused by a short source account.
func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}
