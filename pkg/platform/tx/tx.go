// Package tx defines the transactional boundary every mutating operation runs in.
//
// Two runners implement it. SQLRunner wraps a database transaction and stores it
// in the context so Postgres stores can pick it up. InMemoryRunner serializes all
// transactions behind one mutex and keeps an undo journal: in-memory stores record
// a compensating closure for each write and the runner replays the journal in
// reverse when the unit of work fails or panics.
//
// A RunInTx call on a context that is already inside a transaction joins it.
package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "meritledger/pkg/domain-errors"
)

// DefaultTimeout bounds a transaction whose context carries no deadline.
const DefaultTimeout = 5 * time.Second

// Runner executes fn as one atomic unit of work.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type (
	sqlTxKey   struct{}
	journalKey struct{}
)

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, sqlTxKey{}, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(sqlTxKey{}).(*sql.Tx)
	return tx, ok
}

// InTx reports whether ctx belongs to a running transaction of either kind.
func InTx(ctx context.Context) bool {
	if _, ok := From(ctx); ok {
		return true
	}
	_, ok := ctx.Value(journalKey{}).(*journal)
	return ok
}

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Querier returns the transaction carried by ctx, or db when there is none.
func Querier(ctx context.Context, db *sql.DB) DBTX {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// RecordUndo registers a compensating action for a write made under ctx.
// Outside an in-memory transaction it is a no-op.
func RecordUndo(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

type journal struct {
	undo []func()
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// Option configures a runner.
type Option func(*options)

type options struct {
	timeout time.Duration
	txOpts  *sql.TxOptions
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTxOptions sets isolation options for SQL transactions.
func WithTxOptions(txOpts *sql.TxOptions) Option {
	return func(o *options) {
		o.txOpts = txOpts
	}
}

func buildOptions(opts []Option) options {
	o := options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func withDefaultDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func aborted(err error) error {
	return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
}
