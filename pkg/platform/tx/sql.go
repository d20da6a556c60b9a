package tx

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLRunner runs units of work inside a database transaction.
type SQLRunner struct {
	db   *sql.DB
	opts options
}

// NewSQL constructs a SQLRunner over db.
func NewSQL(db *sql.DB, opts ...Option) *SQLRunner {
	return &SQLRunner{db: db, opts: buildOptions(opts)}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return aborted(err)
	}

	ctx, cancel := withDefaultDeadline(ctx, r.opts.timeout)
	defer cancel()

	sqlTx, err := r.db.BeginTx(ctx, r.opts.txOpts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
