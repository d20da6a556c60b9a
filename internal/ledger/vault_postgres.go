package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"meritledger/pkg/domain"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/requestcontext"
)

// PostgresVault keeps balances in ledger_accounts and appends every movement to
// ledger_entries. Amounts are NUMERIC(20,0) and cross the driver as decimal
// strings. Mutations must run inside a transaction so the row locks hold.
type PostgresVault struct {
	db *sql.DB
}

func NewPostgresVault(db *sql.DB) *PostgresVault {
	return &PostgresVault{db: db}
}

func (v *PostgresVault) Balance(ctx context.Context, account Account) (domain.Amount, error) {
	var raw string
	query := `SELECT balance::text FROM ledger_accounts WHERE account = $1`
	err := tx.Querier(ctx, v.db).QueryRowContext(ctx, query, string(account)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return parseAmount(raw)
}

func (v *PostgresVault) Credit(ctx context.Context, account Account, amount domain.Amount, memo string) error {
	q := tx.Querier(ctx, v.db)
	if err := v.add(ctx, q, account, amount); err != nil {
		return err
	}
	return v.record(ctx, q, Entry{To: account, Amount: amount, Memo: memo, CreatedAt: requestcontext.Now(ctx)})
}

func (v *PostgresVault) Transfer(ctx context.Context, from, to Account, amount domain.Amount, memo string) error {
	if from == to {
		return errors.New("transfer source and destination are the same account")
	}
	q := tx.Querier(ctx, v.db)

	var raw string
	query := `SELECT balance::text FROM ledger_accounts WHERE account = $1 FOR UPDATE`
	err := q.QueryRowContext(ctx, query, string(from)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		raw = "0"
	} else if err != nil {
		return fmt.Errorf("lock source account: %w", err)
	}
	have, err := parseAmount(raw)
	if err != nil {
		return err
	}
	if have < amount {
		return insufficient(from, have, amount)
	}

	debit := `UPDATE ledger_accounts SET balance = balance - $2::numeric WHERE account = $1`
	if _, err := q.ExecContext(ctx, debit, string(from), formatAmount(amount)); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if err := v.add(ctx, q, to, amount); err != nil {
		return err
	}
	return v.record(ctx, q, Entry{From: from, To: to, Amount: amount, Memo: memo, CreatedAt: requestcontext.Now(ctx)})
}

func (v *PostgresVault) Entries(ctx context.Context, account Account, limit int) ([]Entry, error) {
	query := `
		SELECT from_account, to_account, amount::text, memo, created_at
		FROM ledger_entries
		WHERE from_account = $1 OR to_account = $1
		ORDER BY id DESC
	`
	args := []any{string(account)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := tx.Querier(ctx, v.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			from, to string
			raw      string
		)
		if err := rows.Scan(&from, &to, &raw, &e.Memo, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if e.Amount, err = parseAmount(raw); err != nil {
			return nil, err
		}
		e.From, e.To = Account(from), Account(to)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (v *PostgresVault) add(ctx context.Context, q tx.DBTX, account Account, amount domain.Amount) error {
	query := `
		INSERT INTO ledger_accounts (account, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET balance = ledger_accounts.balance + EXCLUDED.balance
	`
	if _, err := q.ExecContext(ctx, query, string(account), formatAmount(amount)); err != nil {
		return fmt.Errorf("credit %s: %w", account, err)
	}
	return nil
}

func (v *PostgresVault) record(ctx context.Context, q tx.DBTX, e Entry) error {
	query := `
		INSERT INTO ledger_entries (from_account, to_account, amount, memo, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5)
	`
	from := string(e.From)
	if from == "" {
		from = "mint"
	}
	if _, err := q.ExecContext(ctx, query, from, string(e.To), formatAmount(e.Amount), e.Memo, e.CreatedAt); err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

func parseAmount(raw string) (domain.Amount, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return domain.Amount(v), nil
}

func formatAmount(a domain.Amount) string {
	return strconv.FormatUint(uint64(a), 10)
}
