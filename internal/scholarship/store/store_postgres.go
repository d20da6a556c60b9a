package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"meritledger/internal/scholarship/models"
	"meritledger/pkg/domain"
	"meritledger/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists scholarships and claims. Amounts are NUMERIC(20,0) and
// cross the driver as decimal strings.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const scholarshipColumns = `
	id, name, description, creator, payout_model,
	total_funds::text, claimed_funds::text, refunded_funds::text,
	max_recipients, current_recipients, deadline, criteria,
	is_active, created_at, closed_at
`

func (s *PostgresStore) Create(ctx context.Context, sch *models.Scholarship) (domain.ScholarshipID, error) {
	criteria, err := json.Marshal(sch.Criteria)
	if err != nil {
		return 0, fmt.Errorf("marshal criteria: %w", err)
	}
	query := `
		INSERT INTO scholarships (
			name, description, creator, payout_model,
			total_funds, claimed_funds, refunded_funds,
			max_recipients, current_recipients, deadline, criteria,
			is_active, created_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	var id int64
	err = tx.Querier(ctx, s.db).QueryRowContext(ctx, query,
		sch.Name, sch.Description, string(sch.Creator), string(sch.PayoutModel),
		formatAmount(sch.TotalFunds), formatAmount(sch.ClaimedFunds), formatAmount(sch.RefundedFunds),
		int64(sch.MaxRecipients), int64(sch.CurrentRecipients), sch.Deadline, criteria,
		sch.IsActive, sch.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert scholarship: %w", err)
	}
	return domain.ScholarshipID(id), nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ScholarshipID) (*models.Scholarship, error) {
	query := `SELECT ` + scholarshipColumns + ` FROM scholarships WHERE id = $1`
	sch, err := scanScholarship(tx.Querier(ctx, s.db).QueryRowContext(ctx, query, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scholarship %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find scholarship: %w", err)
	}
	return sch, nil
}

func (s *PostgresStore) List(ctx context.Context, activeOnly bool) ([]*models.Scholarship, error) {
	query := `SELECT ` + scholarshipColumns + ` FROM scholarships`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY id`
	rows, err := tx.Querier(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list scholarships: %w", err)
	}
	defer rows.Close()

	var out []*models.Scholarship
	for rows.Next() {
		sch, err := scanScholarship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scholarship: %w", err)
		}
		out = append(out, sch)
	}
	return out, rows.Err()
}

// Execute locks the row, runs validate then mutate and writes the mutable
// columns back. It must run inside a transaction.
func (s *PostgresStore) Execute(ctx context.Context, id domain.ScholarshipID, validate func(*models.Scholarship) error, mutate func(*models.Scholarship)) (*models.Scholarship, error) {
	q := tx.Querier(ctx, s.db)
	query := `SELECT ` + scholarshipColumns + ` FROM scholarships WHERE id = $1 FOR UPDATE`
	sch, err := scanScholarship(q.QueryRowContext(ctx, query, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scholarship %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock scholarship: %w", err)
	}
	if err := validate(sch); err != nil {
		return nil, err
	}
	mutate(sch)

	update := `
		UPDATE scholarships
		SET claimed_funds = $2::numeric, refunded_funds = $3::numeric,
			current_recipients = $4, is_active = $5, closed_at = $6
		WHERE id = $1
	`
	var closedAt sql.NullTime
	if sch.ClosedAt != nil {
		closedAt = sql.NullTime{Time: *sch.ClosedAt, Valid: true}
	}
	_, err = q.ExecContext(ctx, update, int64(id),
		formatAmount(sch.ClaimedFunds), formatAmount(sch.RefundedFunds),
		int64(sch.CurrentRecipients), sch.IsActive, closedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update scholarship: %w", err)
	}
	return sch, nil
}

func (s *PostgresStore) HasClaimed(ctx context.Context, id domain.ScholarshipID, student domain.Principal) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM scholarship_claims WHERE scholarship_id = $1 AND student = $2)`
	if err := tx.Querier(ctx, s.db).QueryRowContext(ctx, query, int64(id), string(student)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check claim: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) RecordClaim(ctx context.Context, claim *models.Claim) error {
	query := `
		INSERT INTO scholarship_claims (scholarship_id, student, amount, claimed_at)
		VALUES ($1, $2, $3::numeric, $4)
	`
	_, err := tx.Querier(ctx, s.db).ExecContext(ctx, query,
		int64(claim.ScholarshipID), string(claim.Student), formatAmount(claim.Amount), claim.ClaimedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("claim %d/%s: %w", claim.ScholarshipID, claim.Student, ErrAlreadyClaimed)
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListClaims(ctx context.Context, id domain.ScholarshipID) ([]*models.Claim, error) {
	query := `
		SELECT student, amount::text, claimed_at
		FROM scholarship_claims
		WHERE scholarship_id = $1
		ORDER BY claimed_at, student
	`
	rows, err := tx.Querier(ctx, s.db).QueryContext(ctx, query, int64(id))
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var out []*models.Claim
	for rows.Next() {
		var (
			student, amount string
			claimedAt       time.Time
		)
		if err := rows.Scan(&student, &amount, &claimedAt); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		a, err := parseAmount(amount)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.Claim{
			ScholarshipID: id,
			Student:       domain.Principal(student),
			Amount:        a,
			ClaimedAt:     claimedAt,
		})
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScholarship(row rowScanner) (*models.Scholarship, error) {
	var (
		id, maxRecipients, currentRecipients int64
		creator, payoutModel                 string
		total, claimed, refunded             string
		criteria                             []byte
		closedAt                             sql.NullTime
		sch                                  models.Scholarship
	)
	err := row.Scan(
		&id, &sch.Name, &sch.Description, &creator, &payoutModel,
		&total, &claimed, &refunded,
		&maxRecipients, &currentRecipients, &sch.Deadline, &criteria,
		&sch.IsActive, &sch.CreatedAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(criteria, &sch.Criteria); err != nil {
		return nil, fmt.Errorf("unmarshal criteria: %w", err)
	}
	if sch.TotalFunds, err = parseAmount(total); err != nil {
		return nil, err
	}
	if sch.ClaimedFunds, err = parseAmount(claimed); err != nil {
		return nil, err
	}
	if sch.RefundedFunds, err = parseAmount(refunded); err != nil {
		return nil, err
	}
	sch.ID = domain.ScholarshipID(id)
	sch.Creator = domain.Principal(creator)
	sch.PayoutModel = models.PayoutModel(payoutModel)
	sch.MaxRecipients = uint64(maxRecipients)
	sch.CurrentRecipients = uint64(currentRecipients)
	if closedAt.Valid {
		t := closedAt.Time
		sch.ClosedAt = &t
	}
	return &sch, nil
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
