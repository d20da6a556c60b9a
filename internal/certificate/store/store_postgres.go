package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meritledger/internal/certificate/models"
	"meritledger/pkg/domain"
	"meritledger/pkg/platform/tx"
)

// PostgresStore persists certificates in PostgreSQL. Create and Execute must
// run inside a transaction so a rejected identifier discards the whole insert.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const certificateColumns = `
	id, owner, serial_no, memo_no, content_hash, metadata, courses,
	total_credits, sgpa, issuer, issued_at, is_revoked, revoked_by, revoked_at
`

func (s *PostgresStore) Create(ctx context.Context, cert *models.Certificate) (domain.CertificateID, error) {
	q := tx.Querier(ctx, s.db)

	metadata, err := json.Marshal(cert.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}
	courses, err := json.Marshal(cert.Courses)
	if err != nil {
		return 0, fmt.Errorf("marshal courses: %w", err)
	}

	var id int64
	insert := `
		INSERT INTO certificates (
			owner, serial_no, memo_no, content_hash, metadata, courses,
			total_credits, sgpa, issuer, issued_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err = q.QueryRowContext(ctx, insert,
		string(cert.Owner),
		cert.SerialNo,
		cert.MemoNo,
		cert.ContentHash,
		metadata,
		courses,
		int64(cert.Aggregate.TotalCredits),
		int64(cert.Aggregate.SGPA),
		string(cert.Issuer),
		cert.IssuedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert certificate: %w", err)
	}

	claim := `
		INSERT INTO certificate_identifiers (kind, value, certificate_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, value) DO NOTHING
	`
	for _, ident := range cert.Identifiers() {
		res, err := q.ExecContext(ctx, claim, string(ident.Kind), ident.Value, id)
		if err != nil {
			return 0, fmt.Errorf("claim %s identifier: %w", ident.Kind, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("claim %s identifier: %w", ident.Kind, err)
		}
		if n == 0 {
			return 0, &DuplicateIdentifierError{Kind: ident.Kind, Value: ident.Value}
		}
	}
	return domain.CertificateID(id), nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.CertificateID) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`
	return s.scanOne(tx.Querier(ctx, s.db).QueryRowContext(ctx, query, int64(id)))
}

func (s *PostgresStore) FindByIdentifier(ctx context.Context, kind models.IdentifierKind, value string) (*models.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE id = (SELECT certificate_id FROM certificate_identifiers WHERE kind = $1 AND value = $2)
	`
	return s.scanOne(tx.Querier(ctx, s.db).QueryRowContext(ctx, query, string(kind), value))
}

func (s *PostgresStore) IsIdentifierUsed(ctx context.Context, kind models.IdentifierKind, value string) (bool, error) {
	var used bool
	query := `SELECT EXISTS (SELECT 1 FROM certificate_identifiers WHERE kind = $1 AND value = $2)`
	if err := tx.Querier(ctx, s.db).QueryRowContext(ctx, query, string(kind), value).Scan(&used); err != nil {
		return false, fmt.Errorf("check identifier: %w", err)
	}
	return used, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner domain.Principal) ([]*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE owner = $1 ORDER BY id`
	rows, err := tx.Querier(ctx, s.db).QueryContext(ctx, query, string(owner))
	if err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	defer rows.Close()

	out := []*models.Certificate{}
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	return out, nil
}

// Execute locks the row, validates, mutates and writes back the revocation
// fields, which are the only mutable columns.
func (s *PostgresStore) Execute(ctx context.Context, id domain.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	q := tx.Querier(ctx, s.db)
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1 FOR UPDATE`
	cert, err := s.scanOne(q.QueryRowContext(ctx, query, int64(id)))
	if err != nil {
		return nil, err
	}
	if err := validate(cert); err != nil {
		return nil, err
	}
	mutate(cert)

	update := `UPDATE certificates SET is_revoked = $2, revoked_by = $3, revoked_at = $4 WHERE id = $1`
	var revokedBy sql.NullString
	if !cert.RevokedBy.IsZero() {
		revokedBy = sql.NullString{String: string(cert.RevokedBy), Valid: true}
	}
	if _, err := q.ExecContext(ctx, update, int64(id), cert.IsRevoked, revokedBy, cert.RevokedAt); err != nil {
		return nil, fmt.Errorf("update certificate: %w", err)
	}
	return cert, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row rowScanner) (*models.Certificate, error) {
	cert, err := scanCertificate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cert, err
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		id, totalCredits, sgpa int64
		owner, issuer          string
		metadata, courses      []byte
		revokedBy              sql.NullString
		revokedAt              sql.NullTime
		issuedAt               time.Time
		cert                   models.Certificate
	)
	err := row.Scan(&id, &owner, &cert.SerialNo, &cert.MemoNo, &cert.ContentHash, &metadata, &courses,
		&totalCredits, &sgpa, &issuer, &issuedAt, &cert.IsRevoked, &revokedBy, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	if err := json.Unmarshal(metadata, &cert.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if err := json.Unmarshal(courses, &cert.Courses); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	cert.ID = domain.CertificateID(id)
	cert.Owner = domain.Principal(owner)
	cert.Issuer = domain.Principal(issuer)
	cert.IssuedAt = issuedAt.UTC()
	cert.Aggregate = models.Aggregate{TotalCredits: uint64(totalCredits), SGPA: uint64(sgpa)}
	if revokedBy.Valid {
		cert.RevokedBy = domain.Principal(revokedBy.String)
	}
	if revokedAt.Valid {
		t := revokedAt.Time.UTC()
		cert.RevokedAt = &t
	}
	return &cert, nil
}
