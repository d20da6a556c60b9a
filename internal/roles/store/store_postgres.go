package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"meritledger/internal/roles/models"
	"meritledger/pkg/domain"
	"meritledger/pkg/platform/tx"
)

// PostgresStore persists memberships in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// IsMember reports membership. Inside a transaction the membership row is
// read FOR SHARE, so a concurrent revoke waits until the caller commits.
func (s *PostgresStore) IsMember(ctx context.Context, role models.Role, principal domain.Principal) (bool, error) {
	if !tx.InTx(ctx) {
		var exists bool
		query := `SELECT EXISTS (SELECT 1 FROM role_members WHERE role = $1 AND principal = $2)`
		if err := s.db.QueryRowContext(ctx, query, string(role), string(principal)).Scan(&exists); err != nil {
			return false, fmt.Errorf("check role membership: %w", err)
		}
		return exists, nil
	}

	var one int
	query := `SELECT 1 FROM role_members WHERE role = $1 AND principal = $2 FOR SHARE`
	err := tx.Querier(ctx, s.db).QueryRowContext(ctx, query, string(role), string(principal)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check role membership: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) AddMember(ctx context.Context, m *models.Membership) (bool, error) {
	query := `
		INSERT INTO role_members (role, principal, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (role, principal) DO NOTHING
	`
	res, err := tx.Querier(ctx, s.db).ExecContext(ctx, query,
		string(m.Role), string(m.Principal), string(m.GrantedBy), m.GrantedAt)
	if err != nil {
		return false, fmt.Errorf("insert role member: %w", err)
	}
	return affected(res)
}

func (s *PostgresStore) RemoveMember(ctx context.Context, role models.Role, principal domain.Principal) (bool, error) {
	query := `DELETE FROM role_members WHERE role = $1 AND principal = $2`
	res, err := tx.Querier(ctx, s.db).ExecContext(ctx, query, string(role), string(principal))
	if err != nil {
		return false, fmt.Errorf("delete role member: %w", err)
	}
	return affected(res)
}

func (s *PostgresStore) ListMembers(ctx context.Context, role models.Role) ([]*models.Membership, error) {
	query := `
		SELECT role, principal, granted_by, granted_at
		FROM role_members
		WHERE role = $1
		ORDER BY principal
	`
	rows, err := tx.Querier(ctx, s.db).QueryContext(ctx, query, string(role))
	if err != nil {
		return nil, fmt.Errorf("list role members: %w", err)
	}
	defer rows.Close()

	out := []*models.Membership{}
	for rows.Next() {
		var r, p, by string
		m := &models.Membership{}
		if err := rows.Scan(&r, &p, &by, &m.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan role member: %w", err)
		}
		m.Role = models.Role(r)
		m.Principal = domain.Principal(p)
		m.GrantedBy = domain.Principal(by)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role members: %w", err)
	}
	return out, nil
}

// CountMembers locks the role's rows so a concurrent revoke of another holder
// cannot race the last-admin check.
func (s *PostgresStore) CountMembers(ctx context.Context, role models.Role) (int, error) {
	query := `SELECT principal FROM role_members WHERE role = $1 FOR UPDATE`
	rows, err := tx.Querier(ctx, s.db).QueryContext(ctx, query, string(role))
	if err != nil {
		return 0, fmt.Errorf("count role members: %w", err)
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("count role members: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) AdminRoleOf(ctx context.Context, role models.Role) (models.Role, bool, error) {
	var admin string
	query := `SELECT admin_role FROM role_admins WHERE role = $1`
	err := tx.Querier(ctx, s.db).QueryRowContext(ctx, query, string(role)).Scan(&admin)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find admin role: %w", err)
	}
	return models.Role(admin), true, nil
}

func (s *PostgresStore) SetAdminRole(ctx context.Context, role, admin models.Role) error {
	query := `
		INSERT INTO role_admins (role, admin_role) VALUES ($1, $2)
		ON CONFLICT (role) DO UPDATE SET admin_role = EXCLUDED.admin_role
	`
	if _, err := tx.Querier(ctx, s.db).ExecContext(ctx, query, string(role), string(admin)); err != nil {
		return fmt.Errorf("set admin role: %w", err)
	}
	return nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
