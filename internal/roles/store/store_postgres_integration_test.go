//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"meritledger/internal/roles/models"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) TestMembership() {
	ctx := context.Background()

	added, err := s.store.AddMember(ctx, membership(models.RoleMinter, alice))
	s.Require().NoError(err)
	s.True(added)
	added, err = s.store.AddMember(ctx, membership(models.RoleMinter, alice))
	s.Require().NoError(err)
	s.False(added)

	ok, err := s.store.IsMember(ctx, models.RoleMinter, alice)
	s.Require().NoError(err)
	s.True(ok)

	members, err := s.store.ListMembers(ctx, models.RoleMinter)
	s.Require().NoError(err)
	s.Require().Len(members, 1)
	s.Equal(admin, members[0].GrantedBy)

	removed, err := s.store.RemoveMember(ctx, models.RoleMinter, alice)
	s.Require().NoError(err)
	s.True(removed)
	n, err := s.store.CountMembers(ctx, models.RoleMinter)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PostgresStoreSuite) TestAdminRoleOverride() {
	ctx := context.Background()

	_, found, err := s.store.AdminRoleOf(ctx, models.RoleMinter)
	s.Require().NoError(err)
	s.False(found)

	s.Require().NoError(s.store.SetAdminRole(ctx, models.RoleMinter, models.RoleAdmin))
	s.Require().NoError(s.store.SetAdminRole(ctx, models.RoleMinter, models.RoleScholarshipManager))
	got, found, err := s.store.AdminRoleOf(ctx, models.RoleMinter)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(models.RoleScholarshipManager, got)
}

func (s *PostgresStoreSuite) TestMembershipReadInTxBlocksRevoke() {
	ctx := context.Background()
	_, err := s.store.AddMember(ctx, membership(models.RoleMinter, alice))
	s.Require().NoError(err)

	runner := tx.NewSQL(s.pg.DB)
	errHeld := errors.New("held")
	err = runner.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := s.store.IsMember(ctx, models.RoleMinter, alice)
		s.Require().NoError(err)
		s.Require().True(ok)

		revokeCtx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()
		_, err = s.store.RemoveMember(revokeCtx, models.RoleMinter, alice)
		s.Error(err, "revoke must wait for the reading transaction")
		return errHeld
	})
	s.ErrorIs(err, errHeld)

	ok, err := s.store.IsMember(ctx, models.RoleMinter, alice)
	s.Require().NoError(err)
	s.True(ok)
}
