//go:build integration

package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"meritledger/pkg/domain"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/testutil/containers"
)

type PostgresVaultSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	vault  *PostgresVault
	runner *tx.SQLRunner
}

func TestPostgresVaultSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresVaultSuite))
}

func (s *PostgresVaultSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.vault = NewPostgresVault(s.pg.DB)
	s.runner = tx.NewSQL(s.pg.DB)
}

func (s *PostgresVaultSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *PostgresVaultSuite) balance(a Account) domain.Amount {
	b, err := s.vault.Balance(context.Background(), a)
	s.Require().NoError(err)
	return b
}

func (s *PostgresVaultSuite) TestTransferMovesValueAndRecordsEntry() {
	ctx := context.Background()
	alice := PrincipalAccount(domain.MustPrincipal("0x00000000000000000000000000000000000000a1"))
	s.Require().NoError(s.vault.Credit(ctx, alice, 100, "seed"))

	s.Require().NoError(s.runner.RunInTx(ctx, func(ctx context.Context) error {
		return s.vault.Transfer(ctx, alice, EscrowAccount, 60, "scholarship:1 deposit")
	}))
	s.Equal(domain.Amount(40), s.balance(alice))
	s.Equal(domain.Amount(60), s.balance(EscrowAccount))

	entries, err := s.vault.Entries(ctx, EscrowAccount, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(alice, entries[0].From)
	s.Equal("scholarship:1 deposit", entries[0].Memo)
}

func (s *PostgresVaultSuite) TestOverdraftRejected() {
	ctx := context.Background()
	alice := PrincipalAccount(domain.MustPrincipal("0x00000000000000000000000000000000000000a1"))
	s.Require().NoError(s.vault.Credit(ctx, alice, 10, "seed"))

	err := s.vault.Transfer(ctx, alice, EscrowAccount, 11, "too much")
	s.True(IsInsufficientBalance(err))
	s.Equal(domain.Amount(10), s.balance(alice))
	s.Equal(domain.Amount(0), s.balance(EscrowAccount))
}

func (s *PostgresVaultSuite) TestRollbackUndoesTransfer() {
	ctx := context.Background()
	alice := PrincipalAccount(domain.MustPrincipal("0x00000000000000000000000000000000000000a1"))
	s.Require().NoError(s.vault.Credit(ctx, alice, 10, "seed"))
	boom := errors.New("boom")

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		s.Require().NoError(s.vault.Transfer(ctx, alice, EscrowAccount, 10, "rolled back"))
		return boom
	})
	s.ErrorIs(err, boom)
	s.Equal(domain.Amount(10), s.balance(alice))

	entries, err := s.vault.Entries(ctx, alice, 10)
	s.Require().NoError(err)
	s.Len(entries, 1)
}
