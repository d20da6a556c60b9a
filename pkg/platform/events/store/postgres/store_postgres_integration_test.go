//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"meritledger/pkg/platform/events"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
}

func TestOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = New(s.pg.DB)
}

func (s *OutboxSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(context.Background()))
}

func (s *OutboxSuite) emit(ctx context.Context, aggregate string) error {
	return events.Emit(ctx, s.store, events.TypeCertificateIssued, aggregate, map[string]string{"aggregate": aggregate})
}

func (s *OutboxSuite) TestAppendListAndPublish() {
	ctx := context.Background()
	for _, id := range []string{"certificate:1", "certificate:2", "certificate:3"} {
		s.Require().NoError(s.emit(ctx, id))
	}

	all, err := s.store.List(ctx, 0, 0)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Less(all[0].Seq, all[1].Seq)

	page, err := s.store.List(ctx, all[0].Seq, 1)
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal("certificate:2", page[0].AggregateID)

	s.Require().NoError(s.store.MarkPublished(ctx, []uint64{all[0].Seq, all[1].Seq}))
	pending, err := s.store.Pending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("certificate:3", pending[0].AggregateID)
}

func (s *OutboxSuite) TestAppendRolledBackWithTransaction() {
	ctx := context.Background()
	runner := tx.NewSQL(s.pg.DB)
	boom := errors.New("boom")

	err := runner.RunInTx(ctx, func(ctx context.Context) error {
		s.Require().NoError(s.emit(ctx, "certificate:9"))
		return boom
	})
	s.ErrorIs(err, boom)

	all, err := s.store.List(ctx, 0, 0)
	s.Require().NoError(err)
	s.Empty(all)
}
