package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meritledger/pkg/platform/events"
	"meritledger/pkg/platform/tx"
)

type payload struct {
	ID uint64 `json:"id"`
}

func emit(t *testing.T, ctx context.Context, s *InMemoryStore, id uint64) {
	t.Helper()
	require.NoError(t, events.Emit(ctx, s, events.TypeCertificateIssued, "certificate", payload{ID: id}))
}

func TestAppendAssignsSequence(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	emit(t, ctx, s, 1)
	emit(t, ctx, s, 2)

	all, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint64(1), all[0].Seq)
	assert.Equal(t, uint64(2), all[1].Seq)

	var p payload
	require.NoError(t, all[1].Decode(&p))
	assert.Equal(t, uint64(2), p.ID)
}

func TestListPaginates(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for i := uint64(1); i <= 5; i++ {
		emit(t, ctx, s, i)
	}

	page, err := s.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(3), page[0].Seq)
	assert.Equal(t, uint64(4), page[1].Seq)

	empty, err := s.List(ctx, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAppendRolledBackWithTransaction(t *testing.T) {
	s := NewInMemoryStore()
	runner := tx.NewInMemory()
	ctx := context.Background()
	emit(t, ctx, s, 1)

	err := runner.RunInTx(ctx, func(txCtx context.Context) error {
		emit(t, txCtx, s, 2)
		return errors.New("claim failed")
	})
	require.Error(t, err)

	all, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)

	emit(t, ctx, s, 3)
	all, err = s.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), all[1].Seq, "sequence is reused after a rollback")
}

func TestPendingAndMarkPublished(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for i := uint64(1); i <= 3; i++ {
		emit(t, ctx, s, i)
	}

	pending, err := s.Pending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, s.MarkPublished(ctx, []uint64{pending[0].Seq, pending[1].Seq}))

	pending, err = s.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(3), pending[0].Seq)
}
