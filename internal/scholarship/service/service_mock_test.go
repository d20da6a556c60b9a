package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"meritledger/internal/ledger"
	rolemodels "meritledger/internal/roles/models"
	"meritledger/internal/scholarship/models"
	"meritledger/internal/scholarship/service/mocks"
	"meritledger/internal/scholarship/store"
	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/requestcontext"
)

type mockedEscrow struct {
	roles   *mocks.MockRoleChecker
	certs   *mocks.MockCertificateReader
	vault   *mocks.MockVault
	store   *store.InMemoryStore
	service *Service
}

func newMockedEscrow(t *testing.T) *mockedEscrow {
	ctrl := gomock.NewController(t)
	m := &mockedEscrow{
		roles: mocks.NewMockRoleChecker(ctrl),
		certs: mocks.NewMockCertificateReader(ctrl),
		vault: mocks.NewMockVault(ctrl),
		store: store.NewInMemoryStore(),
	}
	m.service = New(m.store, m.roles, m.certs, m.vault, tx.NewInMemory(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return m
}

func ctxAs(p domain.Principal) context.Context {
	return requestcontext.WithTime(requestcontext.WithCaller(context.Background(), p), now)
}

func (m *mockedEscrow) seed(t *testing.T) domain.ScholarshipID {
	t.Helper()
	id, err := m.store.Create(context.Background(), &models.Scholarship{
		Name:          "Merit",
		Creator:       manager,
		PayoutModel:   models.PayoutFixedShare,
		TotalFunds:    100,
		MaxRecipients: 2,
		Deadline:      deadline,
		IsActive:      true,
	})
	require.NoError(t, err)
	return id
}

func TestDeposit_UnauthorizedNeverTouchesVault(t *testing.T) {
	m := newMockedEscrow(t)
	m.roles.EXPECT().HasRole(gomock.Any(), rolemodels.RoleScholarshipManager, studentA).Return(false)

	_, err := m.service.Deposit(ctxAs(studentA), models.DepositRequest{
		Name: "Merit", TotalAmount: 100, MaxRecipients: 2, Deadline: deadline, FundsAttached: 100,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestDeposit_RoleGateRunsInsideTransaction(t *testing.T) {
	m := newMockedEscrow(t)
	m.roles.EXPECT().HasRole(gomock.Any(), rolemodels.RoleScholarshipManager, manager).
		DoAndReturn(func(ctx context.Context, _ rolemodels.Role, _ domain.Principal) bool {
			assert.True(t, tx.InTx(ctx), "role gate must share the deposit transaction")
			return true
		})
	m.vault.EXPECT().Transfer(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	_, err := m.service.Deposit(ctxAs(manager), models.DepositRequest{
		Name: "Merit", TotalAmount: 100, MaxRecipients: 2, Deadline: deadline, FundsAttached: 100,
	})
	require.NoError(t, err)
}

func TestDeposit_EscrowsAttachedFunds(t *testing.T) {
	m := newMockedEscrow(t)
	m.roles.EXPECT().HasRole(gomock.Any(), rolemodels.RoleScholarshipManager, manager).Return(true)
	m.vault.EXPECT().
		Transfer(gomock.Any(), ledger.PrincipalAccount(manager), ledger.EscrowAccount, domain.Amount(100), "scholarship:1 deposit").
		Return(nil)

	sch, err := m.service.Deposit(ctxAs(manager), models.DepositRequest{
		Name: "Merit", TotalAmount: 100, MaxRecipients: 2, Deadline: deadline, FundsAttached: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ScholarshipID(1), sch.ID)
	assert.Equal(t, manager, sch.Creator)
	assert.True(t, sch.IsActive)
}

func TestClaim_CertificateReadFailure(t *testing.T) {
	m := newMockedEscrow(t)
	id := m.seed(t)
	m.certs.EXPECT().CertificatesOf(gomock.Any(), studentA).Return(nil, errors.New("registry unavailable"))

	_, err := m.service.Claim(ctxAs(studentA), id)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestClaim_TransferFailureLeavesNoClaim(t *testing.T) {
	m := newMockedEscrow(t)
	id := m.seed(t)
	m.certs.EXPECT().CertificatesOf(gomock.Any(), studentA).Return([]models.CertificateSummary{{ID: 1}}, nil)
	m.vault.EXPECT().
		Transfer(gomock.Any(), ledger.EscrowAccount, ledger.PrincipalAccount(studentA), domain.Amount(50), gomock.Any()).
		Return(errors.New("recipient rejected value"))

	_, err := m.service.Claim(ctxAs(studentA), id)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTransferFailed))

	claimed, err := m.store.HasClaimed(context.Background(), id, studentA)
	require.NoError(t, err)
	assert.False(t, claimed)
	sch, err := m.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Zero(t, sch.CurrentRecipients)
}

func TestClaim_AnonymousCaller(t *testing.T) {
	m := newMockedEscrow(t)
	id := m.seed(t)
	_, err := m.service.Claim(requestcontext.WithTime(context.Background(), now), id)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthenticated))
}

func TestClose_AdminRefundsCreator(t *testing.T) {
	m := newMockedEscrow(t)
	id := m.seed(t)
	m.roles.EXPECT().HasRole(gomock.Any(), rolemodels.RoleAdmin, root).Return(true)
	m.vault.EXPECT().
		Transfer(gomock.Any(), ledger.EscrowAccount, ledger.PrincipalAccount(manager), domain.Amount(100), "scholarship:1 refund").
		Return(nil)

	sch, err := m.service.Close(ctxAs(root), id)
	require.NoError(t, err)
	assert.Equal(t, domain.Amount(100), sch.RefundedFunds)
	assert.NotNil(t, sch.ClosedAt)
}
