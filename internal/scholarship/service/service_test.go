package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	certmodels "meritledger/internal/certificate/models"
	certservice "meritledger/internal/certificate/service"
	certstore "meritledger/internal/certificate/store"
	"meritledger/internal/ledger"
	rolemodels "meritledger/internal/roles/models"
	roleservice "meritledger/internal/roles/service"
	rolestore "meritledger/internal/roles/store"
	"meritledger/internal/scholarship/adapters"
	"meritledger/internal/scholarship/models"
	"meritledger/internal/scholarship/store"
	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/events"
	eventstore "meritledger/pkg/platform/events/store/memory"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/requestcontext"
)

var (
	root     = domain.MustPrincipal("0x00000000000000000000000000000000000000a0")
	minter   = domain.MustPrincipal("0x00000000000000000000000000000000000000a1")
	manager  = domain.MustPrincipal("0x00000000000000000000000000000000000000b0")
	studentA = domain.MustPrincipal("0x00000000000000000000000000000000000000c1")
	studentB = domain.MustPrincipal("0x00000000000000000000000000000000000000c2")
	studentC = domain.MustPrincipal("0x00000000000000000000000000000000000000c3")

	now      = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deadline = now.Add(30 * 24 * time.Hour)
)

type EscrowSuite struct {
	suite.Suite
	certs   *certservice.Service
	store   *store.InMemoryStore
	vault   *ledger.InMemoryVault
	events  *eventstore.InMemoryStore
	service *Service
	hook    ledger.TransferHook
	serial  int
}

func TestEscrowSuite(t *testing.T) {
	suite.Run(t, new(EscrowSuite))
}

func (s *EscrowSuite) SetupTest() {
	runner := tx.NewInMemory()
	roles := roleservice.New(rolestore.NewInMemoryStore(), runner)
	ctx := s.as(root)
	s.Require().NoError(roles.Initialize(ctx, root))
	s.Require().NoError(roles.Grant(ctx, rolemodels.RoleAdmin, root))
	s.Require().NoError(roles.Grant(ctx, rolemodels.RoleMinter, minter))
	s.Require().NoError(roles.Grant(ctx, rolemodels.RoleScholarshipManager, manager))

	s.hook = nil
	s.serial = 0
	s.certs = certservice.New(certstore.NewInMemoryStore(), roles, runner)
	s.vault = ledger.NewInMemoryVault(ledger.WithTransferHook(func(ctx context.Context, e ledger.Entry) error {
		if s.hook != nil {
			return s.hook(ctx, e)
		}
		return nil
	}))
	s.Require().NoError(s.vault.Credit(context.Background(), ledger.PrincipalAccount(manager), 1000, "seed"))

	s.store = store.NewInMemoryStore()
	s.events = eventstore.NewInMemoryStore()
	s.service = New(s.store, roles, adapters.NewCertificateAdapter(s.certs), s.vault, runner,
		WithEvents(s.events),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *EscrowSuite) as(p domain.Principal) context.Context {
	return s.at(p, now)
}

func (s *EscrowSuite) at(p domain.Principal, t time.Time) context.Context {
	ctx := requestcontext.WithCaller(context.Background(), p)
	return requestcontext.WithTime(ctx, t)
}

func (s *EscrowSuite) issue(owner domain.Principal, dept string, codes ...string) *certmodels.Certificate {
	s.serial++
	courses := make([]certmodels.CourseRecord, 0, len(codes))
	for _, code := range codes {
		courses = append(courses, certmodels.CourseRecord{Code: code, GradeLetter: "A", GradePoints: 900, CreditsObtained: 3})
	}
	cert, err := s.certs.Issue(s.as(minter), certmodels.IssueRequest{
		Owner:    owner,
		SerialNo: fmt.Sprintf("S%d", s.serial),
		MemoNo:   fmt.Sprintf("M%d", s.serial),
		Courses:  courses,
		Metadata: certmodels.Metadata{
			StudentName:    "Student",
			RegistrationNo: "REG-" + owner.String(),
			Institution:    "State University",
			Department:     dept,
			EnrollmentDate: time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	s.Require().NoError(err)
	return cert
}

func (s *EscrowSuite) deposit(total domain.Amount, maxRecipients uint64, criteria models.Criteria) *models.Scholarship {
	sch, err := s.service.Deposit(s.as(manager), models.DepositRequest{
		Name:          "Merit award",
		TotalAmount:   total,
		MaxRecipients: maxRecipients,
		Deadline:      deadline,
		Criteria:      criteria,
		FundsAttached: total,
	})
	s.Require().NoError(err)
	return sch
}

func (s *EscrowSuite) balance(account ledger.Account) domain.Amount {
	b, err := s.vault.Balance(context.Background(), account)
	s.Require().NoError(err)
	return b
}

func (s *EscrowSuite) eventTypes() []events.Type {
	all, err := s.events.List(context.Background(), 0, 0)
	s.Require().NoError(err)
	out := make([]events.Type, len(all))
	for i, ev := range all {
		out[i] = ev.Type
	}
	return out
}

func (s *EscrowSuite) TestFixedShareScenario() {
	s.issue(studentA, "CSE", "CSE101")
	s.issue(studentA, "CSE", "MAT201")
	sch := s.deposit(100, 2, models.Criteria{MinCertificateCount: 1})
	s.Equal(domain.Amount(900), s.balance(ledger.PrincipalAccount(manager)))
	s.Equal(domain.Amount(100), s.balance(ledger.EscrowAccount))

	s.Run("eligible student claims half", func() {
		claim, err := s.service.Claim(s.as(studentA), sch.ID)
		s.Require().NoError(err)
		s.Equal(domain.Amount(50), claim.Amount)

		got, err := s.service.Get(context.Background(), sch.ID)
		s.Require().NoError(err)
		s.Equal(uint64(1), got.CurrentRecipients)
		s.Equal(domain.Amount(50), got.ClaimedFunds)
		s.True(got.IsActive)
		s.Equal(domain.Amount(50), s.balance(ledger.PrincipalAccount(studentA)))
	})

	s.Run("second claim fails", func() {
		_, err := s.service.Claim(s.as(studentA), sch.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyClaimed))
		s.Equal(domain.Amount(50), s.balance(ledger.PrincipalAccount(studentA)))

		result, err := s.service.Evaluate(s.as(studentA), sch.ID, studentA)
		s.Require().NoError(err)
		s.Equal([]string{models.ReasonAlreadyClaimed}, result.Reasons)
	})

	s.Run("student without certificates is told why", func() {
		result, err := s.service.Evaluate(s.as(studentB), sch.ID, studentB)
		s.Require().NoError(err)
		s.False(result.Eligible)
		s.Contains(result.Reasons, "Need at least 1 certificates (you have 0)")

		_, err = s.service.Claim(s.as(studentB), sch.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))
		s.Equal(result.Reasons, dErrors.Reasons(err))
	})

	s.Equal([]events.Type{events.TypeScholarshipCreated, events.TypeScholarshipClaimed}, s.eventTypes())
}

func (s *EscrowSuite) TestDeadlinePassed() {
	s.issue(studentA, "CSE", "CSE101")
	sch := s.deposit(100, 2, models.Criteria{MinCertificateCount: 1})
	late := s.at(studentA, deadline.Add(time.Second))

	result, err := s.service.Evaluate(late, sch.ID, studentA)
	s.Require().NoError(err)
	s.False(result.Eligible)
	s.Equal([]string{"Scholarship deadline has passed"}, result.Reasons)

	_, err = s.service.Claim(late, sch.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))
	s.Contains(dErrors.Reasons(err), "Scholarship deadline has passed")
}

func (s *EscrowSuite) TestDepositFailures() {
	valid := func() models.DepositRequest {
		return models.DepositRequest{Name: "Merit", TotalAmount: 100, MaxRecipients: 2, Deadline: deadline, FundsAttached: 100}
	}

	s.Run("caller without role", func() {
		_, err := s.service.Deposit(s.as(studentA), valid())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("attached funds must match", func() {
		req := valid()
		req.FundsAttached = 99
		_, err := s.service.Deposit(s.as(manager), req)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	})

	s.Run("funding is checked before shape", func() {
		req := valid()
		req.MaxRecipients = 0
		req.FundsAttached = 1
		_, err := s.service.Deposit(s.as(manager), req)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	})

	s.Run("zero recipients", func() {
		req := valid()
		req.MaxRecipients = 0
		_, err := s.service.Deposit(s.as(manager), req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("deadline in the past", func() {
		req := valid()
		req.Deadline = now
		_, err := s.service.Deposit(s.as(manager), req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("pool share rounds to zero", func() {
		req := valid()
		req.PayoutModel = models.PayoutPool
		req.TotalAmount, req.FundsAttached, req.MaxRecipients = 2, 2, 3
		_, err := s.service.Deposit(s.as(manager), req)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("caller balance too small rolls back creation", func() {
		req := valid()
		req.TotalAmount, req.FundsAttached = 5000, 5000
		_, err := s.service.Deposit(s.as(manager), req)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientFunds))
	})

	all, err := s.service.List(context.Background(), false)
	s.Require().NoError(err)
	s.Empty(all)
	s.Equal(domain.Amount(1000), s.balance(ledger.PrincipalAccount(manager)))
	s.Empty(s.eventTypes())
}

func (s *EscrowSuite) TestReentrantClaimIsRejected() {
	s.issue(studentA, "CSE", "CSE101")
	sch := s.deposit(100, 2, models.Criteria{MinCertificateCount: 1})

	var reentrantErr error
	s.hook = func(ctx context.Context, e ledger.Entry) error {
		if e.To == ledger.PrincipalAccount(studentA) {
			_, reentrantErr = s.service.Claim(ctx, sch.ID)
		}
		return nil
	}

	claim, err := s.service.Claim(s.as(studentA), sch.ID)
	s.Require().NoError(err)
	s.True(dErrors.HasCode(reentrantErr, dErrors.CodeReentrant))
	s.Equal(claim.Amount, s.balance(ledger.PrincipalAccount(studentA)))

	claims, err := s.service.Claims(context.Background(), sch.ID)
	s.Require().NoError(err)
	s.Len(claims, 1)
}

func (s *EscrowSuite) TestFreshContextReentryTimesOutAndRollsBack() {
	s.issue(studentA, "CSE", "CSE101")
	sch := s.deposit(100, 2, models.Criteria{MinCertificateCount: 1})

	var inner error
	s.hook = func(_ context.Context, e ledger.Entry) error {
		if e.To != ledger.PrincipalAccount(studentA) {
			return nil
		}
		ctx, cancel := context.WithTimeout(s.as(studentA), 50*time.Millisecond)
		defer cancel()
		_, inner = s.service.Claim(ctx, sch.ID)
		return inner
	}

	_, err := s.service.Claim(s.as(studentA), sch.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))
	s.True(dErrors.HasCode(inner, dErrors.CodeTimeout))

	claims, err := s.service.Claims(context.Background(), sch.ID)
	s.Require().NoError(err)
	s.Empty(claims)
	s.Equal(domain.Amount(100), s.balance(ledger.EscrowAccount))
}

func (s *EscrowSuite) TestReentrantEvaluationSeesClaim() {
	s.issue(studentA, "CSE", "CSE101")
	sch := s.deposit(100, 2, models.Criteria{})

	var seen models.Eligibility
	s.hook = func(ctx context.Context, e ledger.Entry) error {
		var err error
		seen, err = s.service.Evaluate(ctx, sch.ID, studentA)
		return err
	}
	_, err := s.service.Claim(s.as(studentA), sch.ID)
	s.Require().NoError(err)
	s.Equal([]string{models.ReasonAlreadyClaimed}, seen.Reasons)
}

func (s *EscrowSuite) TestTransferFailureRollsBackClaim() {
	s.issue(studentA, "CSE", "CSE101")
	sch := s.deposit(100, 2, models.Criteria{MinCertificateCount: 1})
	s.hook = func(context.Context, ledger.Entry) error {
		return context.DeadlineExceeded
	}

	_, err := s.service.Claim(s.as(studentA), sch.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))

	got, err := s.service.Get(context.Background(), sch.ID)
	s.Require().NoError(err)
	s.Zero(got.ClaimedFunds)
	s.Zero(got.CurrentRecipients)
	s.Equal(domain.Amount(100), s.balance(ledger.EscrowAccount))
	s.Zero(s.balance(ledger.PrincipalAccount(studentA)))
	s.Equal([]events.Type{events.TypeScholarshipCreated}, s.eventTypes())

	s.hook = nil
	claim, err := s.service.Claim(s.as(studentA), sch.ID)
	s.Require().NoError(err)
	s.Equal(domain.Amount(50), claim.Amount)
}

func (s *EscrowSuite) TestExhaustionAndConservation() {
	for _, st := range []domain.Principal{studentA, studentB, studentC} {
		s.issue(st, "CSE", "CSE101")
	}
	sch := s.deposit(101, 2, models.Criteria{MinCertificateCount: 1})

	for _, st := range []domain.Principal{studentA, studentB} {
		_, err := s.service.Claim(s.as(st), sch.ID)
		s.Require().NoError(err)
	}

	got, err := s.service.Get(context.Background(), sch.ID)
	s.Require().NoError(err)
	s.False(got.IsActive)
	s.Equal(domain.Amount(100), got.ClaimedFunds)
	s.Equal(domain.Amount(1), got.Remaining())

	_, err = s.service.Claim(s.as(studentC), sch.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotEligible))
	s.Equal([]string{"Scholarship is not active", "Maximum recipients reached"}, dErrors.Reasons(err))

	claims, err := s.service.Claims(context.Background(), sch.ID)
	s.Require().NoError(err)
	var paid domain.Amount
	for _, c := range claims {
		paid += c.Amount
	}
	s.Equal(got.ClaimedFunds, paid)
	s.Equal(got.Remaining(), s.balance(ledger.EscrowAccount))
}

func (s *EscrowSuite) TestPoolPayout() {
	for _, st := range []domain.Principal{studentA, studentB, studentC} {
		s.issue(st, "CSE", "CSE101")
	}
	sch, err := s.service.Deposit(s.as(manager), models.DepositRequest{
		Name:          "Pool",
		TotalAmount:   100,
		MaxRecipients: 3,
		Deadline:      deadline,
		PayoutModel:   models.PayoutPool,
		FundsAttached: 100,
	})
	s.Require().NoError(err)

	var amounts []domain.Amount
	for _, st := range []domain.Principal{studentA, studentB, studentC} {
		claim, err := s.service.Claim(s.as(st), sch.ID)
		s.Require().NoError(err)
		amounts = append(amounts, claim.Amount)
	}
	s.Equal([]domain.Amount{33, 33, 34}, amounts)
	s.Zero(s.balance(ledger.EscrowAccount))
}

func (s *EscrowSuite) TestRevokedCertificatesDoNotCount() {
	cert := s.issue(studentA, "CSE", "CSE101")
	sch := s.deposit(100, 2, models.Criteria{MinCertificateCount: 1, RequiredCourses: []string{"cse101"}})

	_, err := s.certs.Revoke(s.as(root), cert.ID)
	s.Require().NoError(err)

	result, err := s.service.Evaluate(s.as(studentA), sch.ID, studentA)
	s.Require().NoError(err)
	s.Equal([]string{
		"Need at least 1 certificates (you have 0)",
		"Need at least one of the required courses: CSE101",
	}, result.Reasons)
}

func (s *EscrowSuite) TestClose() {
	s.issue(studentA, "CSE", "CSE101")
	sch := s.deposit(101, 2, models.Criteria{})
	_, err := s.service.Claim(s.as(studentA), sch.ID)
	s.Require().NoError(err)

	s.Run("stranger cannot close", func() {
		_, err := s.service.Close(s.as(studentA), sch.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("reentrant close during refund is rejected", func() {
		var reentrantErr error
		s.hook = func(ctx context.Context, e ledger.Entry) error {
			_, reentrantErr = s.service.Close(ctx, sch.ID)
			return nil
		}
		closed, err := s.service.Close(s.as(manager), sch.ID)
		s.hook = nil
		s.Require().NoError(err)
		s.True(dErrors.HasCode(reentrantErr, dErrors.CodeReentrant))
		s.False(closed.IsActive)
		s.Equal(domain.Amount(51), closed.RefundedFunds)
		s.Zero(closed.Remaining())
	})

	s.Run("second close conflicts", func() {
		_, err := s.service.Close(s.as(root), sch.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Zero(s.balance(ledger.EscrowAccount))
	s.Equal(domain.Amount(1000-101+51), s.balance(ledger.PrincipalAccount(manager)))
}

func (s *EscrowSuite) TestUnknownScholarship() {
	_, err := s.service.Evaluate(s.as(studentA), 99, studentA)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.Claim(s.as(studentA), 99)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.Claims(context.Background(), 99)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
