package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"meritledger/internal/ledger"
	rolemodels "meritledger/internal/roles/models"
	"meritledger/internal/scholarship/metrics"
	"meritledger/internal/scholarship/models"
	"meritledger/internal/scholarship/store"
	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/events"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/requestcontext"
)

// Store is the escrow persistence port. Error contract:
//   - store.ErrNotFound when the scholarship does not exist
//   - store.ErrAlreadyClaimed when RecordClaim hits an existing pair
//   - wrapped infrastructure errors otherwise
type Store interface {
	Create(ctx context.Context, sch *models.Scholarship) (domain.ScholarshipID, error)
	FindByID(ctx context.Context, id domain.ScholarshipID) (*models.Scholarship, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Scholarship, error)
	Execute(ctx context.Context, id domain.ScholarshipID, validate func(*models.Scholarship) error, mutate func(*models.Scholarship)) (*models.Scholarship, error)
	HasClaimed(ctx context.Context, id domain.ScholarshipID, student domain.Principal) (bool, error)
	RecordClaim(ctx context.Context, claim *models.Claim) error
	ListClaims(ctx context.Context, id domain.ScholarshipID) ([]*models.Claim, error)
}

// Service is the scholarship escrow. Claim and Close follow
// checks-effects-interactions: all bookkeeping is written before the vault
// transfer, and both run behind the reentrancy guard.
type Service struct {
	store   Store
	roles   RoleChecker
	certs   CertificateReader
	vault   Vault
	tx      tx.Runner
	events  events.Appender
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithEvents(appender events.Appender) Option {
	return func(s *Service) {
		s.events = appender
	}
}

func New(store Store, roles RoleChecker, certs CertificateReader, vault Vault, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:  store,
		roles:  roles,
		certs:  certs,
		vault:  vault,
		tx:     runner,
		logger: slog.Default(),
		tracer: otel.Tracer("meritledger/internal/scholarship"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deposit creates a scholarship and moves FundsAttached from the caller into
// escrow in the same transaction. The SCHOLARSHIP_MANAGER gate is checked
// inside that transaction.
func (s *Service) Deposit(ctx context.Context, req models.DepositRequest) (_ *models.Scholarship, err error) {
	ctx, span := s.tracer.Start(ctx, "scholarship.Deposit")
	defer func() { endSpan(span, err) }()

	caller := requestcontext.Caller(ctx)
	now := requestcontext.Now(ctx)
	var sch *models.Scholarship
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if !s.roles.HasRole(ctx, rolemodels.RoleScholarshipManager, caller) {
			return dErrors.New(dErrors.CodeUnauthorized, "caller is missing role SCHOLARSHIP_MANAGER")
		}
		req.Normalize()
		if req.FundsAttached != req.TotalAmount {
			return dErrors.New(dErrors.CodeInsufficientFunds,
				fmt.Sprintf("attached funds %d do not match total amount %d", req.FundsAttached, req.TotalAmount))
		}
		if err := req.Validate(now); err != nil {
			return err
		}
		sch = &models.Scholarship{
			Name:          req.Name,
			Description:   req.Description,
			Creator:       caller,
			PayoutModel:   req.PayoutModel,
			TotalFunds:    req.TotalAmount,
			MaxRecipients: req.MaxRecipients,
			Deadline:      req.Deadline,
			Criteria:      req.Criteria,
			IsActive:      true,
			CreatedAt:     now,
		}

		id, err := s.store.Create(ctx, sch)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store scholarship")
		}
		sch.ID = id
		if err := s.vault.Transfer(ctx, ledger.PrincipalAccount(caller), ledger.EscrowAccount, req.FundsAttached, memo(id, "deposit")); err != nil {
			if ledger.IsInsufficientBalance(err) {
				return dErrors.Wrap(err, dErrors.CodeInsufficientFunds, "caller balance cannot cover the attached funds")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to escrow funds")
		}
		return events.Emit(ctx, s.events, events.TypeScholarshipCreated, aggregateID(id), models.ScholarshipCreated{
			ID:            id,
			Creator:       caller,
			TotalAmount:   sch.TotalFunds,
			MaxRecipients: sch.MaxRecipients,
			Deadline:      sch.Deadline,
		})
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("scholarship.id", int64(sch.ID)))
	s.logAudit(ctx, string(events.TypeScholarshipCreated),
		"scholarship_id", sch.ID,
		"creator", caller,
		"total_amount", sch.TotalFunds,
		"max_recipients", sch.MaxRecipients,
	)
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	return sch, nil
}

// Evaluate reports whether student could claim right now and why not.
func (s *Service) Evaluate(ctx context.Context, id domain.ScholarshipID, student domain.Principal) (_ models.Eligibility, err error) {
	ctx, span := s.tracer.Start(ctx, "scholarship.Evaluate", trace.WithAttributes(attribute.Int64("scholarship.id", int64(id))))
	defer func() { endSpan(span, err) }()

	sch, err := s.store.FindByID(ctx, id)
	if err != nil {
		return models.Eligibility{}, translateStoreErr(err, "failed to load scholarship")
	}
	claimed, err := s.store.HasClaimed(ctx, id, student)
	if err != nil {
		return models.Eligibility{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check claim")
	}
	var profile models.Profile
	if !claimed {
		if profile, err = s.profile(ctx, student); err != nil {
			return models.Eligibility{}, err
		}
	}
	result := models.Evaluate(sch, profile, claimed, requestcontext.Now(ctx))
	if s.metrics != nil {
		s.metrics.IncrementEvaluation(result.Eligible)
	}
	return result, nil
}

// Claim pays the caller their share of scholarship id.
func (s *Service) Claim(ctx context.Context, id domain.ScholarshipID) (_ *models.Claim, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "scholarship.Claim", trace.WithAttributes(attribute.Int64("scholarship.id", int64(id))))
	defer func() { endSpan(span, err) }()

	ctx, err = s.enter(ctx, "claim")
	if err != nil {
		return nil, err
	}
	student := requestcontext.Caller(ctx)
	if student.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "authentication required")
	}

	var claim *models.Claim
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		claimed, err := s.store.HasClaimed(ctx, id, student)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check claim")
		}
		if claimed {
			return dErrors.New(dErrors.CodeAlreadyClaimed, "scholarship already claimed by caller")
		}
		profile, err := s.profile(ctx, student)
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		var payout domain.Amount
		_, err = s.store.Execute(ctx, id,
			func(sch *models.Scholarship) error {
				result := models.Evaluate(sch, profile, false, now)
				if !result.Eligible {
					return dErrors.WithReasons(dErrors.CodeNotEligible, "caller is not eligible", result.Reasons)
				}
				amount, err := sch.Payout()
				if err != nil {
					return err
				}
				payout = amount
				return nil
			},
			func(sch *models.Scholarship) { sch.ApplyClaim(payout) },
		)
		if err != nil {
			return translateStoreErr(err, "failed to update scholarship")
		}

		claim = &models.Claim{ScholarshipID: id, Student: student, Amount: payout, ClaimedAt: now}
		if err := s.store.RecordClaim(ctx, claim); err != nil {
			if errors.Is(err, store.ErrAlreadyClaimed) {
				return dErrors.New(dErrors.CodeAlreadyClaimed, "scholarship already claimed by caller")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record claim")
		}
		if err := events.Emit(ctx, s.events, events.TypeScholarshipClaimed, aggregateID(id), models.ScholarshipClaimed{
			ID:        id,
			Student:   student,
			Amount:    payout,
			Timestamp: now,
		}); err != nil {
			return err
		}
		return s.transfer(ctx, ledger.EscrowAccount, ledger.PrincipalAccount(student), payout, memo(id, "claim"))
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(events.TypeScholarshipClaimed),
		"scholarship_id", id,
		"student", student,
		"amount", claim.Amount,
	)
	if s.metrics != nil {
		s.metrics.RecordClaim(uint64(claim.Amount), start)
	}
	return claim, nil
}

// Close deactivates scholarship id and refunds the unpaid remainder to its
// creator. Only the creator or an ADMIN may close.
func (s *Service) Close(ctx context.Context, id domain.ScholarshipID) (_ *models.Scholarship, err error) {
	ctx, span := s.tracer.Start(ctx, "scholarship.Close", trace.WithAttributes(attribute.Int64("scholarship.id", int64(id))))
	defer func() { endSpan(span, err) }()

	ctx, err = s.enter(ctx, "close")
	if err != nil {
		return nil, err
	}
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "authentication required")
	}

	var (
		closed *models.Scholarship
		refund domain.Amount
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		sch, err := s.store.Execute(ctx, id,
			func(sch *models.Scholarship) error {
				if caller != sch.Creator && !s.roles.HasRole(ctx, rolemodels.RoleAdmin, caller) {
					return dErrors.New(dErrors.CodeUnauthorized, "only the creator or an ADMIN may close a scholarship")
				}
				return sch.CanClose()
			},
			func(sch *models.Scholarship) { refund = sch.ApplyClose(now) },
		)
		if err != nil {
			return translateStoreErr(err, "failed to close scholarship")
		}
		closed = sch
		if err := events.Emit(ctx, s.events, events.TypeScholarshipClosed, aggregateID(id), models.ScholarshipClosed{
			ID:       id,
			ClosedBy: caller,
			Refunded: refund,
		}); err != nil {
			return err
		}
		if refund == 0 {
			return nil
		}
		return s.transfer(ctx, ledger.EscrowAccount, ledger.PrincipalAccount(sch.Creator), refund, memo(id, "refund"))
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(events.TypeScholarshipClosed),
		"scholarship_id", id,
		"closed_by", caller,
		"refunded", refund,
	)
	if s.metrics != nil {
		s.metrics.RecordClose(uint64(refund))
	}
	return closed, nil
}

func (s *Service) Get(ctx context.Context, id domain.ScholarshipID) (*models.Scholarship, error) {
	sch, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load scholarship")
	}
	return sch, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*models.Scholarship, error) {
	list, err := s.store.List(ctx, activeOnly)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list scholarships")
	}
	return list, nil
}

// Claims lists the paid claims of scholarship id in claim order.
func (s *Service) Claims(ctx context.Context, id domain.ScholarshipID) ([]*models.Claim, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	claims, err := s.store.ListClaims(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claims")
	}
	return claims, nil
}

func (s *Service) profile(ctx context.Context, student domain.Principal) (models.Profile, error) {
	certs, err := s.certs.CertificatesOf(ctx, student)
	if err != nil {
		return models.Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificates")
	}
	return models.BuildProfile(certs), nil
}

func (s *Service) enter(ctx context.Context, op string) (context.Context, error) {
	guarded, err := enterGuard(ctx, op)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementReentrant(op)
		}
		s.logger.WarnContext(ctx, "reentrant call rejected",
			"operation", op,
			"principal", requestcontext.Caller(ctx),
			"request_id", requestcontext.RequestID(ctx),
		)
		return ctx, err
	}
	return guarded, nil
}

func (s *Service) transfer(ctx context.Context, from, to ledger.Account, amount domain.Amount, note string) error {
	if err := s.vault.Transfer(ctx, from, to, amount, note); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementTransferFailure()
		}
		return dErrors.Wrap(err, dErrors.CodeTransferFailed, "fund transfer failed")
	}
	return nil
}

func translateStoreErr(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "scholarship not found")
	}
	if dErrors.GetCode(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func aggregateID(id domain.ScholarshipID) string {
	return "scholarship:" + id.String()
}

func memo(id domain.ScholarshipID, what string) string {
	return aggregateID(id) + " " + what
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.GetCode(err)))
	}
	span.End()
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
