package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"meritledger/internal/certificate/metrics"
	"meritledger/internal/certificate/models"
	"meritledger/internal/certificate/store"
	rolemodels "meritledger/internal/roles/models"
	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/events"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/requestcontext"
)

// Store is the registry persistence port. Error contract:
//   - ErrNotFound (sentinel) when the certificate does not exist
//   - *store.DuplicateIdentifierError when Create hits a used identifier
//   - wrapped infrastructure errors otherwise
type Store interface {
	Create(ctx context.Context, cert *models.Certificate) (domain.CertificateID, error)
	FindByID(ctx context.Context, id domain.CertificateID) (*models.Certificate, error)
	FindByIdentifier(ctx context.Context, kind models.IdentifierKind, value string) (*models.Certificate, error)
	IsIdentifierUsed(ctx context.Context, kind models.IdentifierKind, value string) (bool, error)
	ListByOwner(ctx context.Context, owner domain.Principal) ([]*models.Certificate, error)
	Execute(ctx context.Context, id domain.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error)
}

// RoleChecker answers role membership questions.
type RoleChecker interface {
	HasRole(ctx context.Context, role rolemodels.Role, principal domain.Principal) bool
}

// Service is the certificate registry.
type Service struct {
	store   Store
	roles   RoleChecker
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

func New(store Store, roles RoleChecker, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:  store,
		roles:  roles,
		tx:     runner,
		logger: slog.Default(),
		tracer: otel.Tracer("meritledger/internal/certificate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a certificate for req.Owner. The caller must hold MINTER.
// The role gate, the identifier check and the insert happen in one
// transaction together with the issuance event.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (_ *models.Certificate, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "certificate.Issue")
	defer func() { endSpan(span, err) }()

	caller := requestcontext.Caller(ctx)
	now := requestcontext.Now(ctx)
	var cert *models.Certificate
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if !s.roles.HasRole(ctx, rolemodels.RoleMinter, caller) {
			return dErrors.New(dErrors.CodeUnauthorized, "caller is missing role MINTER")
		}
		req.Normalize()
		if err := req.Validate(); err != nil {
			return err
		}
		aggregate, err := models.ComputeAggregate(req.Courses)
		if err != nil {
			return err
		}
		cert = &models.Certificate{
			Owner:       req.Owner,
			SerialNo:    req.SerialNo,
			MemoNo:      req.MemoNo,
			ContentHash: models.ContentHash(req.Owner, req.SerialNo, req.MemoNo, req.Metadata, req.Courses),
			Metadata:    req.Metadata,
			Courses:     req.Courses,
			Aggregate:   aggregate,
			Issuer:      caller,
			IssuedAt:    now,
		}

		id, err := s.store.Create(ctx, cert)
		if err != nil {
			var dup *store.DuplicateIdentifierError
			if errors.As(err, &dup) {
				s.incrementDuplicate(string(dup.Kind))
				return dErrors.New(dErrors.CodeDuplicateIdentifier, identifierField(dup.Kind)+" already used")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate")
		}
		cert.ID = id
		return events.Emit(ctx, s.events, events.TypeCertificateIssued, aggregateID(id), models.CertificateIssued{
			ID:          id,
			Owner:       cert.Owner,
			SerialNo:    cert.SerialNo,
			MemoNo:      cert.MemoNo,
			ContentHash: cert.ContentHash,
			Issuer:      caller,
			Timestamp:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("certificate.id", int64(cert.ID)))
	s.logAudit(ctx, string(events.TypeCertificateIssued),
		"certificate_id", cert.ID,
		"owner", cert.Owner,
		"issuer", caller,
	)
	if s.metrics != nil {
		s.metrics.IncrementIssued()
		s.metrics.ObserveIssue(start)
	}
	return cert, nil
}

// Revoke marks a certificate revoked. The caller must hold ADMIN. A second
// revocation fails with AlreadyRevoked.
func (s *Service) Revoke(ctx context.Context, id domain.CertificateID) (_ *models.Certificate, err error) {
	ctx, span := s.tracer.Start(ctx, "certificate.Revoke", trace.WithAttributes(attribute.Int64("certificate.id", int64(id))))
	defer func() { endSpan(span, err) }()

	caller := requestcontext.Caller(ctx)
	var revoked *models.Certificate
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if !s.roles.HasRole(ctx, rolemodels.RoleAdmin, caller) {
			return dErrors.New(dErrors.CodeUnauthorized, "caller is missing role ADMIN")
		}
		now := requestcontext.Now(ctx)
		cert, err := s.store.Execute(ctx, id,
			func(c *models.Certificate) error { return c.CanRevoke() },
			func(c *models.Certificate) { c.ApplyRevocation(caller, now) },
		)
		if err != nil {
			return translateStoreErr(err, "failed to revoke certificate")
		}
		revoked = cert
		return events.Emit(ctx, s.events, events.TypeCertificateRevoked, aggregateID(id), models.CertificateRevoked{
			ID:        id,
			Owner:     cert.Owner,
			RevokedBy: caller,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, string(events.TypeCertificateRevoked),
		"certificate_id", id,
		"owner", revoked.Owner,
		"revoked_by", caller,
	)
	if s.metrics != nil {
		s.metrics.IncrementRevoked()
	}
	return revoked, nil
}

func (s *Service) Get(ctx context.Context, id domain.CertificateID) (*models.Certificate, error) {
	cert, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load certificate")
	}
	return cert, nil
}

// IsIdentifierUsed reports whether value was ever claimed in kind's namespace,
// revoked certificates included.
func (s *Service) IsIdentifierUsed(ctx context.Context, kind models.IdentifierKind, value string) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return false, dErrors.New(dErrors.CodeInvalidInput, "identifier value is required")
	}
	used, err := s.store.IsIdentifierUsed(ctx, kind, value)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check identifier")
	}
	return used, nil
}

// ListByOwner returns the owner's certificates in issuance order.
func (s *Service) ListByOwner(ctx context.Context, owner domain.Principal) ([]*models.Certificate, error) {
	certs, err := s.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return certs, nil
}

// Verify resolves a content hash to its certificate. Callers check IsRevoked.
func (s *Service) Verify(ctx context.Context, hash string) (*models.Certificate, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !strings.HasPrefix(hash, "0x") || len(hash) != 66 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "content hash must be 0x-prefixed keccak-256 hex")
	}
	cert, err := s.store.FindByIdentifier(ctx, models.IdentifierHash, hash)
	if err != nil {
		s.incrementVerify("unknown")
		return nil, translateStoreErr(err, "failed to verify certificate")
	}
	if cert.IsRevoked {
		s.incrementVerify("revoked")
	} else {
		s.incrementVerify("valid")
	}
	return cert, nil
}

func translateStoreErr(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "certificate not found")
	}
	if dErrors.GetCode(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func identifierField(kind models.IdentifierKind) string {
	switch kind {
	case models.IdentifierSerial:
		return "serial_no"
	case models.IdentifierMemo:
		return "memo_no"
	default:
		return "content_hash"
	}
}

func aggregateID(id domain.CertificateID) string {
	return "certificate:" + id.String()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.GetCode(err)))
	}
	span.End()
}

func (s *Service) incrementDuplicate(kind string) {
	if s.metrics != nil {
		s.metrics.IncrementDuplicate(kind)
	}
}

func (s *Service) incrementVerify(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementVerify(outcome)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
