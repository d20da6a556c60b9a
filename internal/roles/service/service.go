package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"meritledger/internal/roles/models"
	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/events"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/requestcontext"
)

// Store is the membership persistence port.
type Store interface {
	IsMember(ctx context.Context, role models.Role, principal domain.Principal) (bool, error)
	AddMember(ctx context.Context, m *models.Membership) (bool, error)
	RemoveMember(ctx context.Context, role models.Role, principal domain.Principal) (bool, error)
	ListMembers(ctx context.Context, role models.Role) ([]*models.Membership, error)
	CountMembers(ctx context.Context, role models.Role) (int, error)
	AdminRoleOf(ctx context.Context, role models.Role) (models.Role, bool, error)
	SetAdminRole(ctx context.Context, role, admin models.Role) error
}

// Service is the role registry. Every mutation runs in one transaction and
// appends its event to the outbox inside it.
type Service struct {
	store  Store
	tx     tx.Runner
	events events.Appender
	logger *slog.Logger
	tracer trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithEvents(appender events.Appender) Option {
	return func(s *Service) {
		s.events = appender
	}
}

func New(store Store, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     runner,
		logger: slog.Default(),
		tracer: otel.Tracer("meritledger/internal/roles"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize grants DefaultAdmin to admin. It succeeds only while no
// DefaultAdmin exists.
func (s *Service) Initialize(ctx context.Context, admin domain.Principal) (err error) {
	ctx, span := s.tracer.Start(ctx, "roles.Initialize")
	defer func() { endSpan(span, err) }()

	if admin.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "admin principal is required")
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		n, err := s.store.CountMembers(ctx, models.RoleDefaultAdmin)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count admins")
		}
		if n > 0 {
			return dErrors.New(dErrors.CodeConflict, "role registry is already initialized")
		}
		return s.add(ctx, models.RoleDefaultAdmin, admin, admin)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, string(events.TypeRoleGranted),
		"role", models.RoleDefaultAdmin,
		"principal", admin,
		"bootstrap", true,
	)
	return nil
}

// HasRole never fails; a store error is logged and treated as "no".
func (s *Service) HasRole(ctx context.Context, role models.Role, principal domain.Principal) bool {
	if principal.IsZero() || !role.IsValid() {
		return false
	}
	ok, err := s.store.IsMember(ctx, role, principal)
	if err != nil {
		s.logger.ErrorContext(ctx, "role lookup failed",
			"role", role,
			"principal", principal,
			"error", err,
		)
		return false
	}
	return ok
}

// AdminRole returns the role whose holders may grant and revoke role.
func (s *Service) AdminRole(ctx context.Context, role models.Role) (models.Role, error) {
	if !role.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	admin, ok, err := s.store.AdminRoleOf(ctx, role)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admin role")
	}
	if !ok {
		return models.RoleDefaultAdmin, nil
	}
	return admin, nil
}

// Grant adds principal to role. Granting a held role is a no-op success and
// emits nothing.
func (s *Service) Grant(ctx context.Context, role models.Role, principal domain.Principal) (err error) {
	ctx, span := s.tracer.Start(ctx, "roles.Grant", roleAttributes(role))
	defer func() { endSpan(span, err) }()

	caller := requestcontext.Caller(ctx)
	if err := validateTarget(role, principal); err != nil {
		return err
	}
	granted := false
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireAdminOf(ctx, role, caller); err != nil {
			return err
		}
		held, err := s.store.IsMember(ctx, role, principal)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
		}
		if held {
			return nil
		}
		granted = true
		return s.add(ctx, role, principal, caller)
	})
	if err != nil {
		return err
	}
	if granted {
		s.logAudit(ctx, string(events.TypeRoleGranted), "role", role, "principal", principal, "granted_by", caller)
	}
	return nil
}

// Revoke removes principal from role. Revoking an unheld role is a no-op.
func (s *Service) Revoke(ctx context.Context, role models.Role, principal domain.Principal) (err error) {
	ctx, span := s.tracer.Start(ctx, "roles.Revoke", roleAttributes(role))
	defer func() { endSpan(span, err) }()

	caller := requestcontext.Caller(ctx)
	if err := validateTarget(role, principal); err != nil {
		return err
	}
	return s.remove(ctx, role, principal, caller, func(ctx context.Context) error {
		return s.requireAdminOf(ctx, role, caller)
	})
}

// Renounce drops the caller's own membership of role.
func (s *Service) Renounce(ctx context.Context, role models.Role) (err error) {
	ctx, span := s.tracer.Start(ctx, "roles.Renounce", roleAttributes(role))
	defer func() { endSpan(span, err) }()

	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthenticated, "caller is required")
	}
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	return s.remove(ctx, role, caller, caller, nil)
}

// SetRoleAdmin re-designates which role administers role. DefaultAdmin only;
// DefaultAdmin's own admin cannot be changed.
func (s *Service) SetRoleAdmin(ctx context.Context, role, adminRole models.Role) (err error) {
	ctx, span := s.tracer.Start(ctx, "roles.SetRoleAdmin", roleAttributes(role))
	defer func() { endSpan(span, err) }()

	caller := requestcontext.Caller(ctx)
	if !role.IsValid() || !adminRole.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	if role == models.RoleDefaultAdmin {
		return dErrors.New(dErrors.CodeInvalidInput, "the default admin role administers itself")
	}
	var previous models.Role
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if !s.HasRole(ctx, models.RoleDefaultAdmin, caller) {
			return dErrors.New(dErrors.CodeUnauthorized, "caller is missing role DEFAULT_ADMIN")
		}
		var err error
		previous, err = s.AdminRole(ctx, role)
		if err != nil {
			return err
		}
		if err := s.store.SetAdminRole(ctx, role, adminRole); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set admin role")
		}
		return events.Emit(ctx, s.events, events.TypeRoleAdminChanged, aggregateID(role), models.RoleAdminChanged{
			Role: role, PreviousAdmin: previous, NewAdmin: adminRole, ChangedBy: caller,
		})
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, string(events.TypeRoleAdminChanged), "role", role, "previous_admin", previous, "new_admin", adminRole, "changed_by", caller)
	return nil
}

// Members lists holders of role ordered by principal.
func (s *Service) Members(ctx context.Context, role models.Role) ([]*models.Membership, error) {
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	members, err := s.store.ListMembers(ctx, role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list members")
	}
	return members, nil
}

func (s *Service) remove(ctx context.Context, role models.Role, principal, by domain.Principal, authorize func(context.Context) error) error {
	revoked := false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if authorize != nil {
			if err := authorize(ctx); err != nil {
				return err
			}
		}
		if role == models.RoleDefaultAdmin {
			if err := s.ensureNotLastAdmin(ctx, principal); err != nil {
				return err
			}
		}
		removed, err := s.store.RemoveMember(ctx, role, principal)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke role")
		}
		if !removed {
			return nil
		}
		revoked = true
		return events.Emit(ctx, s.events, events.TypeRoleRevoked, aggregateID(role), models.RoleRevoked{
			Role: role, Principal: principal, RevokedBy: by,
		})
	})
	if err != nil {
		return err
	}
	if revoked {
		s.logAudit(ctx, string(events.TypeRoleRevoked), "role", role, "principal", principal, "revoked_by", by)
	}
	return nil
}

func (s *Service) add(ctx context.Context, role models.Role, principal, by domain.Principal) error {
	added, err := s.store.AddMember(ctx, &models.Membership{
		Role:      role,
		Principal: principal,
		GrantedBy: by,
		GrantedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant role")
	}
	if !added {
		return nil
	}
	return events.Emit(ctx, s.events, events.TypeRoleGranted, aggregateID(role), models.RoleGranted{
		Role: role, Principal: principal, GrantedBy: by,
	})
}

func (s *Service) ensureNotLastAdmin(ctx context.Context, principal domain.Principal) error {
	held, err := s.store.IsMember(ctx, models.RoleDefaultAdmin, principal)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check membership")
	}
	if !held {
		return nil
	}
	n, err := s.store.CountMembers(ctx, models.RoleDefaultAdmin)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to count admins")
	}
	if n <= 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot remove the last DEFAULT_ADMIN")
	}
	return nil
}

func (s *Service) requireAdminOf(ctx context.Context, role models.Role, caller domain.Principal) error {
	admin, err := s.AdminRole(ctx, role)
	if err != nil {
		return err
	}
	if !s.HasRole(ctx, admin, caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is missing role "+admin.String())
	}
	return nil
}

func validateTarget(role models.Role, principal domain.Principal) error {
	if !role.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	if principal.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	return nil
}

func roleAttributes(role models.Role) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("role", role.String()))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.GetCode(err)))
	}
	span.End()
}

func aggregateID(role models.Role) string {
	return "role:" + role.String()
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
