package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meritledger/internal/roles/models"
	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/httputil"
	"meritledger/pkg/requestcontext"
)

// Service defines the role registry operations the transport needs.
type Service interface {
	HasRole(ctx context.Context, role models.Role, principal domain.Principal) bool
	AdminRole(ctx context.Context, role models.Role) (models.Role, error)
	Grant(ctx context.Context, role models.Role, principal domain.Principal) error
	Revoke(ctx context.Context, role models.Role, principal domain.Principal) error
	Renounce(ctx context.Context, role models.Role) error
	SetRoleAdmin(ctx context.Context, role, adminRole models.Role) error
	Members(ctx context.Context, role models.Role) ([]*models.Membership, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts role endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/roles/{role}", func(r chi.Router) {
		r.Get("/members", h.HandleMembers)
		r.Get("/members/{principal}", h.HandleHasRole)
		r.Put("/members/{principal}", h.HandleGrant)
		r.Delete("/members/{principal}", h.HandleRevoke)
		r.Post("/renounce", h.HandleRenounce)
		r.Get("/admin", h.HandleGetAdmin)
		r.Put("/admin", h.HandleSetAdmin)
	})
}

type MembershipResponse struct {
	Role    models.Role      `json:"role"`
	Member  domain.Principal `json:"principal"`
	HasRole bool             `json:"has_role"`
}

type AdminRoleResponse struct {
	Role      models.Role `json:"role"`
	AdminRole models.Role `json:"admin_role"`
}

type SetAdminRequest struct {
	AdminRole string `json:"admin_role"`

	parsed models.Role
}

func (r *SetAdminRequest) Validate() error {
	role, err := models.ParseRole(r.AdminRole)
	if err != nil {
		return err
	}
	r.parsed = role
	return nil
}

func (h *Handler) HandleMembers(w http.ResponseWriter, r *http.Request) {
	role, ok := h.role(w, r)
	if !ok {
		return
	}
	members, err := h.service.Members(r.Context(), role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"role": role, "members": members})
}

func (h *Handler) HandleHasRole(w http.ResponseWriter, r *http.Request) {
	role, principal, ok := h.roleAndPrincipal(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MembershipResponse{
		Role:    role,
		Member:  principal,
		HasRole: h.service.HasRole(r.Context(), role, principal),
	})
}

func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	if !h.requireCaller(w, r) {
		return
	}
	role, principal, ok := h.roleAndPrincipal(w, r)
	if !ok {
		return
	}
	if err := h.service.Grant(r.Context(), role, principal); err != nil {
		h.logFailure(r.Context(), "role grant failed", err, "role", role, "principal", principal)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MembershipResponse{Role: role, Member: principal, HasRole: true})
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if !h.requireCaller(w, r) {
		return
	}
	role, principal, ok := h.roleAndPrincipal(w, r)
	if !ok {
		return
	}
	if err := h.service.Revoke(r.Context(), role, principal); err != nil {
		h.logFailure(r.Context(), "role revoke failed", err, "role", role, "principal", principal)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MembershipResponse{Role: role, Member: principal, HasRole: false})
}

func (h *Handler) HandleRenounce(w http.ResponseWriter, r *http.Request) {
	if !h.requireCaller(w, r) {
		return
	}
	role, ok := h.role(w, r)
	if !ok {
		return
	}
	caller := requestcontext.Caller(r.Context())
	if err := h.service.Renounce(r.Context(), role); err != nil {
		h.logFailure(r.Context(), "role renounce failed", err, "role", role, "principal", caller)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MembershipResponse{Role: role, Member: caller, HasRole: false})
}

func (h *Handler) HandleGetAdmin(w http.ResponseWriter, r *http.Request) {
	role, ok := h.role(w, r)
	if !ok {
		return
	}
	admin, err := h.service.AdminRole(r.Context(), role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AdminRoleResponse{Role: role, AdminRole: admin})
}

func (h *Handler) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	if !h.requireCaller(w, r) {
		return
	}
	role, ok := h.role(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[SetAdminRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := h.service.SetRoleAdmin(ctx, role, req.parsed); err != nil {
		h.logFailure(ctx, "set role admin failed", err, "role", role)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AdminRoleResponse{Role: role, AdminRole: req.parsed})
}

func (h *Handler) role(w http.ResponseWriter, r *http.Request) (models.Role, bool) {
	role, err := models.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return role, true
}

func (h *Handler) roleAndPrincipal(w http.ResponseWriter, r *http.Request) (models.Role, domain.Principal, bool) {
	role, ok := h.role(w, r)
	if !ok {
		return "", "", false
	}
	principal, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", "", false
	}
	return role, principal, true
}

func (h *Handler) requireCaller(w http.ResponseWriter, r *http.Request) bool {
	if requestcontext.Caller(r.Context()).IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
		return false
	}
	return true
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, "request_id", requestcontext.RequestID(ctx), "error", err)
	h.logger.WarnContext(ctx, msg, attrs...)
}
