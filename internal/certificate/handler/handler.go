package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"meritledger/internal/certificate/models"
	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/httputil"
	"meritledger/pkg/requestcontext"
)

// Service defines the registry operations the transport needs.
type Service interface {
	Issue(ctx context.Context, req models.IssueRequest) (*models.Certificate, error)
	Revoke(ctx context.Context, id domain.CertificateID) (*models.Certificate, error)
	Get(ctx context.Context, id domain.CertificateID) (*models.Certificate, error)
	IsIdentifierUsed(ctx context.Context, kind models.IdentifierKind, value string) (bool, error)
	ListByOwner(ctx context.Context, owner domain.Principal) ([]*models.Certificate, error)
	Verify(ctx context.Context, hash string) (*models.Certificate, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts certificate endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/certificates", func(r chi.Router) {
		r.Post("/", h.HandleIssue)
		r.Get("/verify/{hash}", h.HandleVerify)
		r.Get("/identifiers/{kind}/{value}", h.HandleIdentifierUsed)
		r.Get("/{id}", h.HandleGet)
		r.Post("/{id}/revoke", h.HandleRevoke)
	})
	r.Get("/students/{principal}/certificates", h.HandleListByOwner)
}

// IssueCertificateRequest is the wire form of models.IssueRequest.
type IssueCertificateRequest struct {
	Owner    string                `json:"owner"`
	SerialNo string                `json:"serial_no"`
	MemoNo   string                `json:"memo_no"`
	Courses  []models.CourseRecord `json:"courses"`
	Metadata models.Metadata       `json:"metadata"`

	parsed models.IssueRequest
}

func (r *IssueCertificateRequest) Validate() error {
	owner, err := domain.ParsePrincipal(r.Owner)
	if err != nil {
		return err
	}
	r.parsed = models.IssueRequest{
		Owner:    owner,
		SerialNo: r.SerialNo,
		MemoNo:   r.MemoNo,
		Courses:  r.Courses,
		Metadata: r.Metadata,
	}
	r.parsed.Normalize()
	return r.parsed.Validate()
}

type VerifyResponse struct {
	Valid       bool                `json:"valid"`
	Certificate *models.Certificate `json:"certificate"`
}

type IdentifierResponse struct {
	Kind  models.IdentifierKind `json:"kind"`
	Value string                `json:"value"`
	Used  bool                  `json:"used"`
}

type ListResponse struct {
	Owner        domain.Principal      `json:"owner"`
	Certificates []*models.Certificate `json:"certificates"`
}

func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	if !h.requireCaller(w, r) {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[IssueCertificateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	cert, err := h.service.Issue(ctx, req.parsed)
	if err != nil {
		h.logFailure(ctx, "certificate issue failed", err, "owner", req.parsed.Owner, "serial_no", req.parsed.SerialNo)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cert)
}

func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if !h.requireCaller(w, r) {
		return
	}
	id, ok := h.certificateID(w, r)
	if !ok {
		return
	}
	cert, err := h.service.Revoke(r.Context(), id)
	if err != nil {
		h.logFailure(r.Context(), "certificate revoke failed", err, "certificate_id", id)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.certificateID(w, r)
	if !ok {
		return
	}
	cert, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cert)
}

func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	cert, err := h.service.Verify(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{Valid: !cert.IsRevoked, Certificate: cert})
}

func (h *Handler) HandleIdentifierUsed(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseIdentifierKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	value := chi.URLParam(r, "value")
	used, err := h.service.IsIdentifierUsed(r.Context(), kind, value)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IdentifierResponse{Kind: kind, Value: value, Used: used})
}

func (h *Handler) HandleListByOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := domain.ParsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	certs, err := h.service.ListByOwner(r.Context(), owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if certs == nil {
		certs = []*models.Certificate{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Owner: owner, Certificates: certs})
}

func (h *Handler) certificateID(w http.ResponseWriter, r *http.Request) (domain.CertificateID, bool) {
	id, err := domain.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
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
