package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"meritledger/internal/scholarship/models"
	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/httputil"
	"meritledger/pkg/requestcontext"
)

// Service defines the escrow operations the transport needs.
type Service interface {
	Deposit(ctx context.Context, req models.DepositRequest) (*models.Scholarship, error)
	Evaluate(ctx context.Context, id domain.ScholarshipID, student domain.Principal) (models.Eligibility, error)
	Claim(ctx context.Context, id domain.ScholarshipID) (*models.Claim, error)
	Close(ctx context.Context, id domain.ScholarshipID) (*models.Scholarship, error)
	Get(ctx context.Context, id domain.ScholarshipID) (*models.Scholarship, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Scholarship, error)
	Claims(ctx context.Context, id domain.ScholarshipID) ([]*models.Claim, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts scholarship endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/scholarships", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleDeposit)
		r.Get("/{id}", h.HandleGet)
		r.Get("/{id}/eligibility/{student}", h.HandleEvaluate)
		r.Post("/{id}/claim", h.HandleClaim)
		r.Post("/{id}/close", h.HandleClose)
		r.Get("/{id}/claims", h.HandleClaims)
	})
}

// DepositScholarshipRequest is the wire form of models.DepositRequest.
type DepositScholarshipRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	TotalAmount   domain.Amount   `json:"total_amount"`
	MaxRecipients uint64          `json:"max_recipients"`
	Deadline      time.Time       `json:"deadline"`
	Criteria      models.Criteria `json:"criteria"`
	PayoutModel   string          `json:"payout_model"`
	FundsAttached domain.Amount   `json:"funds_attached"`

	parsed models.DepositRequest
}

func (r *DepositScholarshipRequest) Validate() error {
	model, err := models.ParsePayoutModel(r.PayoutModel)
	if err != nil {
		return err
	}
	if r.Deadline.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "deadline is required")
	}
	r.parsed = models.DepositRequest{
		Name:          r.Name,
		Description:   r.Description,
		TotalAmount:   r.TotalAmount,
		MaxRecipients: r.MaxRecipients,
		Deadline:      r.Deadline,
		Criteria:      r.Criteria,
		PayoutModel:   model,
		FundsAttached: r.FundsAttached,
	}
	return nil
}

type EligibilityResponse struct {
	ScholarshipID domain.ScholarshipID `json:"scholarship_id"`
	Student       domain.Principal     `json:"student"`
	models.Eligibility
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	list, err := h.service.List(r.Context(), activeOnly)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if list == nil {
		list = []*models.Scholarship{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"scholarships": list})
}

func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	if !h.requireCaller(w, r) {
		return
	}
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DepositScholarshipRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	sch, err := h.service.Deposit(ctx, req.parsed)
	if err != nil {
		h.logFailure(ctx, "scholarship deposit failed", err, "name", req.parsed.Name)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sch)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scholarshipID(w, r)
	if !ok {
		return
	}
	sch, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sch)
}

func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scholarshipID(w, r)
	if !ok {
		return
	}
	student, err := domain.ParsePrincipal(chi.URLParam(r, "student"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.service.Evaluate(r.Context(), id, student)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EligibilityResponse{ScholarshipID: id, Student: student, Eligibility: result})
}

func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	if !h.requireCaller(w, r) {
		return
	}
	id, ok := h.scholarshipID(w, r)
	if !ok {
		return
	}
	claim, err := h.service.Claim(r.Context(), id)
	if err != nil {
		h.logFailure(r.Context(), "scholarship claim failed", err,
			"scholarship_id", id,
			"student", requestcontext.Caller(r.Context()),
			"reasons", dErrors.Reasons(err),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	if !h.requireCaller(w, r) {
		return
	}
	id, ok := h.scholarshipID(w, r)
	if !ok {
		return
	}
	sch, err := h.service.Close(r.Context(), id)
	if err != nil {
		h.logFailure(r.Context(), "scholarship close failed", err, "scholarship_id", id)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sch)
}

func (h *Handler) HandleClaims(w http.ResponseWriter, r *http.Request) {
	id, ok := h.scholarshipID(w, r)
	if !ok {
		return
	}
	claims, err := h.service.Claims(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if claims == nil {
		claims = []*models.Claim{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"scholarship_id": id, "claims": claims})
}

func (h *Handler) scholarshipID(w http.ResponseWriter, r *http.Request) (domain.ScholarshipID, bool) {
	id, err := domain.ParseScholarshipID(chi.URLParam(r, "id"))
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
