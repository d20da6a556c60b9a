package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"meritledger/internal/ledger"
	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	"meritledger/pkg/platform/httputil"
)

const maxEntries = 500

// Reader is the read side of a vault.
type Reader interface {
	Balance(ctx context.Context, account ledger.Account) (domain.Amount, error)
	Entries(ctx context.Context, account ledger.Account, limit int) ([]ledger.Entry, error)
}

type Handler struct {
	vault  Reader
	logger *slog.Logger
}

func New(vault Reader, logger *slog.Logger) *Handler {
	return &Handler{vault: vault, logger: logger}
}

// Register mounts account endpoints. "escrow" addresses the escrow pool.
func (h *Handler) Register(r chi.Router) {
	r.Get("/accounts/{account}", h.HandleBalance)
	r.Get("/accounts/{account}/entries", h.HandleEntries)
}

type BalanceResponse struct {
	Account ledger.Account `json:"account"`
	Balance domain.Amount  `json:"balance"`
}

func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := h.account(w, r)
	if !ok {
		return
	}
	balance, err := h.vault.Balance(r.Context(), account)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read balance"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Account: account, Balance: balance})
}

func (h *Handler) HandleEntries(w http.ResponseWriter, r *http.Request) {
	account, ok := h.account(w, r)
	if !ok {
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxEntries {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}
	entries, err := h.vault.Entries(r.Context(), account, limit)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list entries"))
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"account": account, "entries": entries})
}

func (h *Handler) account(w http.ResponseWriter, r *http.Request) (ledger.Account, bool) {
	raw := chi.URLParam(r, "account")
	if raw == "escrow" {
		return ledger.EscrowAccount, true
	}
	p, err := domain.ParsePrincipal(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return ledger.PrincipalAccount(p), true
}
