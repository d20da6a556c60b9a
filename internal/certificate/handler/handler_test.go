package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meritledger/internal/certificate/models"
	"meritledger/internal/certificate/service"
	"meritledger/internal/certificate/store"
	rolemodels "meritledger/internal/roles/models"
	roleservice "meritledger/internal/roles/service"
	rolestore "meritledger/internal/roles/store"
	"meritledger/pkg/domain"
	"meritledger/pkg/platform/httputil"
	"meritledger/pkg/platform/tx"
	"meritledger/pkg/requestcontext"
)

const (
	rootAddr    = "0x00000000000000000000000000000000000000a0"
	minterAddr  = "0x00000000000000000000000000000000000000a1"
	studentAddr = "0x00000000000000000000000000000000000000c0"
)

func withCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.Header.Get("X-Test-Caller"); p != "" {
			r = r.WithContext(requestcontext.WithCaller(r.Context(), domain.MustPrincipal(p)))
		}
		next.ServeHTTP(w, r)
	})
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	runner := tx.NewInMemory()
	roles := roleservice.New(rolestore.NewInMemoryStore(), runner)
	ctx := requestcontext.WithCaller(context.Background(), domain.MustPrincipal(rootAddr))
	require.NoError(t, roles.Initialize(ctx, domain.MustPrincipal(rootAddr)))
	require.NoError(t, roles.Grant(ctx, rolemodels.RoleMinter, domain.MustPrincipal(minterAddr)))
	require.NoError(t, roles.Grant(ctx, rolemodels.RoleAdmin, domain.MustPrincipal(rootAddr)))

	svc := service.New(store.NewInMemoryStore(), roles, runner)
	r := chi.NewRouter()
	r.Use(withCaller)
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func do(router http.Handler, method, path, caller string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set("X-Test-Caller", caller)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func issueBody(serial string) map[string]any {
	return map[string]any{
		"owner":     studentAddr,
		"serial_no": serial,
		"memo_no":   "memo-" + serial,
		"courses": []map[string]any{
			{"code": "CSE101", "title": "Programming", "grade_letter": "A+", "grade_points": 1000, "status": "PASS", "credits_obtained": 4},
			{"code": "MAT201", "title": "Calculus", "grade_letter": "B", "grade_points": 700, "status": "PASS", "credits_obtained": 2},
		},
		"metadata": map[string]any{
			"student_name":    "Ada Lovelace",
			"registration_no": "REG-1",
			"institution":     "State University",
			"department":      "CSE",
		},
	}
}

func TestIssueAndRead(t *testing.T) {
	router := newRouter(t)

	rec := do(router, http.MethodPost, "/certificates", minterAddr, issueBody("S1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cert models.Certificate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cert))
	assert.Equal(t, uint64(900), cert.Aggregate.SGPA)

	rec = do(router, http.MethodGet, "/certificates/"+cert.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodGet, "/certificates/verify/"+cert.ContentHash, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verify VerifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&verify))
	assert.True(t, verify.Valid)

	rec = do(router, http.MethodGet, "/certificates/identifiers/serial/S1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ident IdentifierResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ident))
	assert.True(t, ident.Used)

	rec = do(router, http.MethodGet, "/students/"+studentAddr+"/certificates", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list.Certificates, 1)
}

func TestIssueErrors(t *testing.T) {
	router := newRouter(t)

	t.Run("anonymous caller", func(t *testing.T) {
		rec := do(router, http.MethodPost, "/certificates", "", issueBody("S1"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("caller without minter role", func(t *testing.T) {
		rec := do(router, http.MethodPost, "/certificates", studentAddr, issueBody("S1"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("duplicate serial", func(t *testing.T) {
		rec := do(router, http.MethodPost, "/certificates", minterAddr, issueBody("S1"))
		require.Equal(t, http.StatusCreated, rec.Code)
		rec = do(router, http.MethodPost, "/certificates", minterAddr, issueBody("S1"))
		assert.Equal(t, http.StatusConflict, rec.Code)
		var resp httputil.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "duplicate_identifier", resp.Error)
	})

	t.Run("unknown field", func(t *testing.T) {
		body := issueBody("S2")
		body["extra"] = true
		rec := do(router, http.MethodPost, "/certificates", minterAddr, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRevokeFlow(t *testing.T) {
	router := newRouter(t)
	rec := do(router, http.MethodPost, "/certificates", minterAddr, issueBody("S1"))
	require.Equal(t, http.StatusCreated, rec.Code)
	var cert models.Certificate
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cert))

	rec = do(router, http.MethodPost, "/certificates/"+cert.ID.String()+"/revoke", rootAddr, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(router, http.MethodPost, "/certificates/"+cert.ID.String()+"/revoke", rootAddr, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(router, http.MethodGet, "/certificates/verify/"+cert.ContentHash, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verify VerifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&verify))
	assert.False(t, verify.Valid)

	rec = do(router, http.MethodGet, "/certificates/0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
