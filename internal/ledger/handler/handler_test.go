package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meritledger/internal/ledger"
	"meritledger/pkg/domain"
	"meritledger/pkg/testutil"
)

const aliceAddr = "0x00000000000000000000000000000000000000a1"

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	vault := ledger.NewInMemoryVault()
	alice := ledger.PrincipalAccount(domain.MustPrincipal(aliceAddr))
	ctx := context.Background()
	require.NoError(t, vault.Credit(ctx, alice, 100, "seed"))
	require.NoError(t, vault.Transfer(ctx, alice, ledger.EscrowAccount, 40, "scholarship:1 deposit"))

	r := chi.NewRouter()
	New(vault, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestBalance(t *testing.T) {
	router := newRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/accounts/"+aliceAddr, nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[BalanceResponse](t, rr)
	assert.Equal(t, domain.Amount(60), resp.Balance)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/accounts/escrow", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp = testutil.UnmarshalResponse[BalanceResponse](t, rr)
	assert.Equal(t, ledger.EscrowAccount, resp.Account)
	assert.Equal(t, domain.Amount(40), resp.Balance)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/accounts/bob", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}

func TestEntries(t *testing.T) {
	router := newRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/accounts/"+aliceAddr+"/entries?limit=1", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[struct {
		Entries []ledger.Entry `json:"entries"`
	}](t, rr)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "scholarship:1 deposit", resp.Entries[0].Memo)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/accounts/escrow/entries?limit=501", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}
