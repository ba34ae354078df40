package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ledger-service/internal/access"
	"ledger-service/internal/domain"
	"ledger-service/internal/middleware"
	"ledger-service/internal/repository/memory"
	"ledger-service/internal/response"
	"ledger-service/internal/usecase/ledger"
)

var (
	partyA = domain.Party{ID: "user-a", Handle: "9000000001"}
	partyB = domain.Party{ID: "user-b", Handle: "9000000002"}
)

type noopBroadcaster struct{}

func (noopBroadcaster) Publish(string, *domain.LedgerView) {}

type restFixture struct {
	router   chi.Router
	ledgerID string
}

// asUser injects the authenticated identity the way RequireAuth does,
// without minting tokens.
func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.ContextUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRestFixture(t *testing.T, userID string) *restFixture {
	t.Helper()
	store := memory.NewStore()
	directory := memory.NewDirectory()
	directory.Add(domain.PartyProfile{ID: partyA.ID, Name: "Asha Verma", Handle: partyA.Handle})
	directory.Add(domain.PartyProfile{ID: partyB.ID, Name: "Ravi Kumar", Handle: partyB.Handle})

	logger := zap.NewNop()
	svc := ledger.NewService(store, access.NewGuard(store, logger), directory, noopBroadcaster{}, nil, logger)
	h := NewLedgerHandler(svc, logger)

	l, err := store.GetOrCreate(context.Background(), partyA, partyB)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(asUser(userID))
	r.Get("/ledger", h.ListLedgers)
	r.Post("/ledger/open", h.OpenLedger)
	r.Get("/ledger/{id}", h.GetLedger)
	r.Post("/ledger/{id}/pay", h.RecordPaid)
	r.Post("/ledger/{id}/receive", h.RecordReceived)

	return &restFixture{router: r, ledgerID: l.ID}
}

func doRequest(t *testing.T, router chi.Router, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) response.APIResponse {
	t.Helper()
	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestOpenLedger_HTTP(t *testing.T) {
	f := newRestFixture(t, partyA.ID)

	rec := doRequest(t, f.router, http.MethodPost, "/ledger/open", `{"friend_id":"user-b"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Data struct {
			Ledger domain.LedgerView `json:"ledger"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, f.ledgerID, result.Data.Ledger.LedgerID, "the existing pair ledger is reused")

	rec = doRequest(t, f.router, http.MethodPost, "/ledger/open", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, f.router, http.MethodPost, "/ledger/open", `{"friend_id":"unregistered"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordPaid_HTTP(t *testing.T) {
	f := newRestFixture(t, partyA.ID)

	rec := doRequest(t, f.router, http.MethodPost, "/ledger/"+f.ledgerID+"/pay",
		`{"amount":"100","memo":"dinner"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Data domain.RecordResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Data.Balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, domain.KindPaid, result.Data.Transaction.Kind)
	assert.Equal(t, "dinner", result.Data.Transaction.Memo)
}

func TestRecordReceived_HTTP(t *testing.T) {
	f := newRestFixture(t, partyB.ID)

	rec := doRequest(t, f.router, http.MethodPost, "/ledger/"+f.ledgerID+"/receive",
		`{"amount":"40"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		Data domain.RecordResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Data.Balance.IsZero())
	assert.Equal(t, domain.KindReceived, result.Data.Transaction.Kind)
}

func TestRecord_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		target   func(f *restFixture) string
		body     string
		wantCode int
	}{
		{"invalid amount", partyA.ID, func(f *restFixture) string { return "/ledger/" + f.ledgerID + "/pay" },
			`{"amount":"0"}`, http.StatusBadRequest},
		{"malformed body", partyA.ID, func(f *restFixture) string { return "/ledger/" + f.ledgerID + "/pay" },
			`{`, http.StatusBadRequest},
		{"not a party", "stranger", func(f *restFixture) string { return "/ledger/" + f.ledgerID + "/pay" },
			`{"amount":"10"}`, http.StatusForbidden},
		{"unknown ledger", partyA.ID, func(f *restFixture) string { return "/ledger/missing/pay" },
			`{"amount":"10"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRestFixture(t, tt.user)
			rec := doRequest(t, f.router, http.MethodPost, tt.target(f), tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, "error", decodeBody(t, rec).Status)
		})
	}
}

func TestGetLedger_HTTP(t *testing.T) {
	f := newRestFixture(t, partyA.ID)

	rec := doRequest(t, f.router, http.MethodPost, "/ledger/"+f.ledgerID+"/pay", `{"amount":"10"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, f.router, http.MethodGet, "/ledger/"+f.ledgerID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Data struct {
			Ledger domain.LedgerView `json:"ledger"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, f.ledgerID, result.Data.Ledger.LedgerID)
	assert.Equal(t, "Ravi Kumar", result.Data.Ledger.Friend.Name)
	require.Len(t, result.Data.Ledger.Transactions, 1)
}

func TestGetLedger_NotFound(t *testing.T) {
	f := newRestFixture(t, partyA.ID)
	rec := doRequest(t, f.router, http.MethodGet, "/ledger/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListLedgers_HTTP(t *testing.T) {
	f := newRestFixture(t, partyA.ID)

	rec := doRequest(t, f.router, http.MethodGet, "/ledger", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Data struct {
			Ledgers []domain.LedgerSummary `json:"ledgers"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Data.Ledgers, 1)
	assert.Equal(t, f.ledgerID, result.Data.Ledgers[0].LedgerID)
}

func TestUnauthenticatedRequest(t *testing.T) {
	f := newRestFixture(t, "")
	rec := doRequest(t, f.router, http.MethodGet, "/ledger", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
