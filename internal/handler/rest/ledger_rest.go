package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger-service/internal/domain"
	"ledger-service/internal/middleware"
	"ledger-service/internal/response"
	"ledger-service/internal/usecase/ledger"
)

type LedgerHandler struct {
	svc    *ledger.Service
	logger *zap.Logger
}

func NewLedgerHandler(svc *ledger.Service, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		svc:    svc,
		logger: logger,
	}
}

type recordRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Memo   string          `json:"memo"`
}

type recordFn func(ctx context.Context, ledgerID, requesterID string, amount decimal.Decimal, memo string) (*domain.RecordResult, error)

type openRequest struct {
	FriendID string `json:"friend_id"`
}

// OpenLedger resolves (creating on first contact) the shared ledger between
// the requester and a friend.
// POST /ledger/open
func (h *LedgerHandler) OpenLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FriendID == "" {
		response.Error(w, http.StatusBadRequest, "friend_id is required")
		return
	}

	view, err := h.svc.OpenLedger(r.Context(), userID, req.FriendID)
	if err != nil {
		h.respondError(w, "open ledger", "", userID, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"ledger": view})
}

// ListLedgers returns every ledger the requester belongs to.
// GET /ledger
func (h *LedgerHandler) ListLedgers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summaries, err := h.svc.ListLedgers(r.Context(), userID)
	if err != nil {
		h.respondError(w, "list ledgers", "", userID, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"ledgers": summaries})
}

// GetLedger returns the requester's view of one ledger.
// GET /ledger/{id}
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ledgerID := chi.URLParam(r, "id")

	view, err := h.svc.GetLedgerView(r.Context(), ledgerID, userID)
	if err != nil {
		h.respondError(w, "get ledger", ledgerID, userID, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"ledger": view})
}

// RecordPaid records a shared-expense contribution by the requester.
// POST /ledger/{id}/pay
func (h *LedgerHandler) RecordPaid(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, "record paid", h.svc.RecordPaid)
}

// RecordReceived acknowledges a settlement received by the requester.
// POST /ledger/{id}/receive
func (h *LedgerHandler) RecordReceived(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, "record received", h.svc.RecordReceived)
}

func (h *LedgerHandler) record(w http.ResponseWriter, r *http.Request, op string, fn recordFn) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ledgerID := chi.URLParam(r, "id")

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := fn(r.Context(), ledgerID, userID, req.Amount, req.Memo)
	if err != nil {
		h.respondError(w, op, ledgerID, userID, err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

// respondError maps the domain taxonomy to HTTP statuses. Anything outside
// the taxonomy is logged with full context and surfaced as a generic 500;
// internal detail never reaches the caller.
func (h *LedgerHandler) respondError(w http.ResponseWriter, op, ledgerID, requesterID string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidParty),
		errors.Is(err, domain.ErrInvalidMemo):
		response.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrAccessDenied):
		response.Error(w, http.StatusForbidden, "access denied")
	case errors.Is(err, domain.ErrLedgerNotFound):
		response.Error(w, http.StatusNotFound, "ledger not found")
	default:
		h.logger.Error("request failed",
			zap.String("operation", op),
			zap.String("ledger_id", ledgerID),
			zap.String("requester", requesterID),
			zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
