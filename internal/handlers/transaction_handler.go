package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playvault/backend/internal/middleware"
	"github.com/playvault/backend/internal/services"
)

type TransactionHandler struct {
	ledger services.TransactionLedger
}

func NewTransactionHandler(ledger services.TransactionLedger) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

// Mine lists the caller's ledger records newest first
// @Summary List own transactions
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param skip query int false "Offset"
// @Param limit query int false "Page size" default(50)
// @Success 200 {array} models.Transaction
// @Router /transactions [get]
func (h *TransactionHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	recs, err := h.ledger.ListByAccount(r.Context(), caller.AccountID, parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, recs)
}

// Get fetches one ledger record
// @Summary Get a transaction
// @Description Fetch a ledger record. Users can only see their own; admins see any.
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Transaction ID"
// @Success 200 {object} models.Transaction
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{id} [get]
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	rec, err := h.ledger.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	if !caller.CanAccess(rec.UserID) {
		services.SendServiceError(w, services.ErrForbidden)
		return
	}
	services.SendJSON(w, http.StatusOK, rec)
}

// ListAll lists every ledger record (admin)
// @Summary List all transactions
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Transaction
// @Router /admin/transactions [get]
func (h *TransactionHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	recs, err := h.ledger.ListAll(r.Context(), parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, recs)
}
