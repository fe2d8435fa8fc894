package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playvault/backend/internal/middleware"
	"github.com/playvault/backend/internal/models"
	"github.com/playvault/backend/internal/services"
)

type WithdrawalHandler struct {
	withdrawals *services.WithdrawalService
	payouts     *services.PayoutService
	validator   *services.ValidationHelper
}

func NewWithdrawalHandler(withdrawals *services.WithdrawalService, payouts *services.PayoutService) *WithdrawalHandler {
	return &WithdrawalHandler{
		withdrawals: withdrawals,
		payouts:     payouts,
		validator:   services.NewValidationHelper(),
	}
}

// Create opens a withdrawal request
// @Summary Request a withdrawal
// @Description Debit the balance and open a pending withdrawal to the given bank account
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=number,bank_account=models.BankAccount,reference=string} true "Withdrawal request"
// @Success 200 {object} models.Withdrawal
// @Failure 400 {object} services.ErrorResponse
// @Router /withdrawals [post]
func (h *WithdrawalHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	var req struct {
		Amount      float64            `json:"amount" validate:"required,gt=0"`
		BankAccount models.BankAccount `json:"bank_account" validate:"required"`
		Reference   string             `json:"reference" validate:"omitempty,max=64"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	wd, err := h.withdrawals.Request(r.Context(), caller, caller.AccountID, req.Amount, req.BankAccount, req.Reference)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, wd)
}

// Mine lists the caller's withdrawals
// @Summary List own withdrawals
// @Tags withdrawals
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Withdrawal
// @Router /withdrawals/mine [get]
func (h *WithdrawalHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	ws, err := h.withdrawals.ListByUser(r.Context(), caller.AccountID, parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, ws)
}

// Get fetches one withdrawal
// @Summary Get a withdrawal
// @Description Fetch a withdrawal. Users can only see their own; admins see any.
// @Tags withdrawals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal ID"
// @Success 200 {object} models.Withdrawal
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /withdrawals/{id} [get]
func (h *WithdrawalHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	wd, err := h.withdrawals.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	if !caller.CanAccess(wd.UserID) {
		services.SendServiceError(w, services.ErrForbidden)
		return
	}
	services.SendJSON(w, http.StatusOK, wd)
}

// ListAll lists every withdrawal (admin)
// @Summary List all withdrawals
// @Tags withdrawals
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Withdrawal
// @Router /admin/withdrawals [get]
func (h *WithdrawalHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	ws, err := h.withdrawals.ListAll(r.Context(), parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, ws)
}

// ListPending lists withdrawals awaiting review (admin)
// @Summary List pending withdrawals
// @Tags withdrawals
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Withdrawal
// @Router /admin/withdrawals/pending [get]
func (h *WithdrawalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	ws, err := h.withdrawals.ListPending(r.Context(), parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, ws)
}

// Process applies an admin decision to a withdrawal
// @Summary Process a withdrawal
// @Description Approve releases the held funds to payout; reject refunds them with a compensating ledger record.
// @Tags withdrawals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal ID"
// @Param request body object{action=string,notes=string} true "Decision, approve or reject"
// @Success 200 {object} models.Withdrawal
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/withdrawals/{id}/process [post]
func (h *WithdrawalHandler) Process(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	var req struct {
		Action string `json:"action" validate:"required,oneof=approve reject"`
		Notes  string `json:"notes"`
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	wd, err := h.withdrawals.Process(r.Context(), chi.URLParam(r, "id"), req.Action, req.Notes, caller.AccountID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, wd)
}

// Payout renders an approved withdrawal as a pacs.008 message (admin)
// @Summary Generate payout instruction
// @Description Render an approved withdrawal as an ISO 20022 pacs.008 credit transfer for the banking rail
// @Tags withdrawals
// @Produce json
// @Security BearerAuth
// @Param id path string true "Withdrawal ID"
// @Success 200 {object} object{status=string,messageType=string,xml=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/withdrawals/{id}/payout [get]
func (h *WithdrawalHandler) Payout(w http.ResponseWriter, r *http.Request) {
	wd, err := h.withdrawals.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	doc, err := h.payouts.BuildCreditTransfer(wd)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	xmlData, err := h.payouts.ToXML(doc)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"status":      "generated",
		"messageType": "pacs.008.001.08",
		"xml":         xmlData,
	})
}
