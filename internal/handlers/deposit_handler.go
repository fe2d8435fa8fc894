package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playvault/backend/internal/middleware"
	"github.com/playvault/backend/internal/services"
)

type DepositHandler struct {
	deposits  *services.DepositService
	qr        *services.QRService
	validator *services.ValidationHelper
}

func NewDepositHandler(deposits *services.DepositService, qr *services.QRService) *DepositHandler {
	return &DepositHandler{
		deposits:  deposits,
		qr:        qr,
		validator: services.NewValidationHelper(),
	}
}

// Create opens a deposit request
// @Summary Request a deposit
// @Description Open a pending deposit for the authenticated user. Admins may open one for another user.
// @Tags deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=number,user_id=string,reference=string} true "Deposit request"
// @Success 200 {object} models.Deposit
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /deposits [post]
func (h *DepositHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	var req struct {
		Amount    float64 `json:"amount" validate:"required,gt=0"`
		UserID    string  `json:"user_id"`
		Reference string  `json:"reference" validate:"omitempty,max=64"`
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

	target := caller.AccountID
	if req.UserID != "" && req.UserID != caller.AccountID {
		if !caller.IsAdmin() {
			services.SendServiceError(w, services.ErrForbidden)
			return
		}
		target = req.UserID
	}

	dep, err := h.deposits.Request(r.Context(), caller, target, req.Amount, req.Reference)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, dep)
}

// Mine lists the caller's deposits
// @Summary List own deposits
// @Tags deposits
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Deposit
// @Router /deposits/mine [get]
func (h *DepositHandler) Mine(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	deps, err := h.deposits.ListByUser(r.Context(), caller.AccountID, parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, deps)
}

// Get fetches one deposit
// @Summary Get a deposit
// @Description Fetch a deposit. Users can only see their own; admins see any.
// @Tags deposits
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deposit ID"
// @Success 200 {object} models.Deposit
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /deposits/{id} [get]
func (h *DepositHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	dep, err := h.deposits.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	if !caller.CanAccess(dep.UserID) {
		services.SendServiceError(w, services.ErrForbidden)
		return
	}
	services.SendJSON(w, http.StatusOK, dep)
}

// ListAll lists every deposit (admin)
// @Summary List all deposits
// @Tags deposits
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Deposit
// @Router /admin/deposits [get]
func (h *DepositHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	deps, err := h.deposits.ListAll(r.Context(), parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, deps)
}

// ListPending lists deposits awaiting review (admin)
// @Summary List pending deposits
// @Tags deposits
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Deposit
// @Router /admin/deposits/pending [get]
func (h *DepositHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	deps, err := h.deposits.ListPending(r.Context(), parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, deps)
}

// Approve credits a pending deposit (admin)
// @Summary Approve a deposit
// @Description Credit the account and complete the deposit. Exactly one of two concurrent approvals wins.
// @Tags deposits
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deposit ID"
// @Success 200 {object} models.Deposit
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/deposits/{id}/approve [post]
func (h *DepositHandler) Approve(w http.ResponseWriter, r *http.Request) {
	dep, err := h.deposits.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, dep)
}

// Reject closes a pending deposit without crediting (admin)
// @Summary Reject a deposit
// @Tags deposits
// @Produce json
// @Security BearerAuth
// @Param id path string true "Deposit ID"
// @Success 200 {object} models.Deposit
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/deposits/{id}/reject [post]
func (h *DepositHandler) Reject(w http.ResponseWriter, r *http.Request) {
	dep, err := h.deposits.Reject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, dep)
}

// GenerateQR issues a deposit QR code
// @Summary Generate deposit QR code
// @Description Generate a short-lived QR code for depositing at a kiosk
// @Tags deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{amount=number} true "QR generation request"
// @Success 200 {object} object{qrCode=string,qrImage=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /deposits/qr [post]
func (h *DepositHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	var req struct {
		Amount float64 `json:"amount" validate:"required,gt=0"`
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

	qrCode, qrImage, err := h.qr.GenerateDepositQR(r.Context(), caller.AccountID, req.Amount)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"qrCode":  qrCode,
		"qrImage": qrImage,
	})
}

// ClaimQR consumes a scanned deposit QR code
// @Summary Claim deposit QR code
// @Description Consume a scanned code and open the pending deposit it encodes
// @Tags deposits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{qrData=string} true "QR claim request"
// @Success 200 {object} models.Deposit
// @Failure 404 {object} services.ErrorResponse
// @Router /deposits/qr/claim [post]
func (h *DepositHandler) ClaimQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRData string `json:"qrData" validate:"required"`
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

	dep, err := h.qr.ClaimDepositQR(r.Context(), req.QRData)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"deposit": dep,
	})
}
