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

type UserHandler struct {
	accounts  services.AccountStore
	deposits  *services.DepositService
	validator *services.ValidationHelper
}

func NewUserHandler(accounts services.AccountStore, deposits *services.DepositService) *UserHandler {
	return &UserHandler{
		accounts:  accounts,
		deposits:  deposits,
		validator: services.NewValidationHelper(),
	}
}

// Get fetches a user profile
// @Summary Get a user
// @Description Fetch a profile. Users can only see their own; admins see any.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} models.User
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /users/{userId} [get]
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())
	userID := chi.URLParam(r, "userId")

	if !caller.CanAccess(userID) {
		services.SendServiceError(w, services.ErrForbidden)
		return
	}

	user, err := h.accounts.Get(r.Context(), userID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, user)
}

// Update edits a user profile
// @Summary Update a user
// @Description Edit profile fields. Role and active flag changes are admin only; balance is never editable here, it only moves through the ledger.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body models.AccountUpdate true "Fields to change"
// @Success 200 {object} models.User
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /users/{userId} [put]
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())
	userID := chi.URLParam(r, "userId")

	if !caller.CanAccess(userID) {
		services.SendServiceError(w, services.ErrForbidden)
		return
	}

	var req models.AccountUpdate

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

	if (req.Role != "" || req.IsActive != nil) && !caller.IsAdmin() {
		services.SendServiceError(w, services.ErrForbidden)
		return
	}

	user, err := h.accounts.Update(r.Context(), userID, req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, user)
}

// List returns all users with the total count (admin)
// @Summary List users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{users=[]models.User,total=int64}
// @Router /admin/users [get]
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.List(r.Context(), parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	total, err := h.accounts.Count(r.Context())
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	services.SendJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"total": total,
	})
}

// Deactivate disables a user account (admin)
// @Summary Deactivate a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/users/{userId}/deactivate [post]
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.SetActive(r.Context(), chi.URLParam(r, "userId"), false); err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, map[string]string{"message": "User deactivated"})
}

// AdjustBalance moves money in or out of an account by admin decision
// @Summary Adjust a user balance
// @Description Credit with a positive amount or debit with a negative one. The movement lands as a completed ledger record, never as a raw balance edit.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Param request body object{amount=number,notes=string} true "Signed adjustment"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/users/{userId}/adjust-balance [post]
func (h *UserHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount float64 `json:"amount" validate:"required"`
		Notes  string  `json:"notes"`
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

	rec, err := h.deposits.ManualAdjust(r.Context(), chi.URLParam(r, "userId"), req.Amount, req.Notes)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, rec)
}
