package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playvault/backend/internal/middleware"
	"github.com/playvault/backend/internal/models"
	"github.com/playvault/backend/internal/services"
)

type GameHandler struct {
	games     *services.GameService
	validator *services.ValidationHelper
}

func NewGameHandler(games *services.GameService) *GameHandler {
	return &GameHandler{
		games:     games,
		validator: services.NewValidationHelper(),
	}
}

// List returns the active catalog
// @Summary List games
// @Description List active games, optionally filtered by category
// @Tags games
// @Produce json
// @Security BearerAuth
// @Param category query string false "Game category"
// @Success 200 {array} models.Game
// @Router /games [get]
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	category := models.GameCategory(r.URL.Query().Get("category"))

	games, err := h.games.List(r.Context(), category, parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, games)
}

// Featured returns the newest active games
// @Summary List featured games
// @Tags games
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of games" default(3)
// @Success 200 {array} models.Game
// @Router /games/featured [get]
func (h *GameHandler) Featured(w http.ResponseWriter, r *http.Request) {
	limit := int64(3)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	games, err := h.games.Featured(r.Context(), limit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, games)
}

// Get fetches one game
// @Summary Get a game
// @Tags games
// @Produce json
// @Security BearerAuth
// @Param id path string true "Game ID"
// @Success 200 {object} models.Game
// @Failure 404 {object} services.ErrorResponse
// @Router /games/{id} [get]
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	game, err := h.games.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, game)
}

// Play settles one play outcome
// @Summary Play a game
// @Description Settle a play: a win credits the payout, a loss debits the stake, and the ledger record lands atomically with the balance change.
// @Tags games
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{game_id=string,stake=number,result=string,payout=number} true "Play outcome"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /games/play [post]
func (h *GameHandler) Play(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	var req struct {
		GameID string  `json:"game_id" validate:"required"`
		Stake  float64 `json:"stake" validate:"required,gt=0"`
		Result string  `json:"result" validate:"required,oneof=win lose"`
		Payout float64 `json:"payout" validate:"gte=0"`
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

	rec, err := h.games.Settle(r.Context(), caller, caller.AccountID, req.GameID, req.Stake, models.GameResult(req.Result), req.Payout)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, rec)
}

// Create adds a game to the catalog (admin)
// @Summary Create a game
// @Tags games
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,description=string,min_stake=number,category=string} true "New game"
// @Success 200 {object} models.Game
// @Failure 400 {object} services.ErrorResponse
// @Router /admin/games [post]
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string  `json:"title" validate:"required,min=2,max=100"`
		Description string  `json:"description" validate:"required,min=2"`
		MinStake    float64 `json:"min_stake" validate:"required,gt=0"`
		Category    string  `json:"category" validate:"required,oneof=card dice wheel popular"`
		Icon        string  `json:"icon"`
		ImageURL    string  `json:"image_url"`
		Rules       string  `json:"rules"`
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

	game, err := h.games.Create(r.Context(), &models.Game{
		Title:       req.Title,
		Description: req.Description,
		MinStake:    req.MinStake,
		Category:    models.GameCategory(req.Category),
		Icon:        req.Icon,
		ImageURL:    req.ImageURL,
		Rules:       req.Rules,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, game)
}

// Update edits a game (admin)
// @Summary Update a game
// @Tags games
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Game ID"
// @Param request body models.GameUpdate true "Fields to change"
// @Success 200 {object} models.Game
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/games/{id} [put]
func (h *GameHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.GameUpdate

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

	game, err := h.games.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, game)
}

// Delete retires a game from the catalog (admin)
// @Summary Deactivate a game
// @Description Soft-delete: the game disappears from player listings but settled plays keep referencing it.
// @Tags games
// @Produce json
// @Security BearerAuth
// @Param id path string true "Game ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} services.ErrorResponse
// @Router /admin/games/{id} [delete]
func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.games.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, map[string]string{"message": "Game deactivated"})
}

// ListAdmin lists the full catalog including inactive games (admin)
// @Summary List all games
// @Tags games
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Game
// @Router /admin/games [get]
func (h *GameHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ListAdmin(r.Context(), parsePage(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, games)
}
