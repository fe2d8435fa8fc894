package handlers

import (
	"net/http"
	"strconv"

	"github.com/playvault/backend/internal/middleware"
	"github.com/playvault/backend/internal/services"
)

type StatsHandler struct {
	stats *services.StatsService
}

func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Me returns the caller's lifetime numbers
// @Summary Get own stats
// @Tags stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.UserStats
// @Router /stats/me [get]
func (h *StatsHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	stats, err := h.stats.UserStats(r.Context(), caller.AccountID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, stats)
}

// AdminDashboard returns the platform-wide money picture (admin)
// @Summary Admin dashboard
// @Tags stats
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.AdminDashboard
// @Router /admin/stats/dashboard [get]
func (h *StatsHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.stats.AdminDashboard(r.Context())
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, dash)
}

// RevenueHistory returns daily game revenue (admin)
// @Summary Revenue history
// @Tags stats
// @Produce json
// @Security BearerAuth
// @Param days query int false "Window in days" default(30)
// @Success 200 {array} services.RevenuePoint
// @Router /admin/stats/revenue-history [get]
func (h *StatsHandler) RevenueHistory(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			days = n
		}
	}

	points, err := h.stats.RevenueHistory(r.Context(), days)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	services.SendJSON(w, http.StatusOK, points)
}
