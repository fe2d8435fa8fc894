package handlers

import (
	"net/http"
	"strconv"

	"github.com/playvault/backend/internal/services"
)

const maxPageSize = 200

// parsePage reads skip/limit query parameters with sane bounds.
func parsePage(r *http.Request) services.Page {
	page := services.Page{Limit: 50}
	if v := r.URL.Query().Get("skip"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			page.Skip = n
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			page.Limit = n
		}
	}
	if page.Limit > maxPageSize {
		page.Limit = maxPageSize
	}
	return page
}
