package handlers

import (
	"net/http"
	"time"
)

func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	total, pending, err := api.reports.Health(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":  "unhealthy",
			"service": "reporting-service",
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"service":         "reporting-service",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"cache":           api.cacheBackend,
		"total_reports":   total,
		"pending_reports": pending,
	})
}
