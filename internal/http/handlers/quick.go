package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/taskops/reporting-service/internal/http/middleware"
)

func (api *API) QuickProjectSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	rawID := strings.TrimPrefix(r.URL.Path, "/api/reports/quick/project-summary/")
	projectID, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || projectID <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "project id must be a positive integer")
		return
	}

	payload, err := api.reports.QuickProjectSummary(r.Context(), user, middleware.GetToken(r.Context()), projectID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

func (api *API) QuickDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	payload, err := api.reports.QuickDashboard(r.Context(), user, middleware.GetToken(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}
