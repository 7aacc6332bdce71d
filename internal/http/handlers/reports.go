package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/taskops/reporting-service/internal/domain"
	"github.com/taskops/reporting-service/internal/http/middleware"
	"github.com/taskops/reporting-service/internal/service"
)

func (api *API) Reports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		api.createReport(w, r)
	case http.MethodGet:
		api.listReports(w, r)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (api *API) createReport(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var request createReportRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	report, err := api.reports.Submit(r.Context(), user, middleware.GetToken(r.Context()), service.SubmitRequest{
		Name:      strings.TrimSpace(request.Name),
		Kind:      domain.ReportKind(strings.TrimSpace(request.ReportType)),
		ProjectID: request.Parameters.ProjectID,
	})
	if err != nil {
		// Unknown kinds still produce an inspectable failed job.
		if report != nil && report.Status == domain.ReportStatusFailed {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":     "unsupported report type",
				"report_id": report.ID,
				"status":    report.Status,
			})
			return
		}
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":   "report generation started",
		"report_id": report.ID,
		"status":    report.Status,
	})
}

func (api *API) listReports(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	perPage, _ := strconv.Atoi(query.Get("per_page"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	filter := domain.ReportFilter{
		Kind:    domain.ReportKind(strings.TrimSpace(query.Get("report_type"))),
		Status:  domain.ReportStatus(strings.TrimSpace(query.Get("status"))),
		Page:    page,
		PerPage: perPage,
	}

	items, total, err := api.reports.List(r.Context(), user, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	payloadItems := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payloadItems = append(payloadItems, reportPayload(item.Report, item.RequesterUsername))
	}

	pages := (total + perPage - 1) / perPage
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": payloadItems,
		"pagination": map[string]any{
			"page":     page,
			"pages":    pages,
			"per_page": perPage,
			"total":    total,
		},
	})
}

func (api *API) ReportByID(w http.ResponseWriter, r *http.Request) {
	reportID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/reports/"))
	if reportID == "" || strings.Contains(reportID, "/") {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}

	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		report, err := api.reports.Get(r.Context(), user, reportID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"report": reportPayload(*report, "")})
	case http.MethodDelete:
		if err := api.reports.Delete(r.Context(), user, reportID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "report deleted successfully"})
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
