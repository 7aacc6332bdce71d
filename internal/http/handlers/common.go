package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskops/reporting-service/internal/domain"
	"github.com/taskops/reporting-service/internal/http/middleware"
	"github.com/taskops/reporting-service/internal/repository"
	"github.com/taskops/reporting-service/internal/service"
	"github.com/taskops/reporting-service/internal/upstream"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	reports      *service.ReportsService
	cacheBackend string
}

func NewAPI(reports *service.ReportsService, cacheBackend string) *API {
	return &API{
		reports:      reports,
		cacheBackend: cacheBackend,
	}
}

type createReportRequest struct {
	Name       string            `json:"name"`
	ReportType string            `json:"report_type"`
	Parameters reportParamsInput `json:"parameters"`
}

type reportParamsInput struct {
	ProjectID int64 `json:"project_id"`
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeRaw(w http.ResponseWriter, statusCode int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden", "access denied")
	case errors.Is(err, service.ErrExpired):
		writeError(w, r, http.StatusGone, "expired", "report has expired")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "request failed")
	}
}

func decodeJSON(r *http.Request, value any) error {
	if err := json.NewDecoder(r.Body).Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

func requireUser(w http.ResponseWriter, r *http.Request) (*upstream.User, bool) {
	user, ok := middleware.GetCurrentUser(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return nil, false
	}
	return user, true
}

// reportPayload mirrors the wire representation of a report row. The
// capability token stored in parameters never leaves the service.
func reportPayload(report domain.Report, requesterUsername string) map[string]any {
	payload := map[string]any{
		"id":            report.ID,
		"name":          report.Name,
		"report_type":   report.Kind,
		"status":        report.Status,
		"generated_by":  report.RequestedBy,
		"created_at":    report.CreatedAt,
		"error_message": report.ErrorMessage,
	}

	if params, err := domain.DecodeParams(report.Parameters); err == nil {
		sanitized := map[string]any{}
		if params.ProjectID != 0 {
			sanitized["project_id"] = params.ProjectID
		}
		payload["parameters"] = sanitized
	}
	if len(report.Result) > 0 {
		payload["data"] = json.RawMessage(report.Result)
	}
	if report.CompletedAt != nil {
		payload["completed_at"] = report.CompletedAt
	}
	if report.ExpiresAt != nil {
		payload["expires_at"] = report.ExpiresAt
	}
	if requesterUsername != "" {
		payload["generated_by_username"] = requesterUsername
	}
	return payload
}
