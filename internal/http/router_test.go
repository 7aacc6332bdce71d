package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/taskops/reporting-service/internal/cache"
	"github.com/taskops/reporting-service/internal/domain"
	"github.com/taskops/reporting-service/internal/http/handlers"
	"github.com/taskops/reporting-service/internal/queue"
	"github.com/taskops/reporting-service/internal/repository"
	"github.com/taskops/reporting-service/internal/service"
	"github.com/taskops/reporting-service/internal/upstream"
)

type tokenTable struct {
	users map[string]*upstream.User
}

func (v *tokenTable) VerifyToken(_ context.Context, token string) (*upstream.User, bool) {
	user, ok := v.users[token]
	return user, ok
}

type apiFixture struct {
	handler http.Handler
	repo    *repository.MemoryReportsRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	repo := repository.NewMemoryReportsRepository()
	reportCache := cache.NewMemoryReportCache(cache.Config{})
	local := queue.NewLocalQueue(16, 1, nil)
	clients := upstream.NewClient(upstream.Config{Timeout: time.Second})
	reports := service.NewReportsService(repo, local, reportCache, clients, time.Hour, nil)

	verifier := &tokenTable{users: map[string]*upstream.User{
		"member-token": {ID: 7, Username: "ana", IsActive: true},
		"admin-token":  {ID: 1, Username: "root", IsActive: true, IsAdmin: true},
	}}

	handler := NewRouter(RouterDependencies{
		API:            handlers.NewAPI(reports, "memory"),
		Verifier:       verifier,
		Logger:         nil,
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	return &apiFixture{handler: handler, repo: repo}
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func TestSubmitReportReturnsAccepted(t *testing.T) {
	f := newAPIFixture(t)

	recorder := f.do(t, http.MethodPost, "/api/reports", "member-token",
		`{"name":"sprint report","report_type":"project","parameters":{"project_id":42}}`)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	if payload["status"] != "pending" {
		t.Fatalf("expected pending status, got %v", payload["status"])
	}
	reportID, _ := payload["report_id"].(string)
	if reportID == "" {
		t.Fatalf("expected a report_id, got %v", payload["report_id"])
	}

	stored, err := f.repo.GetReport(context.Background(), reportID)
	if err != nil {
		t.Fatalf("expected report row to exist: %v", err)
	}
	if stored.RequestedBy != 7 {
		t.Fatalf("expected requester 7, got %d", stored.RequestedBy)
	}
}

func TestSubmitUnknownReportTypeReturnsBadRequest(t *testing.T) {
	f := newAPIFixture(t)

	recorder := f.do(t, http.MethodPost, "/api/reports", "member-token",
		`{"name":"weird","report_type":"quarterly","parameters":{}}`)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	payload := decodeBody(t, recorder)
	reportID, _ := payload["report_id"].(string)
	if reportID == "" {
		t.Fatalf("expected failed job id in response, got %s", recorder.Body.String())
	}
	stored, err := f.repo.GetReport(context.Background(), reportID)
	if err != nil {
		t.Fatalf("expected failed row to exist: %v", err)
	}
	if stored.Status != domain.ReportStatusFailed {
		t.Fatalf("expected failed status, got %s", stored.Status)
	}
}

func TestRequestsWithoutTokenAreUnauthorized(t *testing.T) {
	f := newAPIFixture(t)

	recorder := f.do(t, http.MethodGet, "/api/reports", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, recorder.Code)
	}

	recorder = f.do(t, http.MethodGet, "/health", "", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected health without token to return %d, got %d", http.StatusOK, recorder.Code)
	}
}

func TestGetReportAccessControlStatuses(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pastExpiry := now.Add(-time.Hour)
	futureExpiry := now.Add(time.Hour)
	seed := []domain.Report{
		{
			ID: "owned", Name: "mine", Kind: domain.ReportKindProject,
			Status: domain.ReportStatusCompleted, Result: []byte(`{"summary":{}}`),
			RequestedBy: 7, CreatedAt: now, ExpiresAt: &futureExpiry,
		},
		{
			ID: "foreign", Name: "not mine", Kind: domain.ReportKindProject,
			Status: domain.ReportStatusCompleted, RequestedBy: 99,
			CreatedAt: now, ExpiresAt: &futureExpiry,
		},
		{
			ID: "stale", Name: "old", Kind: domain.ReportKindProject,
			Status: domain.ReportStatusCompleted, RequestedBy: 7,
			CreatedAt: now.Add(-8 * 24 * time.Hour), ExpiresAt: &pastExpiry,
		},
	}
	for i := range seed {
		if err := f.repo.CreateReport(ctx, &seed[i]); err != nil {
			t.Fatalf("seed report: %v", err)
		}
	}

	cases := []struct {
		name     string
		token    string
		reportID string
		want     int
	}{
		{"owner reads own report", "member-token", "owned", http.StatusOK},
		{"non-owner is denied", "member-token", "foreign", http.StatusForbidden},
		{"admin reads any report", "admin-token", "foreign", http.StatusOK},
		{"missing report", "member-token", "nope", http.StatusNotFound},
		{"expired report is gone", "member-token", "stale", http.StatusGone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := f.do(t, http.MethodGet, "/api/reports/"+tc.reportID, tc.token, "")
			if recorder.Code != tc.want {
				t.Fatalf("expected status %d, got %d: %s", tc.want, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestDeleteReportThenGetReturnsNotFound(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	report := domain.Report{
		ID: "doomed", Name: "temp", Kind: domain.ReportKindProject,
		Status: domain.ReportStatusCompleted, RequestedBy: 7, CreatedAt: time.Now().UTC(),
	}
	if err := f.repo.CreateReport(ctx, &report); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	recorder := f.do(t, http.MethodDelete, "/api/reports/doomed", "member-token", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, recorder.Code, recorder.Body.String())
	}

	recorder = f.do(t, http.MethodGet, "/api/reports/doomed", "member-token", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected status %d after delete, got %d", http.StatusNotFound, recorder.Code)
	}
}

func TestListReportsScopesToRequester(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, report := range []domain.Report{
		{ID: "r1", Name: "a", Kind: domain.ReportKindProject, Status: domain.ReportStatusPending, RequestedBy: 7, CreatedAt: now},
		{ID: "r2", Name: "b", Kind: domain.ReportKindProject, Status: domain.ReportStatusPending, RequestedBy: 99, CreatedAt: now},
	} {
		seeded := report
		if err := f.repo.CreateReport(ctx, &seeded); err != nil {
			t.Fatalf("seed report: %v", err)
		}
	}

	recorder := f.do(t, http.MethodGet, "/api/reports", "member-token", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	payload := decodeBody(t, recorder)
	reports, _ := payload["reports"].([]any)
	if len(reports) != 1 {
		t.Fatalf("expected 1 report for member, got %d", len(reports))
	}
	pagination, _ := payload["pagination"].(map[string]any)
	if total, _ := pagination["total"].(float64); total != 1 {
		t.Fatalf("expected total 1, got %v", pagination["total"])
	}
}
