package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/taskops/reporting-service/internal/domain"
)

var (
	ErrNotFound = errors.New("resource not found")

	// ErrStatusConflict signals a transition whose expected current status did
	// not match the stored one. Duplicate job executions surface here.
	ErrStatusConflict = errors.New("report status conflict")
)

// Transition describes a compare-and-set status change for one report.
// The update is applied only while the stored status equals From.
type Transition struct {
	From         domain.ReportStatus
	To           domain.ReportStatus
	Result       []byte
	ErrorMessage string
	CompletedAt  *time.Time
	ExpiresAt    *time.Time
}

// ReportsRepository abstracts report persistence and query operations.
type ReportsRepository interface {
	CreateReport(ctx context.Context, report *domain.Report) error
	GetReport(ctx context.Context, reportID string) (*domain.Report, error)
	TransitionReport(ctx context.Context, reportID string, change Transition) error
	ListReports(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, int, error)
	DeleteReport(ctx context.Context, reportID string) error
	CountByStatus(ctx context.Context, status domain.ReportStatus) (int, error)
}

// MemoryReportsRepository stores reports in memory for local development.
type MemoryReportsRepository struct {
	mu      sync.RWMutex
	reports map[string]*domain.Report
}

func NewMemoryReportsRepository() *MemoryReportsRepository {
	return &MemoryReportsRepository{
		reports: make(map[string]*domain.Report),
	}
}

func (r *MemoryReportsRepository) CreateReport(_ context.Context, report *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports[report.ID] = cloneReport(report)
	return nil
}

func (r *MemoryReportsRepository) GetReport(_ context.Context, reportID string) (*domain.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[reportID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneReport(report), nil
}

func (r *MemoryReportsRepository) TransitionReport(
	_ context.Context,
	reportID string,
	change Transition,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if report.Status != change.From {
		return ErrStatusConflict
	}

	report.Status = change.To
	report.Result = append([]byte(nil), change.Result...)
	report.ErrorMessage = change.ErrorMessage
	if change.CompletedAt != nil {
		completedAt := *change.CompletedAt
		report.CompletedAt = &completedAt
	}
	if change.ExpiresAt != nil {
		expiresAt := *change.ExpiresAt
		report.ExpiresAt = &expiresAt
	}
	return nil
}

func (r *MemoryReportsRepository) ListReports(
	_ context.Context,
	filter domain.ReportFilter,
) ([]domain.Report, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}

	items := make([]domain.Report, 0)
	for _, report := range r.reports {
		if filter.RequestedBy != nil && report.RequestedBy != *filter.RequestedBy {
			continue
		}
		if filter.Kind != "" && report.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && report.Status != filter.Status {
			continue
		}
		items = append(items, *cloneReport(report))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := len(items)
	start := (filter.Page - 1) * filter.PerPage
	if start >= total {
		return []domain.Report{}, total, nil
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

func (r *MemoryReportsRepository) DeleteReport(_ context.Context, reportID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[reportID]; !ok {
		return ErrNotFound
	}
	delete(r.reports, reportID)
	return nil
}

func (r *MemoryReportsRepository) CountByStatus(
	_ context.Context,
	status domain.ReportStatus,
) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, report := range r.reports {
		if status == "" || report.Status == status {
			count++
		}
	}
	return count, nil
}

func cloneReport(report *domain.Report) *domain.Report {
	if report == nil {
		return nil
	}
	clone := *report
	clone.Parameters = append([]byte(nil), report.Parameters...)
	clone.Result = append([]byte(nil), report.Result...)
	if report.CompletedAt != nil {
		completedAt := *report.CompletedAt
		clone.CompletedAt = &completedAt
	}
	if report.ExpiresAt != nil {
		expiresAt := *report.ExpiresAt
		clone.ExpiresAt = &expiresAt
	}
	return &clone
}
