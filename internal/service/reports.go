package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/taskops/reporting-service/internal/cache"
	"github.com/taskops/reporting-service/internal/domain"
	"github.com/taskops/reporting-service/internal/queue"
	"github.com/taskops/reporting-service/internal/repository"
	"github.com/taskops/reporting-service/internal/upstream"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("access denied")
	ErrExpired    = errors.New("report has expired")
)

const defaultExpiry = 7 * 24 * time.Hour

// ReportsService owns report job submission, access control and the quick
// aggregation paths.
type ReportsService struct {
	repo     repository.ReportsRepository
	producer queue.Producer
	cache    cache.ReportCache
	clients  *upstream.Client
	cacheTTL time.Duration
	logger   *log.Logger
}

func NewReportsService(
	repo repository.ReportsRepository,
	producer queue.Producer,
	reportCache cache.ReportCache,
	clients *upstream.Client,
	cacheTTL time.Duration,
	logger *log.Logger,
) *ReportsService {
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &ReportsService{
		repo:     repo,
		producer: producer,
		cache:    reportCache,
		clients:  clients,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

type SubmitRequest struct {
	Name      string
	Kind      domain.ReportKind
	ProjectID int64
}

// Submit validates the request, persists a pending job and hands it to the
// queue. Unknown kinds are persisted as failed jobs so the rejection stays
// inspectable, then reported as a validation error.
func (s *ReportsService) Submit(
	ctx context.Context,
	requester *upstream.User,
	token string,
	request SubmitRequest,
) (*domain.Report, error) {
	if request.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if request.Kind == "" {
		return nil, fmt.Errorf("%w: report_type is required", ErrValidation)
	}
	if request.Kind == domain.ReportKindSystem && !requester.IsAdmin {
		return nil, fmt.Errorf("%w: admin privileges required for system reports", ErrForbidden)
	}

	now := time.Now().UTC()
	expiresAt := now.Add(defaultExpiry)
	report := &domain.Report{
		ID:     uuid.NewString(),
		Name:   request.Name,
		Kind:   request.Kind,
		Status: domain.ReportStatusPending,
		Parameters: domain.ReportParams{
			ProjectID: request.ProjectID,
			Token:     token,
		}.Encode(),
		RequestedBy: requester.ID,
		CreatedAt:   now,
		ExpiresAt:   &expiresAt,
	}

	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	if request.Kind != domain.ReportKindProject && request.Kind != domain.ReportKindSystem {
		completedAt := time.Now().UTC()
		failure := repository.Transition{
			From:         domain.ReportStatusPending,
			To:           domain.ReportStatusFailed,
			ErrorMessage: fmt.Sprintf("unsupported report type: %s", request.Kind),
			CompletedAt:  &completedAt,
		}
		if err := s.repo.TransitionReport(ctx, report.ID, failure); err != nil && s.logger != nil {
			s.logger.Printf("failed to mark unsupported report failed report_id=%s err=%v", report.ID, err)
		}
		report.Status = domain.ReportStatusFailed
		report.ErrorMessage = failure.ErrorMessage
		return report, fmt.Errorf("%w: unsupported report type %q", ErrValidation, request.Kind)
	}

	message := domain.QueueMessage{
		ReportID:    report.ID,
		Kind:        report.Kind,
		RequestedBy: requester.ID,
		Attempt:     0,
		RequestedAt: now,
	}
	if err := s.producer.Enqueue(ctx, message); err != nil {
		completedAt := time.Now().UTC()
		_ = s.repo.TransitionReport(ctx, report.ID, repository.Transition{
			From:         domain.ReportStatusPending,
			To:           domain.ReportStatusFailed,
			ErrorMessage: err.Error(),
			CompletedAt:  &completedAt,
		})
		return nil, fmt.Errorf("enqueue report job: %w", err)
	}

	if s.logger != nil {
		s.logger.Printf("report submitted kind=%s report_id=%s requested_by=%d", report.Kind, report.ID, requester.ID)
	}
	return report, nil
}

// Get returns the report if the caller owns it or is privileged. Reports past
// expiry return ErrExpired while the row itself stays until deleted.
func (s *ReportsService) Get(
	ctx context.Context,
	requester *upstream.User,
	reportID string,
) (*domain.Report, error) {
	report, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if report.RequestedBy != requester.ID && !requester.IsAdmin {
		return nil, ErrForbidden
	}
	if report.Expired(time.Now().UTC()) {
		return nil, ErrExpired
	}
	return report, nil
}

// ListedReport pairs a report with the requester's username, resolved only for
// privileged listings.
type ListedReport struct {
	domain.Report
	RequesterUsername string
}

func (s *ReportsService) List(
	ctx context.Context,
	requester *upstream.User,
	filter domain.ReportFilter,
) ([]ListedReport, int, error) {
	if !requester.IsAdmin {
		requestedBy := requester.ID
		filter.RequestedBy = &requestedBy
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	reports, total, err := s.repo.ListReports(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	items := make([]ListedReport, 0, len(reports))
	usernames := make(map[int64]string)
	for _, report := range reports {
		item := ListedReport{Report: report}
		if requester.IsAdmin {
			username, ok := usernames[report.RequestedBy]
			if !ok {
				username = "Unknown"
				if user, found := s.clients.GetUser(ctx, report.RequestedBy); found {
					username = user.Username
				}
				usernames[report.RequestedBy] = username
			}
			item.RequesterUsername = username
		}
		items = append(items, item)
	}
	return items, total, nil
}

func (s *ReportsService) Delete(
	ctx context.Context,
	requester *upstream.User,
	reportID string,
) error {
	report, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		return err
	}
	if report.RequestedBy != requester.ID && !requester.IsAdmin {
		return ErrForbidden
	}
	if err := s.repo.DeleteReport(ctx, reportID); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Printf("report deleted report_id=%s requested_by=%d", reportID, requester.ID)
	}
	return nil
}

// Health reports store and queue facts for the health endpoint.
func (s *ReportsService) Health(ctx context.Context) (total int, pending int, err error) {
	total, err = s.repo.CountByStatus(ctx, "")
	if err != nil {
		return 0, 0, err
	}
	pending, err = s.repo.CountByStatus(ctx, domain.ReportStatusPending)
	if err != nil {
		return 0, 0, err
	}
	return total, pending, nil
}
