package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/taskops/reporting-service/internal/cache"
	"github.com/taskops/reporting-service/internal/domain"
	"github.com/taskops/reporting-service/internal/queue"
	"github.com/taskops/reporting-service/internal/repository"
	"github.com/taskops/reporting-service/internal/upstream"
)

const (
	projectReportExpiry  = 7 * 24 * time.Hour
	systemOverviewExpiry = 6 * time.Hour
)

type GeneratorConfig struct {
	// JobTimeout bounds one whole job execution, independent of the per-call
	// timeouts inside the upstream client.
	JobTimeout time.Duration
	// FanOutLimit caps concurrent per-task count fetches.
	FanOutLimit int
	// CacheTTL applies to project summary payloads written on completion.
	CacheTTL time.Duration
}

// Generator consumes queued report jobs and runs the aggregation algorithm for
// the job's kind, writing results back to the store and the cache.
type Generator struct {
	consumer    queue.Consumer
	repo        repository.ReportsRepository
	cache       cache.ReportCache
	clients     *upstream.Client
	jobTimeout  time.Duration
	fanOutLimit int
	cacheTTL    time.Duration
	logger      *log.Logger
}

func NewGenerator(
	consumer queue.Consumer,
	repo repository.ReportsRepository,
	reportCache cache.ReportCache,
	clients *upstream.Client,
	cfg GeneratorConfig,
	logger *log.Logger,
) *Generator {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.FanOutLimit <= 0 {
		cfg.FanOutLimit = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &Generator{
		consumer:    consumer,
		repo:        repo,
		cache:       reportCache,
		clients:     clients,
		jobTimeout:  cfg.JobTimeout,
		fanOutLimit: cfg.FanOutLimit,
		cacheTTL:    cfg.CacheTTL,
		logger:      logger,
	}
}

func (g *Generator) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := g.consumer.Consume(ctx, g.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		if g.logger != nil {
			g.logger.Printf("worker consume loop error: %v", err)
		}

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (g *Generator) processMessage(ctx context.Context, message domain.QueueMessage) error {
	report, err := g.repo.GetReport(ctx, message.ReportID)
	if err != nil {
		return fmt.Errorf("load report %s: %w", message.ReportID, err)
	}

	err = g.repo.TransitionReport(ctx, report.ID, repository.Transition{
		From: domain.ReportStatusPending,
		To:   domain.ReportStatusGenerating,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Another worker (or a duplicate delivery) already claimed the job.
			if g.logger != nil {
				g.logger.Printf("skipping report already claimed report_id=%s status=%s", report.ID, report.Status)
			}
			return nil
		}
		return fmt.Errorf("mark generating: %w", err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, g.jobTimeout)
	defer cancel()

	result, genErr := g.generate(jobCtx, report)
	completedAt := time.Now().UTC()

	if genErr != nil {
		if transitionErr := g.repo.TransitionReport(ctx, report.ID, repository.Transition{
			From:         domain.ReportStatusGenerating,
			To:           domain.ReportStatusFailed,
			ErrorMessage: genErr.Error(),
			CompletedAt:  &completedAt,
		}); transitionErr != nil {
			return fmt.Errorf("mark failed: %w", transitionErr)
		}
		if g.logger != nil {
			g.logger.Printf("report generation failed kind=%s report_id=%s err=%v", report.Kind, report.ID, genErr)
		}
		// The failure is recorded on the job; do not ask the queue to retry.
		return nil
	}

	expiresAt := report.CreatedAt.Add(expiryFor(report.Kind))
	if err := g.repo.TransitionReport(ctx, report.ID, repository.Transition{
		From:        domain.ReportStatusGenerating,
		To:          domain.ReportStatusCompleted,
		Result:      result,
		CompletedAt: &completedAt,
		ExpiresAt:   &expiresAt,
	}); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	if g.logger != nil {
		g.logger.Printf("report generated kind=%s report_id=%s", report.Kind, report.ID)
	}
	return nil
}

func (g *Generator) generate(ctx context.Context, report *domain.Report) (result json.RawMessage, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("report generation panic: %v", recovered)
		}
	}()

	params, err := domain.DecodeParams(report.Parameters)
	if err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}

	switch report.Kind {
	case domain.ReportKindProject:
		return g.buildProjectReport(ctx, params)
	case domain.ReportKindSystem:
		return g.buildSystemOverview(ctx, params)
	default:
		return nil, fmt.Errorf("unsupported report type: %s", report.Kind)
	}
}

func expiryFor(kind domain.ReportKind) time.Duration {
	// System-wide metrics go stale much faster than a single project snapshot.
	if kind == domain.ReportKindSystem {
		return systemOverviewExpiry
	}
	return projectReportExpiry
}
