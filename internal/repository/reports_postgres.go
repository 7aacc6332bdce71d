package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/taskops/reporting-service/internal/domain"
)

type PostgresReportsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresReportsRepository(ctx context.Context, databaseURL string) (*PostgresReportsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresReportsRepository{pool: pool}, nil
}

func (r *PostgresReportsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresReportsRepository) CreateReport(ctx context.Context, report *domain.Report) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reports (
			id,
			name,
			report_type,
			status,
			parameters,
			result,
			error_message,
			requested_by,
			created_at,
			completed_at,
			expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		report.ID,
		report.Name,
		string(report.Kind),
		string(report.Status),
		report.Parameters,
		report.Result,
		report.ErrorMessage,
		report.RequestedBy,
		report.CreatedAt,
		report.CompletedAt,
		report.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *PostgresReportsRepository) GetReport(ctx context.Context, reportID string) (*domain.Report, error) {
	report, err := scanReport(r.pool.QueryRow(ctx, `
		SELECT id, name, report_type, status, parameters, result, error_message,
			requested_by, created_at, completed_at, expires_at
		FROM reports
		WHERE id = $1
	`, reportID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query report: %w", err)
	}
	return report, nil
}

// TransitionReport applies the status change only while the stored status still
// equals change.From, so two workers can never both run the same job past the
// generating transition.
func (r *PostgresReportsRepository) TransitionReport(
	ctx context.Context,
	reportID string,
	change Transition,
) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET status = $3,
			result = $4,
			error_message = $5,
			completed_at = COALESCE($6, completed_at),
			expires_at = COALESCE($7, expires_at)
		WHERE id = $1 AND status = $2
	`,
		reportID,
		string(change.From),
		string(change.To),
		change.Result,
		change.ErrorMessage,
		change.CompletedAt,
		change.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("transition report: %w", err)
	}
	if command.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reports WHERE id = $1)`, reportID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check report exists: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

func (r *PostgresReportsRepository) ListReports(
	ctx context.Context,
	filter domain.ReportFilter,
) ([]domain.Report, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}

	baseQuery, args := buildReportFilters(filter)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT id, name, report_type, status, parameters, result, error_message,
			requested_by, created_at, completed_at, expires_at
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		baseQuery,
		len(args)+1,
		len(args)+2,
	)
	listArgs := append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	rows, err := r.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan report: %w", err)
		}
		items = append(items, *report)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate reports: %w", rows.Err())
	}

	return items, total, nil
}

func (r *PostgresReportsRepository) DeleteReport(ctx context.Context, reportID string) error {
	command, err := r.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, reportID)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresReportsRepository) CountByStatus(
	ctx context.Context,
	status domain.ReportStatus,
) (int, error) {
	query := `SELECT COUNT(*) FROM reports`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}

	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count reports by status: %w", err)
	}
	return count, nil
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var (
		report      domain.Report
		kind        string
		status      string
		parameters  []byte
		result      []byte
		completedAt *time.Time
		expiresAt   *time.Time
	)

	err := row.Scan(
		&report.ID,
		&report.Name,
		&kind,
		&status,
		&parameters,
		&result,
		&report.ErrorMessage,
		&report.RequestedBy,
		&report.CreatedAt,
		&completedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}

	report.Kind = domain.ReportKind(kind)
	report.Status = domain.ReportStatus(status)
	report.Parameters = json.RawMessage(parameters)
	report.Result = json.RawMessage(result)
	report.CompletedAt = completedAt
	report.ExpiresAt = expiresAt
	return &report, nil
}

func buildReportFilters(filter domain.ReportFilter) (string, []any) {
	query := strings.Builder{}
	query.WriteString("FROM reports WHERE 1=1")

	args := make([]any, 0, 3)
	argIndex := 1

	if filter.RequestedBy != nil {
		query.WriteString(fmt.Sprintf(" AND requested_by = $%d", argIndex))
		args = append(args, *filter.RequestedBy)
		argIndex++
	}
	if filter.Kind != "" {
		query.WriteString(fmt.Sprintf(" AND report_type = $%d", argIndex))
		args = append(args, string(filter.Kind))
		argIndex++
	}
	if filter.Status != "" {
		query.WriteString(fmt.Sprintf(" AND status = $%d", argIndex))
		args = append(args, string(filter.Status))
		argIndex++
	}

	return query.String(), args
}
