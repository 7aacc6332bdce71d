package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/taskops/reporting-service/internal/cache"
	"github.com/taskops/reporting-service/internal/repository"
	"github.com/taskops/reporting-service/internal/upstream"
)

// QuickProjectSummary serves the cache-first summary path. A hit returns the
// cached payload verbatim; a miss runs a lighter live aggregation (project +
// tasks only, no comment/attachment fan-out) and populates the cache.
func (s *ReportsService) QuickProjectSummary(
	ctx context.Context,
	requester *upstream.User,
	token string,
	projectID int64,
) (json.RawMessage, error) {
	key := cache.ProjectSummaryKey(projectID)
	if payload, ok := s.cache.Get(ctx, key); ok {
		if s.logger != nil {
			s.logger.Printf("serving cached project summary project_id=%d", projectID)
		}
		return payload, nil
	}

	project, ok := s.clients.GetProject(ctx, projectID, token)
	if !ok {
		return nil, repository.ErrNotFound
	}
	tasks, ok := s.clients.ListProjectTasks(ctx, projectID, token)
	if !ok {
		tasks = nil
	}

	totalTasks := len(tasks)
	completedTasks := countByStatus(tasks, upstream.TaskStatusCompleted)
	completionRate := 0.0
	if totalTasks > 0 {
		completionRate = math.Round(float64(completedTasks)/float64(totalTasks)*100*100) / 100
	}

	summary := map[string]any{
		"project": project,
		"quick_metrics": map[string]any{
			"total_tasks":       totalTasks,
			"completed_tasks":   completedTasks,
			"completion_rate":   completionRate,
			"pending_tasks":     countByStatus(tasks, upstream.TaskStatusPending),
			"in_progress_tasks": countByStatus(tasks, upstream.TaskStatusInProgress),
		},
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
		"cache_duration": "1 hour",
	}

	encoded, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("encode quick summary: %w", err)
	}

	s.cache.Put(ctx, key, encoded, s.cacheTTL)
	return encoded, nil
}

type overdueTask struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	DueDate   string `json:"due_date"`
	ProjectID int64  `json:"project_id"`
	dueAt     time.Time
}

// QuickDashboard runs a live-only aggregation scoped to the caller's own
// tasks. Never cached: the payload is cheap and per-user.
func (s *ReportsService) QuickDashboard(
	ctx context.Context,
	requester *upstream.User,
	token string,
) (json.RawMessage, error) {
	projects, ok := s.clients.ListProjects(ctx, token)
	if !ok {
		projects = nil
	}

	myTasks := make([]upstream.Task, 0)
	for _, project := range projects {
		tasks, ok := s.clients.ListProjectTasks(ctx, project.ID, token)
		if !ok {
			continue
		}
		for _, task := range tasks {
			if task.AssigneeID == requester.ID {
				myTasks = append(myTasks, task)
			}
		}
	}

	now := time.Now().UTC()
	overdue := make([]overdueTask, 0)
	for _, task := range myTasks {
		if task.DueDate == "" {
			continue
		}
		if task.Status == upstream.TaskStatusCompleted || task.Status == upstream.TaskStatusCancelled {
			continue
		}
		dueAt, err := time.Parse(time.RFC3339, task.DueDate)
		if err != nil {
			continue
		}
		if dueAt.Before(now) {
			overdue = append(overdue, overdueTask{
				ID:        task.ID,
				Title:     task.Title,
				DueDate:   task.DueDate,
				ProjectID: task.ProjectID,
				dueAt:     dueAt,
			})
		}
	}
	// Most overdue first, capped to five items in the payload.
	sort.Slice(overdue, func(i, j int) bool {
		return overdue[i].dueAt.Before(overdue[j].dueAt)
	})
	topOverdue := overdue
	if len(topOverdue) > 5 {
		topOverdue = topOverdue[:5]
	}

	activeProjects := 0
	for _, project := range projects {
		if project.Status == "active" {
			activeProjects++
		}
	}

	dashboard := map[string]any{
		"user_id":  requester.ID,
		"username": requester.Username,
		"projects": map[string]any{
			"total":  len(projects),
			"active": activeProjects,
		},
		"tasks": map[string]any{
			"total":       len(myTasks),
			"completed":   countByStatus(myTasks, upstream.TaskStatusCompleted),
			"pending":     countByStatus(myTasks, upstream.TaskStatusPending),
			"in_progress": countByStatus(myTasks, upstream.TaskStatusInProgress),
			"overdue":     len(overdue),
		},
		"overdue_tasks": topOverdue,
		"generated_at":  now.Format(time.RFC3339),
	}

	encoded, err := json.Marshal(dashboard)
	if err != nil {
		return nil, fmt.Errorf("encode dashboard: %w", err)
	}
	return encoded, nil
}

func countByStatus(tasks []upstream.Task, status string) int {
	count := 0
	for _, task := range tasks {
		if task.Status == status {
			count++
		}
	}
	return count
}
