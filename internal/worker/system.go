package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskops/reporting-service/internal/domain"
	"github.com/taskops/reporting-service/internal/upstream"
)

// buildSystemOverview aggregates platform-wide statistics. Unlike the project
// report there is no primary fetch here: every upstream section degrades
// independently to zeroed defaults, so a privileged overview still completes
// while a sibling service is down.
func (g *Generator) buildSystemOverview(ctx context.Context, params domain.ReportParams) (json.RawMessage, error) {
	users, ok := g.clients.ListAllUsers(ctx, params.Token)
	if !ok {
		users = nil
	}
	projects, ok := g.clients.ListProjects(ctx, params.Token)
	if !ok {
		projects = nil
	}

	allTasks := make([]upstream.Task, 0)
	for _, project := range projects {
		tasks, ok := g.clients.ListProjectTasks(ctx, project.ID, params.Token)
		if !ok {
			continue
		}
		allTasks = append(allTasks, tasks...)
	}

	activityStats, ok := g.clients.ActivityStats(ctx, 30, params.Token)
	if !ok {
		activityStats = json.RawMessage(`{"total_activities":0,"unique_users":0}`)
	}
	attachmentStats, ok := g.clients.AttachmentStats(ctx)
	if !ok {
		attachmentStats = json.RawMessage(`{"total_attachments":0,"total_size_mb":0}`)
	}

	activeUsers := 0
	adminUsers := 0
	for _, user := range users {
		if user.IsActive {
			activeUsers++
		}
		if user.IsAdmin {
			adminUsers++
		}
	}

	projectsByStatus := make(map[string]int, 3)
	for _, project := range projects {
		projectsByStatus[project.Status]++
	}

	taskTotals := summarizeTasks(allTasks)

	document := map[string]any{
		"users": map[string]any{
			"total":       len(users),
			"active":      activeUsers,
			"admin_count": adminUsers,
		},
		"projects": map[string]any{
			"total":     len(projects),
			"active":    projectsByStatus["active"],
			"completed": projectsByStatus["completed"],
			"archived":  projectsByStatus["archived"],
		},
		"tasks": map[string]any{
			"total":           taskTotals.TotalTasks,
			"completed":       taskTotals.CompletedTasks,
			"pending":         taskTotals.PendingTasks,
			"in_progress":     taskTotals.InProgressTasks,
			"completion_rate": taskTotals.CompletionRate,
		},
		"activity":     activityStats,
		"attachments":  attachmentStats,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}

	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encode system overview: %w", err)
	}
	return encoded, nil
}
