package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/taskops/reporting-service/internal/cache"
	"github.com/taskops/reporting-service/internal/domain"
	"github.com/taskops/reporting-service/internal/upstream"
	"golang.org/x/sync/errgroup"
)

// buildProjectReport assembles the denormalized project report. The project
// detail fetch is the primary fetch: its failure fails the whole job. Task
// lists and per-task counts degrade to empty/zero instead.
func (g *Generator) buildProjectReport(ctx context.Context, params domain.ReportParams) (json.RawMessage, error) {
	if params.ProjectID == 0 {
		return nil, fmt.Errorf("project_id parameter is required for project report")
	}

	project, ok := g.clients.GetProject(ctx, params.ProjectID, params.Token)
	if !ok {
		return nil, fmt.Errorf("failed to get project %d data", params.ProjectID)
	}

	tasks, ok := g.clients.ListProjectTasks(ctx, params.ProjectID, params.Token)
	if !ok {
		tasks = nil
	}

	summary := summarizeTasks(tasks)
	commentCounts, attachmentCounts := g.fetchTaskCounts(ctx, tasks)

	totalComments := 0
	for _, count := range commentCounts {
		totalComments += count
	}
	totalAttachments := 0
	for _, count := range attachmentCounts {
		totalAttachments += count
	}

	document := map[string]any{
		"project":            project,
		"summary":            summary,
		"priority_breakdown": priorityBreakdown(tasks),
		"tasks":              tasks,
		"task_comments":      commentCounts,
		"task_attachments":   attachmentCounts,
		"total_comments":     totalComments,
		"total_attachments":  totalAttachments,
		"generated_at":       time.Now().UTC().Format(time.RFC3339),
	}

	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encode project report: %w", err)
	}

	g.cache.Put(ctx, cache.ProjectSummaryKey(params.ProjectID), encoded, g.cacheTTL)

	return encoded, nil
}

// fetchTaskCounts fans out comment and attachment count lookups with bounded
// concurrency. A failed lookup defaults that task's count to zero and never
// fails the job.
func (g *Generator) fetchTaskCounts(
	ctx context.Context,
	tasks []upstream.Task,
) (map[int64]int, map[int64]int) {
	comments := make(map[int64]int, len(tasks))
	attachments := make(map[int64]int, len(tasks))

	var mu sync.Mutex
	group := errgroup.Group{}
	group.SetLimit(g.fanOutLimit)

	for _, task := range tasks {
		taskID := task.ID
		group.Go(func() error {
			commentCount, _ := g.clients.CommentCount(ctx, taskID)
			attachmentCount, _ := g.clients.AttachmentCount(ctx, taskID)

			mu.Lock()
			comments[taskID] = commentCount
			attachments[taskID] = attachmentCount
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return comments, attachments
}
