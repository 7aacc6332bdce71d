package worker

import (
	"math"

	"github.com/taskops/reporting-service/internal/upstream"
)

type taskSummary struct {
	TotalTasks          int     `json:"total_tasks"`
	CompletedTasks      int     `json:"completed_tasks"`
	PendingTasks        int     `json:"pending_tasks"`
	InProgressTasks     int     `json:"in_progress_tasks"`
	CancelledTasks      int     `json:"cancelled_tasks"`
	CompletionRate      float64 `json:"completion_rate"`
	TotalEstimatedHours float64 `json:"total_estimated_hours"`
	TotalActualHours    float64 `json:"total_actual_hours"`
	EfficiencyRatio     float64 `json:"efficiency_ratio"`
}

func summarizeTasks(tasks []upstream.Task) taskSummary {
	summary := taskSummary{TotalTasks: len(tasks)}

	for _, task := range tasks {
		switch task.Status {
		case upstream.TaskStatusCompleted:
			summary.CompletedTasks++
		case upstream.TaskStatusPending:
			summary.PendingTasks++
		case upstream.TaskStatusInProgress:
			summary.InProgressTasks++
		case upstream.TaskStatusCancelled:
			summary.CancelledTasks++
		}
		summary.TotalEstimatedHours += task.EstimatedHours
		summary.TotalActualHours += task.ActualHours
	}

	if summary.TotalTasks > 0 {
		summary.CompletionRate = round2(float64(summary.CompletedTasks) / float64(summary.TotalTasks) * 100)
	}
	if summary.TotalEstimatedHours > 0 {
		summary.EfficiencyRatio = round2(summary.TotalActualHours / summary.TotalEstimatedHours * 100)
	}

	return summary
}

func priorityBreakdown(tasks []upstream.Task) map[string]int {
	breakdown := make(map[string]int)
	for _, task := range tasks {
		priority := task.Priority
		if priority == "" {
			priority = "medium"
		}
		breakdown[priority]++
	}
	return breakdown
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
