package upstream

// User mirrors the User service representation. It doubles as the verified
// requester identity injected by the auth middleware.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	IsActive bool   `json:"is_active"`
	IsAdmin  bool   `json:"is_admin"`
}

type Project struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	OwnerID int64  `json:"owner_id,omitempty"`
}

type Task struct {
	ID             int64   `json:"id"`
	ProjectID      int64   `json:"project_id"`
	Title          string  `json:"title"`
	Status         string  `json:"status"`
	Priority       string  `json:"priority,omitempty"`
	EstimatedHours float64 `json:"estimated_hours,omitempty"`
	ActualHours    float64 `json:"actual_hours,omitempty"`
	DueDate        string  `json:"due_date,omitempty"`
	AssigneeID     int64   `json:"assignee_id,omitempty"`
}

// Task status values used by aggregation. Unknown statuses are counted only
// in totals.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusCancelled  = "cancelled"
)
