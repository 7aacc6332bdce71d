package domain

import (
	"encoding/json"
	"time"
)

type ReportKind string

const (
	ReportKindProject ReportKind = "project"
	ReportKindSystem  ReportKind = "system"
)

type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusCompleted  ReportStatus = "completed"
	ReportStatusFailed     ReportStatus = "failed"
)

// Terminal reports whether a status accepts no further transitions.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusCompleted || s == ReportStatusFailed
}

// Report is the persisted record of one requested aggregation job.
// Status moves pending -> generating -> completed|failed and never regresses.
type Report struct {
	ID           string
	Name         string
	Kind         ReportKind
	Status       ReportStatus
	Parameters   json.RawMessage
	Result       json.RawMessage
	ErrorMessage string
	RequestedBy  int64
	CreatedAt    time.Time
	CompletedAt  *time.Time
	ExpiresAt    *time.Time
}

// Expired reports whether the record is past its expiry at the given instant.
func (r *Report) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// ReportParams is the parameter document stored with every job. The capability
// token is forwarded on authenticated fan-out calls during generation.
type ReportParams struct {
	ProjectID int64  `json:"project_id,omitempty"`
	Token     string `json:"token,omitempty"`
}

func (p ReportParams) Encode() json.RawMessage {
	encoded, _ := json.Marshal(p)
	return encoded
}

func DecodeParams(raw json.RawMessage) (ReportParams, error) {
	var params ReportParams
	if len(raw) == 0 {
		return params, nil
	}
	err := json.Unmarshal(raw, &params)
	return params, err
}

// QueueMessage is the transport format handed to queue backends.
type QueueMessage struct {
	ReportID    string     `json:"report_id"`
	Kind        ReportKind `json:"kind"`
	RequestedBy int64      `json:"requested_by"`
	Attempt     int        `json:"attempt"`
	RequestedAt time.Time  `json:"requested_at"`
}

type ReportFilter struct {
	RequestedBy *int64
	Kind        ReportKind
	Status      ReportStatus
	Page        int
	PerPage     int
}
