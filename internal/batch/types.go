package batch

import "time"

// Batch statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// AnalysisBatch drives a fixed list of plants through one analysis
// type. Created pending; a pending or failed batch can be executed,
// which transitions it to running and finally completed or failed.
type AnalysisBatch struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	PlantIDs       []string         `json:"plantIds"`
	Type           string           `json:"type"`
	Status         string           `json:"status"`
	TotalCount     int              `json:"totalCount"`
	CompletedCount int              `json:"completedCount"`
	FailedCount    int              `json:"failedCount"`
	StartedAt      *time.Time       `json:"startedAt,omitempty"`
	CompletedAt    *time.Time       `json:"completedAt,omitempty"`
	Results        []map[string]any `json:"results"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// ExecResult summarises one batch execution.
type ExecResult struct {
	BatchID        string           `json:"batchId"`
	ExecutedAt     time.Time        `json:"executedAt"`
	TotalCount     int              `json:"totalCount"`
	CompletedCount int              `json:"completedCount"`
	FailedCount    int              `json:"failedCount"`
	Results        []map[string]any `json:"results"`
	Success        bool             `json:"success"`
}
