package schedule

import "time"

// Schedule drives zero or more rules on a symbolic interval.
//
// CronExpression is stored for forward compatibility but never
// evaluated; resolution always goes through Interval.
type Schedule struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	CronExpression string     `json:"cronExpression,omitempty"`
	Interval       string     `json:"interval"`
	Enabled        bool       `json:"enabled"`
	LastRun        *time.Time `json:"lastRun,omitempty"`
	NextRun        *time.Time `json:"nextRun,omitempty"`
	RunCount       int        `json:"runCount"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// AnalysisScheduler drives a single recurring analysis for one plant.
type AnalysisScheduler struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	PlantID      string     `json:"plantId,omitempty"`
	AnalysisType string     `json:"analysisType"`
	Frequency    string     `json:"frequency"`
	TimeOfDay    string     `json:"timeOfDay,omitempty"`
	Enabled      bool       `json:"enabled"`
	LastRun      *time.Time `json:"lastRun,omitempty"`
	NextRun      *time.Time `json:"nextRun,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CheckResult summarises one scheduler pass. Checked counts due items
// found; Executed counts items claimed and advanced by this pass.
type CheckResult struct {
	Checked  int              `json:"checked"`
	Executed int              `json:"executed"`
	Results  []map[string]any `json:"results"`
}
