package rule

import (
	"time"

	"github.com/canopyops/canopy-core/internal/action"
)

// Rule is an ordered list of actions executed as a unit.
//
// A rule may belong to a schedule (ScheduleID set), in which case the
// scheduler runs it whenever the schedule comes due. Rules are never
// auto-deleted by the engine.
type Rule struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	PlantID    string              `json:"plantId,omitempty"`
	ScheduleID string              `json:"scheduleId,omitempty"`
	Enabled    bool                `json:"enabled"`
	Actions    []action.Descriptor `json:"actions"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// ActionResult is one entry in an execution's result list. Result is
// set when the action ran, Error when it failed. Unknown action types
// produce no entry at all.
type ActionResult struct {
	Action action.Type    `json:"action"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Execution is the audit record of one rule run.
type Execution struct {
	ID         string         `json:"id"`
	RuleID     string         `json:"ruleId"`
	ExecutedAt time.Time      `json:"executedAt"`
	Results    []ActionResult `json:"results"`
	Success    bool           `json:"success"`
}
