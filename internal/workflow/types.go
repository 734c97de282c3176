package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Step kinds.
const (
	StepAnalyze = "analyze"
	StepCapture = "capture"
	StepNotify  = "notify"
	StepWait    = "wait"
	StepLoop    = "loop"
	StepIf      = "if"
)

// Condition kinds.
const (
	CondValue       = "value"
	CondEquals      = "equals"
	CondGreaterThan = "greater_than"
)

// DefaultWaitMillis is the pause applied by a wait step with no duration.
const DefaultWaitMillis = 1000

// Step is one node of a workflow's step tree. Which fields are
// meaningful depends on Kind: leaf kinds use Config, wait uses
// Duration, loop uses Count and Do, if uses Condition with Then/Else.
type Step struct {
	Kind      string         `json:"type"`
	Config    map[string]any `json:"config,omitempty"`
	Duration  int            `json:"duration,omitempty"`
	Count     int            `json:"count,omitempty"`
	Do        StepList       `json:"do,omitempty"`
	Condition *Condition     `json:"condition,omitempty"`
	Then      StepList       `json:"then,omitempty"`
	Else      StepList       `json:"else,omitempty"`
}

// StepList holds nested steps. Stored workflows may express a nested
// body as either a single step object or an array of steps; both decode
// into a StepList.
type StepList []Step

// UnmarshalJSON accepts either a single step object or an array of steps.
func (l *StepList) UnmarshalJSON(data []byte) error {
	var steps []Step
	if err := json.Unmarshal(data, &steps); err == nil {
		*l = steps
		return nil
	}

	var single Step
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("step list must be a step or array of steps: %w", err)
	}
	*l = StepList{single}
	return nil
}

// Condition is the predicate of an if step, evaluated against the
// shared data context. Unknown kinds evaluate to false.
type Condition struct {
	Kind      string  `json:"type"`
	Value     bool    `json:"value,omitempty"`
	Key       string  `json:"key,omitempty"`
	Expected  any     `json:"expected,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// Workflow is an ordered list of top-level steps executed sequentially.
type Workflow struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Steps     StepList  `json:"steps"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Execution is the audit record of one workflow run. Results holds one
// entry per top-level step, in order.
type Execution struct {
	ID            string           `json:"id"`
	WorkflowID    string           `json:"workflowId"`
	ExecutedAt    time.Time        `json:"executedAt"`
	StepsExecuted int              `json:"stepsExecuted"`
	Results       []map[string]any `json:"results"`
	Success       bool             `json:"success"`
}
