package action

import "time"

// Type identifies an action kind. Rules and workflow steps reference
// actions by type string; dispatch is a closed switch over this enum.
type Type string

const (
	// TypeAnalyze triggers an analysis run for a plant.
	TypeAnalyze Type = "analyze"

	// TypeCapture requests an image capture for a plant.
	TypeCapture Type = "capture"

	// TypeNotify sends a notification.
	TypeNotify Type = "notify"

	// TypeCreateTask creates a task record.
	TypeCreateTask Type = "create_task"
)

// Valid reports whether the type is a known action kind.
func (t Type) Valid() bool {
	switch t {
	case TypeAnalyze, TypeCapture, TypeNotify, TypeCreateTask:
		return true
	}
	return false
}

// Descriptor is one entry in a rule's ordered action list.
type Descriptor struct {
	Type   Type           `json:"type"`
	Config map[string]any `json:"config,omitempty"`
}

// Task is created as a side effect of a create_task action. The engine
// inserts tasks but never reads them back; they are consumed elsewhere.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	PlantID     string     `json:"plantId,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task statuses.
const (
	StatusOpen = "open"
	StatusDone = "done"
)
