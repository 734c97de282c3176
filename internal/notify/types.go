package notify

import "time"

// Notification is a persisted message for the grower.
//
// Notifications are written by the engine (rule actions, workflow steps,
// anomaly alerts) and read by the dashboard. Acknowledged notifications
// are retained for 30 days and then cleaned up.
type Notification struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`

	// Payload carries the original action/step config for the UI.
	Payload map[string]any `json:"payload,omitempty"`

	Acknowledged   bool       `json:"acknowledged"`
	CreatedAt      time.Time  `json:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// DefaultChannel is used when a notification config names no channel.
const DefaultChannel = "alerts"
