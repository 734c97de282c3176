package notify

import "errors"

// Domain errors for the notify package.
var (
	// ErrNotFound is returned when a notification ID does not exist.
	ErrNotFound = errors.New("notify: notification not found")

	// ErrInvalidConfig is returned when a notification config has no
	// usable title or message.
	ErrInvalidConfig = errors.New("notify: invalid notification config")
)
