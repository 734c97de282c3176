package action

import "errors"

var (
	// ErrUnknownType indicates an action type outside the known set.
	// Callers are expected to log a warning and skip, not abort.
	ErrUnknownType = errors.New("action: unknown action type")

	// ErrTaskNotFound indicates the requested task does not exist.
	ErrTaskNotFound = errors.New("action: task not found")

	// ErrInvalidConfig indicates an action config missing required fields.
	ErrInvalidConfig = errors.New("action: invalid config")
)
