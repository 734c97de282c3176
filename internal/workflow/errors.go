package workflow

import "errors"

var (
	// ErrNotFound indicates the requested workflow does not exist.
	ErrNotFound = errors.New("workflow: workflow not found")

	// ErrDisabled indicates the workflow exists but is not enabled.
	ErrDisabled = errors.New("workflow: workflow is disabled")
)
