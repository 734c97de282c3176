package rule

import "errors"

var (
	// ErrNotFound indicates the requested rule does not exist.
	ErrNotFound = errors.New("rule: rule not found")

	// ErrDisabled indicates the rule exists but is not enabled.
	// Executing a disabled rule is a caller error, never silently skipped.
	ErrDisabled = errors.New("rule: rule is disabled")
)
