package schedule

import "errors"

var (
	// ErrNotFound indicates the requested schedule or analysis
	// scheduler does not exist.
	ErrNotFound = errors.New("schedule: not found")

	// ErrNotClaimed indicates a due item was advanced by a concurrent
	// pass between the due query and the claim update.
	ErrNotClaimed = errors.New("schedule: item already claimed")

	// ErrDisabled indicates a manual trigger named a disabled schedule.
	ErrDisabled = errors.New("schedule: schedule is disabled")
)
