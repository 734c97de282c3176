package batch

import "errors"

var (
	// ErrNotFound indicates the requested batch does not exist.
	ErrNotFound = errors.New("batch: batch not found")

	// ErrInvalidStatus indicates an execution attempt on a batch that
	// is neither pending nor failed.
	ErrInvalidStatus = errors.New("batch: invalid status for execution")
)
