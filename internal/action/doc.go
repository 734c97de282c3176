// Package action implements the shared action library used by rules
// and workflows.
//
// An action is a small, idempotent side effect identified by a Type:
// triggering an analysis, requesting an image capture, sending a
// notification, or creating a task. The Dispatcher routes a type and
// config map to the matching collaborator and returns a structured
// result; unknown types surface ErrUnknownType so executors can skip
// them with a warning instead of aborting.
package action
