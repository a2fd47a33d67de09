package engine

import "errors"

// Sentinel errors returned by Engine implementations, normalized across
// backends so callers can classify failures with errors.Is regardless of
// which adapter (Temporal, in-memory) is in use.
var (
	// ErrWorkflowNotFound indicates the targeted workflow execution does not
	// exist or has already been garbage-collected by the backend.
	ErrWorkflowNotFound = errors.New("engine: workflow not found")

	// ErrWorkflowCompleted indicates an operation (typically Signal) was
	// attempted against a workflow that already finished.
	ErrWorkflowCompleted = errors.New("engine: workflow already completed")
)
