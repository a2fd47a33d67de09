package temporal

import (
	"errors"

	"go.temporal.io/api/serviceerror"

	"github.com/agentforge/workflow-engine/engine"
)

// mapSignalError normalizes Temporal service errors returned from signal
// delivery into the engine's backend-agnostic sentinels, so callers can use
// errors.Is without importing the Temporal SDK.
func mapSignalError(err error) error {
	if err == nil {
		return nil
	}
	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		return engine.ErrWorkflowNotFound
	}
	var failedPrecondition *serviceerror.FailedPrecondition
	if errors.As(err, &failedPrecondition) {
		return engine.ErrWorkflowCompleted
	}
	return err
}
