package engine

import "context"

// wfCtxKey stashes a WorkflowContext inside a Go context passed to activities
// so activity code can retrieve the originating workflow context (e.g. for
// nested sub-workflow dispatch).
type wfCtxKey struct{}

// activityCtxKey marks contexts that originate from an activity invocation,
// distinguishing true workflow contexts from activity contexts that merely
// carry the originating WorkflowContext for reference.
type activityCtxKey struct{}

// WithWorkflowContext returns a child context carrying wf. Engine adapters
// use this when invoking activity handlers so downstream code can recover the
// workflow context if needed.
func WithWorkflowContext(ctx context.Context, wf WorkflowContext) context.Context {
	return context.WithValue(ctx, wfCtxKey{}, wf)
}

// WithActivityContext marks ctx as originating from an activity invocation.
func WithActivityContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, activityCtxKey{}, true)
}

// IsActivityContext reports whether ctx was marked via WithActivityContext.
func IsActivityContext(ctx context.Context) bool {
	b, ok := ctx.Value(activityCtxKey{}).(bool)
	return ok && b
}

// WorkflowContextFromContext extracts a WorkflowContext from ctx, or nil if
// none is attached.
func WorkflowContextFromContext(ctx context.Context) WorkflowContext {
	if wf, ok := ctx.Value(wfCtxKey{}).(WorkflowContext); ok {
		return wf
	}
	return nil
}
