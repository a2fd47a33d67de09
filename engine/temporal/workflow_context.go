// This file implements the Temporal-backed engine.WorkflowContext. It is used
// to:
//   - execute activities with engine-owned defaults merged with per-call
//     overrides,
//   - access deterministic time,
//   - receive external signals (pause, resume, clarification, tool results)
//     in a replay-safe way.
//
// Temporal cancellation errors are normalized to context.Canceled so the
// workflow executor can classify cancellation uniformly across engine
// backends without depending on Temporal SDK error types.
package temporal

import (
	"context"
	"errors"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/agentforge/workflow-engine/engine"
	"github.com/agentforge/workflow-engine/telemetry"
)

type (
	temporalWorkflowContext struct {
		eng        *Engine
		ctx        workflow.Context
		workflowID string
		runID      string
		logger     telemetry.Logger
		metrics    telemetry.Metrics
		tracer     telemetry.Tracer
		baseCtx    context.Context
	}

	contextKey string

	temporalFuture struct {
		future workflow.Future
		ctx    workflow.Context
	}

	temporalSignalChannel struct {
		ctx workflow.Context
		ch  workflow.ReceiveChannel
	}
)

const (
	workflowIDKey contextKey = "temporal.workflow_id"
	runIDKey      contextKey = "temporal.run_id"
)

// NewWorkflowContext adapts a Temporal workflow.Context into engine.WorkflowContext
// for workflows that run in the same worker as the engine but were not
// started through it (e.g. a sub-workflow dispatched directly by name).
func NewWorkflowContext(e *Engine, ctx workflow.Context) engine.WorkflowContext {
	return newTemporalWorkflowContext(e, ctx)
}

func newTemporalWorkflowContext(e *Engine, ctx workflow.Context) *temporalWorkflowContext {
	info := workflow.GetInfo(ctx)
	return &temporalWorkflowContext{
		eng:        e,
		ctx:        ctx,
		workflowID: info.WorkflowExecution.ID,
		runID:      info.WorkflowExecution.RunID,
		logger:     e.logger,
		metrics:    e.metrics,
		tracer:     e.tracer,
		// Workflow execution is distributed and replayed; we cannot rely on a
		// process-local base-context registry here. Build from scratch and
		// rely on Temporal interceptors/propagators for trace context.
		baseCtx: context.Background(),
	}
}

// normalizeTemporalError translates Temporal cancellation errors to
// context.Canceled so callers can classify cancellation without importing
// the Temporal SDK.
func normalizeTemporalError(err error) error {
	if err == nil {
		return nil
	}
	if temporalsdk.IsCanceledError(err) {
		return context.Canceled
	}
	return err
}

func mergeRetryPolicies(base, override engine.RetryPolicy) engine.RetryPolicy {
	result := base
	if override.MaxAttempts != 0 {
		result.MaxAttempts = override.MaxAttempts
	}
	if override.InitialInterval != 0 {
		result.InitialInterval = override.InitialInterval
	}
	if override.BackoffCoefficient != 0 {
		result.BackoffCoefficient = override.BackoffCoefficient
	}
	return result
}

func convertRetryPolicy(r engine.RetryPolicy) *temporalsdk.RetryPolicy {
	if r.MaxAttempts == 0 && r.InitialInterval == 0 && r.BackoffCoefficient == 0 {
		return nil
	}
	policy := &temporalsdk.RetryPolicy{}
	if r.MaxAttempts > 0 {
		//nolint:gosec // bounded by policy validation at configuration time.
		policy.MaximumAttempts = int32(r.MaxAttempts)
	}
	if r.InitialInterval > 0 {
		policy.InitialInterval = r.InitialInterval
	}
	if r.BackoffCoefficient > 0 {
		policy.BackoffCoefficient = r.BackoffCoefficient
	}
	return policy
}

func (w *temporalWorkflowContext) Context() context.Context {
	ctx := context.WithValue(w.baseCtx, workflowIDKey, w.workflowID)
	ctx = context.WithValue(ctx, runIDKey, w.runID)
	return engine.WithWorkflowContext(ctx, w)
}

func (w *temporalWorkflowContext) WorkflowID() string { return w.workflowID }

func (w *temporalWorkflowContext) RunID() string { return w.runID }

func (w *temporalWorkflowContext) ExecuteActivity(_ context.Context, req engine.ActivityRequest, result any) error {
	actx := workflow.WithActivityOptions(w.ctx, w.activityOptionsFor(req.Name, req))
	fut := workflow.ExecuteActivity(actx, req.Name, req.Input)
	if err := fut.Get(actx, result); err != nil {
		return normalizeTemporalError(err)
	}
	return nil
}

func (w *temporalWorkflowContext) ExecuteActivityAsync(_ context.Context, req engine.ActivityRequest) (engine.Future, error) {
	if req.Name == "" {
		return nil, errors.New("temporal engine: activity name is required")
	}
	actx := workflow.WithActivityOptions(w.ctx, w.activityOptionsFor(req.Name, req))
	fut := workflow.ExecuteActivity(actx, req.Name, req.Input)
	return &temporalFuture{future: fut, ctx: actx}, nil
}

func (w *temporalWorkflowContext) SignalChannel(name string) engine.SignalChannel {
	ch := workflow.GetSignalChannel(w.ctx, name)
	return &temporalSignalChannel{ctx: w.ctx, ch: ch}
}

func (w *temporalWorkflowContext) Logger() telemetry.Logger   { return w.logger }
func (w *temporalWorkflowContext) Metrics() telemetry.Metrics { return w.metrics }
func (w *temporalWorkflowContext) Tracer() telemetry.Tracer   { return w.tracer }
func (w *temporalWorkflowContext) Now() time.Time             { return workflow.Now(w.ctx) }

func (w *temporalWorkflowContext) activityOptionsFor(name string, req engine.ActivityRequest) workflow.ActivityOptions {
	defaults := w.eng.activityDefaultsFor(name)

	queue := req.Queue
	if queue == "" {
		queue = defaults.Queue
	}
	if queue == "" {
		queue = w.eng.defaultQueue
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = defaults.Timeout
	}
	if timeout == 0 {
		timeout = time.Minute
	}

	retry := mergeRetryPolicies(defaults.RetryPolicy, req.RetryPolicy)

	return workflow.ActivityOptions{
		// Bounding ScheduleToStart keeps a workflow from blocking until its
		// run timeout when workers are unavailable.
		ScheduleToStartTimeout: timeout,
		StartToCloseTimeout:    timeout,
		TaskQueue:              queue,
		RetryPolicy:            convertRetryPolicy(retry),
	}
}

func (f *temporalFuture) Get(_ context.Context, result any) error {
	if err := f.future.Get(f.ctx, result); err != nil {
		return normalizeTemporalError(err)
	}
	return nil
}

func (f *temporalFuture) IsReady() bool { return f.future.IsReady() }

// Receive blocks until a signal is delivered on this channel. Temporal
// receives on the workflow's own context (not the ctx argument); ctx is
// still checked up front so callers can enforce deadlines deterministically.
func (r *temporalSignalChannel) Receive(ctx context.Context, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.ch.Receive(r.ctx, dest)
	return nil
}

func (r *temporalSignalChannel) ReceiveAsync(dest any) bool {
	return r.ch.ReceiveAsync(dest)
}

func (e *Engine) activityDefaultsFor(name string) engine.ActivityOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activityOptions[name]
}
