// Package engine defines the durable-execution abstractions the workflow
// executor is built against. It provides a pluggable interface so the
// executor can target Temporal, an in-memory adapter for tests, or any other
// backend without the domain packages changing.
package engine

import (
	"context"
	"time"

	"github.com/agentforge/workflow-engine/telemetry"
)

type (
	// Engine abstracts workflow registration and execution so adapters
	// (Temporal, in-memory, or custom) can be swapped without touching
	// executor code. Implementations translate these generic types into
	// backend-specific primitives.
	Engine interface {
		// RegisterWorkflow registers a workflow definition with the engine.
		// Must be called during service initialization before starting
		// workers. Returns an error if the name is already registered.
		RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error

		// RegisterActivity registers an activity definition with the
		// engine. Must be called during initialization before starting
		// workers. Returns an error if the name conflicts.
		RegisterActivity(ctx context.Context, def ActivityDefinition) error

		// StartWorkflow initiates a new workflow execution and returns a
		// handle for interacting with it. req.ID must be unique for the
		// engine instance.
		StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
	}

	// WorkflowDefinition binds a workflow handler to a logical name and
	// default task queue.
	WorkflowDefinition struct {
		// Name is the logical identifier registered with the engine (e.g. "ExecutionWorkflow").
		Name string
		// TaskQueue is the default queue used when starting new workflows.
		TaskQueue string
		// Handler is the workflow function invoked by the engine when the workflow executes.
		Handler WorkflowFunc
	}

	// WorkflowFunc is the workflow entry point. It receives a
	// WorkflowContext and arbitrary input, returning a result or error.
	// The function must be deterministic: same inputs and activity results
	// must produce the same execution sequence.
	WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

	// WorkflowContext exposes engine operations to workflow handlers within
	// the deterministic execution environment of a workflow run. It wraps
	// engine-specific contexts (Temporal workflow.Context, in-memory
	// contexts, etc.) behind a uniform API for activity execution, signal
	// handling, and observability.
	//
	// Implementations must preserve deterministic replay: operations that
	// interact with the engine (ExecuteActivity, SignalChannel) must
	// produce the same results on replay. Direct I/O, randomness, or
	// wall-clock access inside a workflow handler violates determinism.
	//
	// WorkflowContext is bound to a single workflow execution and must not
	// be shared across goroutines or cached outside the workflow function.
	WorkflowContext interface {
		// Context returns the Go context for the workflow. In
		// deterministic engines this is a replay-aware context; use it for
		// activity execution and cancellation propagation.
		Context() context.Context

		// WorkflowID returns the unique identifier for this execution.
		WorkflowID() string

		// RunID returns the engine-assigned run identifier.
		RunID() string

		// ExecuteActivity schedules an activity and blocks for its
		// result, populating result with the return value.
		ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error

		// ExecuteActivityAsync schedules an activity without blocking and
		// returns a Future. Enables concurrent node execution (fork,
		// parallel-with-consensus). Returns an error only if scheduling
		// itself fails; activity errors surface via Future.Get().
		ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error)

		// SignalChannel returns a channel for the given signal name.
		// Workflow code polls or blocks on it to react to external events
		// (pause, resume, clarification, tool results) delivered via the
		// engine's signaling mechanism.
		SignalChannel(name string) SignalChannel

		// Logger returns a logger scoped to this workflow execution.
		Logger() telemetry.Logger

		// Metrics returns a metrics recorder scoped to this execution.
		Metrics() telemetry.Metrics

		// Tracer returns a tracer for spans within the workflow.
		Tracer() telemetry.Tracer

		// Now returns the current workflow time in a deterministic,
		// replay-safe manner (e.g. Temporal's workflow.Now).
		Now() time.Time
	}

	// Future represents a pending activity result. Futures enable
	// concurrent activity execution: workflows launch several via
	// ExecuteActivityAsync and collect results later with Get(), which
	// blocks until the activity finishes.
	//
	// Calling Get() multiple times is safe and returns the same
	// result/error each time. Get() must be called before the workflow
	// exits; abandoned futures leak resources in some engines.
	Future interface {
		// Get blocks until the activity completes and decodes its result
		// into result.
		Get(ctx context.Context, result any) error

		// IsReady reports whether the activity has completed and Get()
		// will not block.
		IsReady() bool
	}

	// ActivityDefinition registers an activity handler with optional
	// defaults. Activities are stateless, short-lived tasks invoked from
	// workflows (node execution, tool calls, plan steps).
	ActivityDefinition struct {
		// Name is the logical identifier for the activity (e.g. "DispatchNodeActivity").
		Name string
		// Handler executes the activity logic when invoked.
		Handler ActivityFunc
		// Options configures retry/timeout behavior for the activity.
		Options ActivityOptions
	}

	// ActivityFunc handles an activity invocation. Unlike workflow
	// handlers, activities may perform side effects (I/O, API calls,
	// database access, LLM invocations).
	ActivityFunc func(ctx context.Context, input any) (any, error)

	// ActivityOptions configures retry and timeout behavior for an
	// activity.
	ActivityOptions struct {
		// Queue overrides the default activity queue. Empty means inherit
		// the workflow's task queue.
		Queue string
		// RetryPolicy controls retry behavior. Zero value means the
		// engine's default retry policy.
		RetryPolicy RetryPolicy
		// Timeout bounds the execution time of each activity attempt.
		// The Temporal adapter uses one minute when it is zero; the
		// in-memory engine does not enforce it.
		Timeout time.Duration
	}

	// WorkflowStartRequest describes how to launch a workflow execution.
	WorkflowStartRequest struct {
		// ID is the workflow identifier, unique within the engine scope.
		// Typically the execution ID.
		ID string
		// Workflow names the registered workflow definition to run.
		Workflow string
		// TaskQueue selects the queue to schedule the workflow on.
		TaskQueue string
		// Input is the payload passed to the workflow handler.
		Input any
		// Memo stores small diagnostic payloads alongside the execution.
		Memo map[string]any
		// SearchAttributes captures indexed metadata for visibility
		// queries (tenant ID, workflow name, status).
		SearchAttributes map[string]any
		// RetryPolicy controls restarts of the start attempt itself if
		// scheduling fails; distinct from activity retries.
		RetryPolicy RetryPolicy
	}

	// ActivityRequest contains the info needed to schedule an activity
	// from a workflow.
	ActivityRequest struct {
		// Name identifies the activity to execute; must match a
		// registered ActivityDefinition.
		Name string
		// Input is the payload passed to the activity handler.
		Input any
		// Queue optionally overrides the queue for this invocation.
		Queue string
		// RetryPolicy controls retry behavior for this invocation. Zero
		// value uses the definition's policy.
		RetryPolicy RetryPolicy
		// Timeout bounds this invocation's execution time.
		Timeout time.Duration
	}

	// WorkflowHandle lets callers interact with a running workflow.
	// Returned by Engine.StartWorkflow.
	WorkflowHandle interface {
		// Wait blocks until the workflow completes, decoding its return
		// value into result.
		Wait(ctx context.Context, result any) error

		// Signal sends an asynchronous message to the workflow.
		Signal(ctx context.Context, name string, payload any) error

		// Cancel requests cancellation of the workflow.
		Cancel(ctx context.Context) error
	}

	// RetryPolicy defines retry semantics shared by workflows and
	// activities. Zero-valued fields mean the engine uses its defaults.
	RetryPolicy struct {
		// MaxAttempts caps the total number of attempts. Zero means
		// unlimited retries.
		MaxAttempts int
		// InitialInterval is the delay before the first retry. Zero means
		// engine default.
		InitialInterval time.Duration
		// BackoffCoefficient multiplies the delay after each retry.
		// Values below 1 are treated as 1 (constant backoff).
		BackoffCoefficient float64
	}

	// SignalChannel exposes workflow signal delivery in an engine-agnostic
	// way. Implementations wrap engine-specific channels (Temporal signal
	// channels, in-process Go channels) behind blocking and non-blocking
	// receive helpers.
	SignalChannel interface {
		// Receive blocks until a signal value is delivered and decodes it
		// into dest.
		Receive(ctx context.Context, dest any) error
		// ReceiveAsync attempts a non-blocking receive, returning true
		// when dest was populated.
		ReceiveAsync(dest any) bool
	}
)
