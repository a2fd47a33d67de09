package workflow

// executor.go is the graph interpreter: the pre/execute/post pipeline that
// advances an execution across nodes.
//
// The interpreter is split the way the teacher splits its durable run loop:
// an immutable per-run loop struct (Executor) holding the workflow and its
// collaborators, plus a separate mutable state struct (ExecutionState,
// already defined in types.go) for the fields that change every iteration.
// This keeps the fan-out of collaborators (dispatcher, review handler,
// rubric engine, listener) off the hot loop's parameter lists.

import (
	"context"
	"fmt"
	"time"
)

// DefaultAutoBacktrackCap is the hard ceiling on rubric-driven auto
// backtracks per source node, per execution, absent an engine override (see
// design notes: the reference leaves this configurable at engine level).
const DefaultAutoBacktrackCap = 3

// ExecutionResultKind is the closed set of terminal outcomes the executor
// can produce.
type ExecutionResultKind string

const (
	ResultCompleted ExecutionResultKind = "completed"
	ResultPaused    ExecutionResultKind = "paused"
	ResultRejected  ExecutionResultKind = "rejected"
	ResultFailure   ExecutionResultKind = "failure"
)

// ExecutionResult is the executor's output: exactly one of Completed,
// Paused, Rejected or Failure semantics, discriminated by Kind.
type ExecutionResult struct {
	Kind       ExecutionResultKind
	State      *ExecutionState
	ExitStatus ExitStatus // Completed only
	Reason     string     // Rejected/Failure only
	Cause      error      // Failure only
}

// ExecutionListener receives every snapshot the interpreter produces. The
// service layer typically implements this to persist snapshots, replacing
// any prior snapshot for the same executionId.
type ExecutionListener interface {
	// OnSnapshot fires before any non-end node executes (reason
	// "checkpoint" — the inter-node durability boundary) and once more for
	// every terminal outcome (reason completed/paused/rejected/failed).
	OnSnapshot(ctx context.Context, snap *ExecutionSnapshot)
}

// NodeExecutor dispatches a single node kind and returns its NodeResult.
// Implementations must not mutate the Workflow; they mutate context only via
// ExecutionContext.
type NodeExecutor interface {
	Execute(ctx context.Context, ec *ExecutionContext, node *Node) (NodeResult, error)
}

// Dispatcher resolves a node kind to its executor. The node package
// implements this over the full closed set of kinds.
type Dispatcher interface {
	Dispatch(kind NodeKind) (NodeExecutor, bool)
}

// ReviewDecisionKind is the closed set of human-review outcomes.
type ReviewDecisionKind string

const (
	ReviewApprove   ReviewDecisionKind = "approve"
	ReviewReject    ReviewDecisionKind = "reject"
	ReviewBacktrack ReviewDecisionKind = "backtrack"
	ReviewModify    ReviewDecisionKind = "modify"
)

// ReviewDecision is the sum type returned by a ReviewHandler.
type ReviewDecision struct {
	Kind              ReviewDecisionKind
	Reason            string            // Reject/Backtrack
	TargetNode        string            // Backtrack
	ContextOverrides  map[string]any    // Backtrack/Modify
}

// ReviewHandler implements the human-review post-processor stage.
type ReviewHandler interface {
	Review(ctx context.Context, state *ExecutionState, node *Node, result NodeResult) (ReviewDecision, error)
}

// RubricEngine evaluates a node's output against a named rubric.
type RubricEngine interface {
	Evaluate(ctx context.Context, rubricID string, output string, metadata map[string]any) (*RubricEvaluation, error)
	PassThreshold(rubricID string) float64
}

// Executor is the graph interpreter. It is immutable once constructed; all
// mutable run state lives on the ExecutionState passed to Run/Resume.
type Executor struct {
	Workflow          *Workflow
	Dispatcher        Dispatcher
	Resolver          TemplateResolver
	Review            ReviewHandler
	Rubric            RubricEngine
	Listener          ExecutionListener
	AutoBacktrackCap  int
	Clock             func() time.Time
}

// NewExecutor constructs an Executor. autoBacktrackCap <= 0 selects
// DefaultAutoBacktrackCap.
func NewExecutor(wf *Workflow, dispatcher Dispatcher, resolver TemplateResolver, review ReviewHandler, rubric RubricEngine, listener ExecutionListener, autoBacktrackCap int) *Executor {
	if autoBacktrackCap <= 0 {
		autoBacktrackCap = DefaultAutoBacktrackCap
	}
	return &Executor{
		Workflow:         wf,
		Dispatcher:       dispatcher,
		Resolver:         resolver,
		Review:           review,
		Rubric:           rubric,
		Listener:         listener,
		AutoBacktrackCap: autoBacktrackCap,
		Clock:            time.Now,
	}
}

// autoBacktrackCounts is mutable per-run bookkeeping for the rubric
// auto-backtrack ceiling; it is not part of ExecutionState because it never
// needs to survive a pause/resume round-trip (a resumed run gets a fresh
// ceiling, matching the per-execution-attempt semantics of the reference).
type autoBacktrackCounts map[string]int

// Run drives a freshly constructed ExecutionState to completion, pause, or
// failure.
func (e *Executor) Run(ctx context.Context, state *ExecutionState) (ExecutionResult, error) {
	return e.loop(ctx, state, autoBacktrackCounts{})
}

// Resume rehydrates an ExecutionState from a snapshot and re-enters the main
// loop at snapshot.currentNode.
func (e *Executor) Resume(ctx context.Context, snap *ExecutionSnapshot) (ExecutionResult, error) {
	state := FromSnapshot(snap)
	return e.loop(ctx, state, autoBacktrackCounts{})
}

func (e *Executor) loop(ctx context.Context, state *ExecutionState, autoCaps autoBacktrackCounts) (ExecutionResult, error) {
	for {
		select {
		case <-ctx.Done():
			return e.fail(ctx, state, ctx.Err(), "cancelled"), nil
		default:
		}

		node, ok := e.Workflow.Nodes[state.CurrentNode]
		if !ok {
			return e.fail(ctx, state, fmt.Errorf("workflow: current node %q not found", state.CurrentNode), "unknown node"), nil
		}

		if node.Kind != KindEnd {
			e.snapshot(ctx, state, ReasonCheckpoint)
		}

		before := ContextSnapshot(state.Context).Clone()

		exec, ok := e.Dispatcher.Dispatch(node.Kind)
		if !ok {
			return e.fail(ctx, state, fmt.Errorf("workflow: no executor for kind %q", node.Kind), "unhandled node kind"), nil
		}

		ec := NewExecutionContext(state, e.Resolver, e.Workflow)
		result, err := exec.Execute(ctx, ec, node)
		if err != nil {
			result = FailureResult(err.Error(), err)
		}

		if node.Kind == KindEnd {
			state.History.AppendStep(ExecutionStep{NodeID: node.ID, StateBefore: before, Result: result, Timestamp: e.now()})
			return e.complete(ctx, state, ExitStatus(result.Output)), nil
		}

		terminal, next, retrying, err := e.postProcess(ctx, state, node, before, result, autoCaps)
		if err != nil {
			return e.fail(ctx, state, err, "post-processor error"), nil
		}
		if terminal != nil {
			return *terminal, nil
		}

		if result.Status == StatusPending {
			return e.pause(ctx, state), nil
		}

		if !retrying {
			state.CurrentNode = next
		}
	}
}

func (e *Executor) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

func (e *Executor) complete(ctx context.Context, state *ExecutionState, status ExitStatus) ExecutionResult {
	e.snapshot(ctx, state, ReasonCompleted)
	return ExecutionResult{Kind: ResultCompleted, State: state, ExitStatus: status}
}

func (e *Executor) pause(ctx context.Context, state *ExecutionState) ExecutionResult {
	e.snapshot(ctx, state, ReasonPaused)
	return ExecutionResult{Kind: ResultPaused, State: state}
}

func (e *Executor) reject(ctx context.Context, state *ExecutionState, reason string) ExecutionResult {
	e.snapshot(ctx, state, ReasonRejected)
	return ExecutionResult{Kind: ResultRejected, State: state, Reason: reason}
}

func (e *Executor) fail(ctx context.Context, state *ExecutionState, cause error, reason string) ExecutionResult {
	e.snapshot(ctx, state, ReasonFailed)
	return ExecutionResult{Kind: ResultFailure, State: state, Cause: cause, Reason: reason}
}

// snapshot builds an ExecutionSnapshot and hands it to the listener. The
// executor does not own storage; it only guarantees a snapshot is produced
// before every non-end node and for every terminal outcome, per the
// error-handling design.
func (e *Executor) snapshot(ctx context.Context, state *ExecutionState, reason CheckpointReason) {
	if e.Listener == nil {
		return
	}
	e.Listener.OnSnapshot(ctx, state.ToSnapshot(reason, e.now()))
}
