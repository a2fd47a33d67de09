// Package node implements node execution dispatch over the closed set of
// node kinds: standard, parallel-with-consensus, fork, join, loop,
// sub-workflow, action, generic, end.
package node

import (
	"context"
	"time"

	"github.com/agentforge/workflow-engine/workflow"
)

// AgentInvoker invokes a configured agent with a resolved prompt and returns
// its raw text response. Implemented by agentprovider.Registry.
type AgentInvoker interface {
	Invoke(ctx context.Context, agent *workflow.AgentConfig, prompt string) (output string, metadata map[string]any, err error)
}

// ToolCaller dispatches a tool invocation over the MCP split-pipe transport.
// Implemented by transport/mcp.Router.
type ToolCaller interface {
	CallTool(ctx context.Context, tenantID, name string, arguments map[string]any, timeout time.Duration) (result map[string]any, err error)
}

// ActionHandler is a registered in-process or transport-backed handler for
// action-node Send steps.
type ActionHandler interface {
	Handle(ctx context.Context, ec *workflow.ExecutionContext, payload map[string]any) error
}

// ActionHandlerRegistry resolves a handler id to an ActionHandler.
type ActionHandlerRegistry interface {
	Lookup(handlerID string) (ActionHandler, bool)
}

// GenericHandler implements a generic-node's executorType-specific logic.
type GenericHandler interface {
	Handle(ctx context.Context, ec *workflow.ExecutionContext, config map[string]any) (workflow.NodeResult, error)
}

// GenericHandlerRegistry resolves an executorType to a GenericHandler.
type GenericHandlerRegistry interface {
	Lookup(executorType string) (GenericHandler, bool)
}

// ConsensusEvaluator combines branch results into a single outcome. See the
// consensus package for the concrete strategies.
type ConsensusEvaluator interface {
	Evaluate(ctx context.Context, branches []workflow.Branch, results []BranchResult, payload *workflow.ParallelPayload) (ConsensusOutcome, error)
}

// BranchResult is one branch's raw outcome, fed to the consensus evaluator.
type BranchResult struct {
	BranchID string
	Result   workflow.NodeResult
	Err      error
}

// ConsensusOutcome is the consensus evaluator's verdict.
type ConsensusOutcome struct {
	Reached      bool
	WinningIndex int
	Output       string
	Metadata     map[string]any
}

// SubWorkflowRunner recursively invokes the engine for a sub-workflow node.
type SubWorkflowRunner interface {
	RunSubWorkflow(ctx context.Context, tenantID, workflowID string, seed map[string]any) (finalContext map[string]any, err error)
}

// PlanRunner delegates standard-node execution to the plan subsystem when
// planning is enabled. Implemented by plan.Executor.
type PlanRunner interface {
	RunPlan(ctx context.Context, ec *workflow.ExecutionContext, node *workflow.Node) (workflow.NodeResult, error)
}

// Futures tracks in-flight fork targets so a later Join node can await them.
// One instance is shared across all node executors for a single execution.
type Futures interface {
	Store(key string, targets []string, futures map[string]*Future)
	Load(key string) (map[string]*Future, bool)
	Delete(key string)
}

// Future is a single fork target's in-flight or completed outcome.
type Future struct {
	Done   chan struct{}
	Result workflow.NodeResult
	Err    error
}

func NewFuture() *Future { return &Future{Done: make(chan struct{})} }

func (f *Future) Complete(result workflow.NodeResult, err error) {
	f.Result = result
	f.Err = err
	close(f.Done)
}

func (f *Future) Wait(ctx context.Context) (workflow.NodeResult, error) {
	select {
	case <-ctx.Done():
		return workflow.NodeResult{}, ctx.Err()
	case <-f.Done:
		return f.Result, f.Err
	}
}
