package node

import (
	"context"
	"fmt"

	"github.com/agentforge/workflow-engine/workflow"
)

// Table is a Dispatcher populated at startup, mapping each node kind to its
// executor. This reproduces the reference's runtime downcast dispatcher as a
// direct map lookup over tagged variants (design notes: polymorphic nodes).
type Table map[workflow.NodeKind]workflow.NodeExecutor

func (t Table) Dispatch(kind workflow.NodeKind) (workflow.NodeExecutor, bool) {
	e, ok := t[kind]
	return e, ok
}

// Deps bundles every collaborator node executors need. It is constructed
// once per ExecutionService and shared across all running executions.
type Deps struct {
	Agents          AgentInvoker
	Tools           ToolCaller
	Actions         ActionHandlerRegistry
	Generics        GenericHandlerRegistry
	Consensus       ConsensusEvaluator
	SubWorkflows    SubWorkflowRunner
	Plans           PlanRunner
	Futures         Futures
	BranchSemaphore chan struct{}
	DefaultTimeout  int64 // milliseconds; not read by NewTable or any executor in this package
}

// NewTable builds the full dispatch table over the closed set of node
// kinds. Fork and loop targets are dispatched back through the same table,
// so a fork branch or loop body may itself be any dispatchable node kind.
func NewTable(deps Deps) Table {
	t := Table{}

	dispatchTarget := func(ctx context.Context, ec *workflow.ExecutionContext, targetID string) (workflow.NodeResult, error) {
		target, ok := ec.Node(targetID)
		if !ok {
			return workflow.NodeResult{}, fmt.Errorf("node dispatch: target %q not found", targetID)
		}
		exec, ok := t.Dispatch(target.Kind)
		if !ok {
			return workflow.NodeResult{}, fmt.Errorf("node dispatch: no executor for kind %q", target.Kind)
		}
		return exec.Execute(ctx, ec, target)
	}

	t[workflow.KindStandard] = &StandardExecutor{Agents: deps.Agents, Plans: deps.Plans}
	t[workflow.KindParallel] = &ParallelExecutor{Agents: deps.Agents, Consensus: deps.Consensus, Semaphore: deps.BranchSemaphore}
	t[workflow.KindFork] = &ForkExecutor{Futures: deps.Futures, Dispatch: dispatchTarget}
	t[workflow.KindJoin] = &JoinExecutor{Futures: deps.Futures}
	t[workflow.KindLoop] = &LoopExecutor{Dispatch: dispatchTarget}
	t[workflow.KindSubWorkflow] = &SubWorkflowExecutor{Runner: deps.SubWorkflows}
	t[workflow.KindAction] = &ActionExecutor{Actions: deps.Actions, Tools: deps.Tools}
	t[workflow.KindGeneric] = &GenericExecutor{Generics: deps.Generics}
	t[workflow.KindEnd] = &EndExecutor{}

	return t
}
