// Package service implements ExecutionService, the entry point wiring the
// graph interpreter (workflow.Executor), node dispatch (node.Table), and
// every ancillary collaborator together behind the REST surface described
// in spec §2/§6 (CRUD at /workflows, runtime at /executions).
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentforge/workflow-engine/consensus"
	"github.com/agentforge/workflow-engine/node"
	"github.com/agentforge/workflow-engine/plan"
	"github.com/agentforge/workflow-engine/policy"
	"github.com/agentforge/workflow-engine/rubric"
	"github.com/agentforge/workflow-engine/state"
	"github.com/agentforge/workflow-engine/telemetry"
	"github.com/agentforge/workflow-engine/workflow"
)

// ExecutionService is the per-process wiring of the workflow engine's
// ancillary singletons (spec §2): AgentRegistry, RubricEngine,
// TemplateResolver, WorkflowRepository, WorkflowStateRepository,
// ActionHandlerRegistry, and TenantContext (the tenant id threaded through
// every call below) all come together here.
type ExecutionService struct {
	Workflows state.WorkflowRepository
	States    state.WorkflowStateRepository

	Agents  node.AgentInvoker
	Tools   node.ToolCaller
	Actions node.ActionHandlerRegistry
	Generic node.GenericHandlerRegistry
	Planner plan.Planner
	Policy  policy.Engine

	Resolver workflow.TemplateResolver
	Review   workflow.ReviewHandler

	BranchConcurrency int
	AutoBacktrackCap  int

	Log telemetry.Logger
}

// NewExecutionService wires defaults for fields that may be left zero
// (resolver, branch concurrency, logger).
func NewExecutionService(workflows state.WorkflowRepository, states state.WorkflowStateRepository, agents node.AgentInvoker, tools node.ToolCaller) *ExecutionService {
	return &ExecutionService{
		Workflows:         workflows,
		States:            states,
		Agents:            agents,
		Tools:             tools,
		Resolver:          workflow.SimpleResolver{},
		BranchConcurrency: 8,
		Log:               telemetry.NewNoopLogger(),
	}
}

// snapshotListener persists every snapshot the executor emits (checkpoint
// and terminal alike) to the WorkflowStateRepository, satisfying the
// invariant that every terminated execution has exactly one terminal
// snapshot and every suspension point leaves state serializable (spec §5).
type snapshotListener struct {
	states state.WorkflowStateRepository
	log    telemetry.Logger
}

func (l *snapshotListener) OnSnapshot(ctx context.Context, snap *workflow.ExecutionSnapshot) {
	if err := l.states.Save(ctx, snap); err != nil && l.log != nil {
		l.log.Error(ctx, "service: failed to persist execution snapshot", "executionId", snap.ExecutionID, "err", err)
	}
}

// policyGatedToolCaller consults an policy.Engine before delegating to the
// underlying tool transport, so per-tenant allow/block lists and rate
// limits apply uniformly to both plan-step tool calls and action-node Send
// steps.
type policyGatedToolCaller struct {
	next   node.ToolCaller
	engine policy.Engine
}

var _ node.ToolCaller = policyGatedToolCaller{}

func (p policyGatedToolCaller) CallTool(ctx context.Context, tenantID, name string, arguments map[string]any, timeout time.Duration) (map[string]any, error) {
	decision, err := p.engine.Decide(ctx, tenantID, name)
	if err != nil {
		return nil, fmt.Errorf("service: policy evaluation failed: %w", err)
	}
	if !decision.Allowed {
		return nil, fmt.Errorf("service: tool call denied by policy: %s", decision.Reason)
	}
	return p.next.CallTool(ctx, tenantID, name, arguments, timeout)
}

func (s *ExecutionService) tools() node.ToolCaller {
	if s.Policy == nil {
		return s.Tools
	}
	return policyGatedToolCaller{next: s.Tools, engine: s.Policy}
}

func (s *ExecutionService) buildExecutor(wf *workflow.Workflow, subWorkflows node.SubWorkflowRunner) *workflow.Executor {
	tools := s.tools()

	rubricEngine := rubric.NewEngine(func(id string) (string, bool) {
		src, ok := wf.Rubrics[id]
		return src, ok
	})

	planExecutor := plan.NewExecutor(s.Agents, tools, s.Planner, nil)

	consensusEvaluator := &consensus.Evaluator{
		Judge: s.Agents,
		AgentLookup: func(id string) (*workflow.AgentConfig, bool) {
			a, ok := wf.Agents[id]
			return a, ok
		},
	}

	concurrency := s.BranchConcurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	table := node.NewTable(node.Deps{
		Agents:          s.Agents,
		Tools:           tools,
		Actions:         s.Actions,
		Generics:        s.Generic,
		Consensus:       consensusEvaluator,
		SubWorkflows:    subWorkflows,
		Plans:           planExecutor,
		Futures:         node.NewMemFutures(),
		BranchSemaphore: make(chan struct{}, concurrency),
	})

	resolver := s.Resolver
	if resolver == nil {
		resolver = workflow.SimpleResolver{}
	}

	return workflow.NewExecutor(wf, table, resolver, s.Review, rubricEngine, &snapshotListener{states: s.States, log: s.Log}, s.AutoBacktrackCap)
}

// Start begins a new execution of workflowID for tenant, seeding the
// execution context and returning once the interpreter suspends or
// terminates. executionID is caller-supplied; the service does not
// deduplicate concurrent executions sharing one id (spec §5).
func (s *ExecutionService) Start(ctx context.Context, tenant, workflowID, executionID string, seed map[string]any) (*workflow.ExecutionResult, error) {
	wf, ok, err := s.Workflows.FindByID(ctx, tenant, workflowID)
	if err != nil {
		return nil, fmt.Errorf("service: load workflow: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("service: workflow %q not found for tenant %q", workflowID, tenant)
	}
	if executionID == "" {
		executionID = uuid.NewString()
	}

	exec := s.buildExecutor(wf, s.subWorkflowRunner())
	execState := workflow.NewExecutionState(executionID, workflowID, tenant, wf.StartNode, seed)
	result, err := exec.Run(ctx, execState)
	return &result, err
}

// Resume continues a paused or rejected-pending execution from its last
// persisted snapshot.
func (s *ExecutionService) Resume(ctx context.Context, tenant, executionID string) (*workflow.ExecutionResult, error) {
	snap, ok, err := s.States.FindByExecutionID(ctx, tenant, executionID)
	if err != nil {
		return nil, fmt.Errorf("service: load snapshot: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("service: no snapshot for execution %q", executionID)
	}
	wf, ok, err := s.Workflows.FindByID(ctx, tenant, snap.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("service: load workflow: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("service: workflow %q not found for tenant %q", snap.WorkflowID, tenant)
	}

	exec := s.buildExecutor(wf, s.subWorkflowRunner())
	result, err := exec.Resume(ctx, snap)
	return &result, err
}

// subWorkflowRunner recurses back into the service for sub-workflow nodes,
// using the same engine instance (spec §4.2.6).
func (s *ExecutionService) subWorkflowRunner() node.SubWorkflowRunner {
	return subWorkflowRunnerFunc(func(ctx context.Context, tenant, workflowID string, seed map[string]any) (map[string]any, error) {
		result, err := s.Start(ctx, tenant, workflowID, "", seed)
		if err != nil {
			return nil, err
		}
		if result.State == nil {
			return nil, fmt.Errorf("service: sub-workflow %q produced no final state", workflowID)
		}
		return result.State.Context, nil
	})
}

type subWorkflowRunnerFunc func(ctx context.Context, tenant, workflowID string, seed map[string]any) (map[string]any, error)

func (f subWorkflowRunnerFunc) RunSubWorkflow(ctx context.Context, tenant, workflowID string, seed map[string]any) (map[string]any, error) {
	return f(ctx, tenant, workflowID, seed)
}
