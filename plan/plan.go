// Package plan implements the plan subsystem: static and dynamic
// multi-step execution for standard nodes that opt into planning, the
// review-gate pause, and failure-driven plan revision.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agentforge/workflow-engine/node"
	"github.com/agentforge/workflow-engine/workflow"
)

// Planner generates an ordered step list for a dynamic-mode node, given the
// node's prompt (already template-resolved) and its planning constraints.
type Planner interface {
	Plan(ctx context.Context, agent *workflow.AgentConfig, prompt string, constraints map[string]any) ([]workflow.PlannedStep, error)

	// Replan is invoked after a step failure, with the failed step and its
	// error folded into the prompt so the planner can revise.
	Replan(ctx context.Context, agent *workflow.AgentConfig, prompt string, previous []workflow.PlannedStep, failedStep int, failure string) ([]workflow.PlannedStep, error)
}

// Observer is notified of plan lifecycle events, mirroring the teacher's
// planner-event publication pattern. Executor calls its Observer without a
// nil check; NewExecutor substitutes NoopObserver for a nil Observer.
type Observer interface {
	PlanGenerated(nodeID string, steps []workflow.PlannedStep)
	StepStarted(nodeID string, index int, step workflow.PlannedStep)
	StepCompleted(nodeID string, index int, output string)
	StepFailed(nodeID string, index int, err error)
	PlanRevised(nodeID string, steps []workflow.PlannedStep)
}

// NoopObserver discards all events.
type NoopObserver struct{}

func (NoopObserver) PlanGenerated(string, []workflow.PlannedStep) {}
func (NoopObserver) StepStarted(string, int, workflow.PlannedStep) {}
func (NoopObserver) StepCompleted(string, int, string) {}
func (NoopObserver) StepFailed(string, int, error) {}
func (NoopObserver) PlanRevised(string, []workflow.PlannedStep) {}

const defaultMaxRevisions = 1

// Executor implements node.PlanRunner: it builds (static or dynamic) a
// Plan for a standard node, walks its steps invoking tools/agents, pauses
// for human review when required, and in dynamic mode revises the plan once
// per failure up to the node's PlanningConfig.MaxRevisions (default 1).
type Executor struct {
	Agents   node.AgentInvoker
	Tools    node.ToolCaller
	Planner  Planner
	Observer Observer

	ToolTimeout time.Duration
}

var _ node.PlanRunner = (*Executor)(nil)

// NewExecutor wires the plan subsystem's collaborators. A nil Observer is
// replaced with NoopObserver.
func NewExecutor(agents node.AgentInvoker, tools node.ToolCaller, planner Planner, observer Observer) *Executor {
	if observer == nil {
		observer = NoopObserver{}
	}
	toolTimeout := 30 * time.Second
	return &Executor{Agents: agents, Tools: tools, Planner: planner, Observer: observer, ToolTimeout: toolTimeout}
}

// RunPlan implements node.PlanRunner.
func (e *Executor) RunPlan(ctx context.Context, ec *workflow.ExecutionContext, n *workflow.Node) (workflow.NodeResult, error) {
	if n.Standard == nil || n.Standard.Planning == nil || !n.Standard.Planning.Enabled {
		return workflow.NodeResult{}, fmt.Errorf("plan: node %q has no planning configuration", n.ID)
	}
	payload := n.Standard
	cfg := payload.Planning

	agent, ok := ec.Agent(payload.AgentID)
	if !ok {
		return workflow.NodeResult{}, fmt.Errorf("plan: node %q references unknown agent %q", n.ID, payload.AgentID)
	}

	if resumed, hasResumed := e.resumedPlan(ec, n.ID); hasResumed {
		return e.resumeAfterReview(ctx, ec, n, agent, resumed)
	}

	prompt := ec.Resolve(payload.PromptTemplate)
	steps, err := e.buildPlan(ctx, agent, prompt, cfg)
	if err != nil {
		return workflow.NodeResult{}, err
	}
	e.Observer.PlanGenerated(n.ID, steps)

	if cfg.RequireReview {
		e.storePendingPlan(ec, n.ID, steps, 0)
		return workflow.PendingResult(map[string]any{
			workflow.CtxPlanReviewRequired: true,
			"plan":                         steps,
		}), nil
	}

	return e.execute(ctx, ec, n.ID, agent, prompt, cfg, steps, 0)
}

func (e *Executor) buildPlan(ctx context.Context, agent *workflow.AgentConfig, prompt string, cfg *workflow.PlanningConfig) ([]workflow.PlannedStep, error) {
	if cfg.Mode == workflow.PlanStatic {
		if len(cfg.StaticPlan) == 0 {
			return nil, errors.New("plan: static mode requires a non-empty staticPlan")
		}
		return cfg.StaticPlan, nil
	}
	if e.Planner == nil {
		return nil, errors.New("plan: dynamic mode requires a Planner")
	}
	return e.Planner.Plan(ctx, agent, prompt, cfg.Constraints)
}

// execute walks steps in order starting at fromIndex, invoking tools for
// ToolCall steps and the agent for Synthesize steps. On a step failure it
// revises the plan (dynamic mode only) up to MaxRevisions times before
// failing the node.
func (e *Executor) execute(ctx context.Context, ec *workflow.ExecutionContext, nodeID string, agent *workflow.AgentConfig, prompt string, cfg *workflow.PlanningConfig, steps []workflow.PlannedStep, revisions int) (workflow.NodeResult, error) {
	maxRevisions := cfg.MaxRevisions
	if maxRevisions == 0 {
		maxRevisions = defaultMaxRevisions
	}

	var lastOutput string
	for i, step := range steps {
		if step.Kind == workflow.StepSynthesize && step.AgentID == "" {
			step.AgentID = agent.ID
		}
		e.Observer.StepStarted(nodeID, i, step)
		output, err := e.runStep(ctx, ec, step)
		if err != nil {
			e.Observer.StepFailed(nodeID, i, err)
			if cfg.Mode != workflow.PlanDynamic || revisions >= maxRevisions || e.Planner == nil {
				return workflow.FailureResult(fmt.Sprintf("plan step %d failed: %v", i, err), err), nil
			}
			revised, rerr := e.Planner.Replan(ctx, agent, prompt, steps, i, err.Error())
			if rerr != nil {
				return workflow.FailureResult("plan revision failed", rerr), nil
			}
			e.Observer.PlanRevised(nodeID, revised)
			return e.execute(ctx, ec, nodeID, agent, prompt, cfg, revised, revisions+1)
		}
		e.Observer.StepCompleted(nodeID, i, output)
		lastOutput = output
	}

	return workflow.SuccessResult(lastOutput, map[string]any{"planSteps": len(steps), "planRevisions": revisions}), nil
}

func (e *Executor) runStep(ctx context.Context, ec *workflow.ExecutionContext, step workflow.PlannedStep) (string, error) {
	switch step.Kind {
	case workflow.StepToolCall:
		if e.Tools == nil {
			return "", errors.New("plan: no tool transport configured")
		}
		result, err := e.Tools.CallTool(ctx, ec.TenantID(), step.Tool, step.Arguments, e.ToolTimeout)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	case workflow.StepSynthesize:
		agent, ok := ec.Agent(step.AgentID)
		if !ok {
			return "", fmt.Errorf("plan: synthesize step references unknown agent %q", step.AgentID)
		}
		prompt := ec.Resolve(step.Prompt)
		output, _, err := e.Agents.Invoke(ctx, agent, prompt)
		return output, err
	default:
		return "", fmt.Errorf("plan: unknown step kind %q", step.Kind)
	}
}

// resumedPlanKey/resumedPlan/storePendingPlan implement the review-gate
// resumption contract: the reviewed/approved plan is handed back through the
// execution context (set by the caller on resume) under a per-node key, so
// RunPlan can tell a fresh invocation from a post-review continuation.
func resumedPlanKey(nodeID string) string { return "_plan_resume_" + nodeID }

func (e *Executor) resumedPlan(ec *workflow.ExecutionContext, nodeID string) ([]workflow.PlannedStep, bool) {
	v, ok := ec.Get(resumedPlanKey(nodeID))
	if !ok {
		return nil, false
	}
	steps, ok := v.([]workflow.PlannedStep)
	return steps, ok
}

func (e *Executor) storePendingPlan(ec *workflow.ExecutionContext, nodeID string, steps []workflow.PlannedStep, revisions int) {
	ec.Set("_plan_pending_"+nodeID, steps)
}

func (e *Executor) resumeAfterReview(ctx context.Context, ec *workflow.ExecutionContext, n *workflow.Node, agent *workflow.AgentConfig, steps []workflow.PlannedStep) (workflow.NodeResult, error) {
	prompt := ec.Resolve(n.Standard.PromptTemplate)
	return e.execute(ctx, ec, n.ID, agent, prompt, n.Standard.Planning, steps, 0)
}

// stripCodeFence removes a leading/trailing markdown code fence (```json ...
// ```` or plain ``` ... ```) from an LLM planner response, since models
// routinely wrap structured output in one even when asked not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "json" || first == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
