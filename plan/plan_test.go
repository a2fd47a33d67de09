package plan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentforge/workflow-engine/workflow"
)

type stubAgents struct {
	outputs []string
	calls   int
	err     error
}

func (s *stubAgents) Invoke(context.Context, *workflow.AgentConfig, string) (string, map[string]any, error) {
	if s.err != nil {
		return "", nil, s.err
	}
	out := s.outputs[s.calls%len(s.outputs)]
	s.calls++
	return out, nil, nil
}

type stubTools struct {
	result map[string]any
	err    error
}

func (s *stubTools) CallTool(context.Context, string, string, map[string]any, time.Duration) (map[string]any, error) {
	return s.result, s.err
}

func testWorkflow(node *workflow.Node) *workflow.Workflow {
	return &workflow.Workflow{
		ID:      "wf-1",
		Nodes:   map[string]*workflow.Node{node.ID: node},
		Agents:  map[string]*workflow.AgentConfig{"writer": {ID: "writer", Model: "stub"}},
		Rubrics: map[string]string{},
	}
}

func newExecContext(node *workflow.Node) *workflow.ExecutionContext {
	state := workflow.NewExecutionState("exec-1", "wf-1", "tenant-1", node.ID, nil)
	return workflow.NewExecutionContext(state, workflow.SimpleResolver{}, testWorkflow(node))
}

func TestStaticPlanExecutesToolThenSynthesizeSteps(t *testing.T) {
	n := &workflow.Node{
		ID:   "plan-node",
		Kind: workflow.KindStandard,
		Standard: &workflow.StandardPayload{
			AgentID:        "writer",
			PromptTemplate: "draft something",
			Planning: &workflow.PlanningConfig{
				Enabled: true,
				Mode:    workflow.PlanStatic,
				StaticPlan: []workflow.PlannedStep{
					{Kind: workflow.StepToolCall, Tool: "search", Arguments: map[string]any{"q": "go"}},
					{Kind: workflow.StepSynthesize, AgentID: "writer", Prompt: "summarize"},
				},
			},
		},
	}
	exec := NewExecutor(&stubAgents{outputs: []string{"final answer"}}, &stubTools{result: map[string]any{"hits": 3}}, nil, nil)

	result, err := exec.RunPlan(context.Background(), newExecContext(n), n)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSuccess, result.Status)
	require.Equal(t, "final answer", result.Output)
}

func TestDynamicPlanRequiresReviewPausesNode(t *testing.T) {
	n := &workflow.Node{
		ID:   "plan-node",
		Kind: workflow.KindStandard,
		Standard: &workflow.StandardPayload{
			AgentID:        "writer",
			PromptTemplate: "draft something",
			Planning: &workflow.PlanningConfig{
				Enabled:       true,
				Mode:          workflow.PlanDynamic,
				RequireReview: true,
			},
		},
	}
	planner := &LlmPlanner{Agents: &stubAgents{outputs: []string{`[{"kind":"synthesize","agentId":"writer","prompt":"go"}]`}}}
	exec := NewExecutor(&stubAgents{}, nil, planner, nil)

	result, err := exec.RunPlan(context.Background(), newExecContext(n), n)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, result.Status)
	require.Equal(t, true, result.Metadata[workflow.CtxPlanReviewRequired])
}

func TestDynamicPlanRevisesOnStepFailure(t *testing.T) {
	n := &workflow.Node{
		ID:   "plan-node",
		Kind: workflow.KindStandard,
		Standard: &workflow.StandardPayload{
			AgentID:        "writer",
			PromptTemplate: "draft something",
			Planning: &workflow.PlanningConfig{
				Enabled:      true,
				Mode:         workflow.PlanDynamic,
				MaxRevisions: 1,
			},
		},
	}
	planner := &LlmPlanner{Agents: &stubAgents{outputs: []string{
		`[{"kind":"tool_call","tool":"missing-tool"}]`,
		`[{"kind":"synthesize","agentId":"writer","prompt":"fallback"}]`,
	}}}
	exec := NewExecutor(&stubAgents{outputs: []string{"recovered"}}, &stubTools{err: errors.New("tool not found")}, planner, nil)

	result, err := exec.RunPlan(context.Background(), newExecContext(n), n)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSuccess, result.Status)
	require.Equal(t, "recovered", result.Output)
	require.Equal(t, 1, result.Metadata["planRevisions"])
}

func TestStripCodeFenceHandlesJsonFence(t *testing.T) {
	in := "```json\n[1,2,3]\n```"
	require.Equal(t, "[1,2,3]", stripCodeFence(in))
}
