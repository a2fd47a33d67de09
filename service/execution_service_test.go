package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentforge/workflow-engine/state/memstore"
	"github.com/agentforge/workflow-engine/workflow"
)

type stubAgents struct{}

func (stubAgents) Invoke(context.Context, *workflow.AgentConfig, string) (string, map[string]any, error) {
	return "ok", nil, nil
}

func linearWorkflow() *workflow.Workflow {
	return &workflow.Workflow{
		ID:        "wf-greeting",
		StartNode: "greet",
		Nodes: map[string]*workflow.Node{
			"greet": {
				ID:   "greet",
				Kind: workflow.KindStandard,
				TransitionRules: []workflow.TransitionRule{
					workflow.SuccessTransition{Target: "done"},
				},
				Standard: &workflow.StandardPayload{
					AgentID:        "writer",
					PromptTemplate: "say hi to {name}",
				},
			},
			"done": {ID: "done", Kind: workflow.KindEnd, End: &workflow.EndPayload{Status: workflow.ExitSuccess}},
		},
		Agents: map[string]*workflow.AgentConfig{"writer": {ID: "writer", Model: "stub"}},
	}
}

func TestStartRunsWorkflowToCompletion(t *testing.T) {
	workflows := memstore.NewWorkflowStore()
	states := memstore.NewStateStore()
	ctx := context.Background()
	require.NoError(t, workflows.Save(ctx, "tenant-a", linearWorkflow()))

	svc := NewExecutionService(workflows, states, stubAgents{}, nil)
	result, err := svc.Start(ctx, "tenant-a", "wf-greeting", "exec-1", map[string]any{"name": "world"})
	require.NoError(t, err)
	require.Equal(t, workflow.ResultCompleted, result.Kind)

	snap, ok, err := states.FindByExecutionID(ctx, "tenant-a", "exec-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, snap.CheckpointReason.Terminal())
}

func TestStartFailsForUnknownWorkflow(t *testing.T) {
	workflows := memstore.NewWorkflowStore()
	states := memstore.NewStateStore()
	svc := NewExecutionService(workflows, states, stubAgents{}, nil)

	_, err := svc.Start(context.Background(), "tenant-a", "missing", "exec-1", nil)
	require.Error(t, err)
}
