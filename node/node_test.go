package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentforge/workflow-engine/workflow"
)

type stubAgents struct {
	fn func(ctx context.Context, agent *workflow.AgentConfig, prompt string) (string, map[string]any, error)
}

func (s stubAgents) Invoke(ctx context.Context, agent *workflow.AgentConfig, prompt string) (string, map[string]any, error) {
	return s.fn(ctx, agent, prompt)
}

type passthroughResolver struct{}

func (passthroughResolver) Resolve(template string, _ map[string]any) string { return template }

func testWorkflow(t *testing.T, start string, nodes map[string]*workflow.Node, agents map[string]*workflow.AgentConfig) *workflow.Workflow {
	t.Helper()
	wf, err := workflow.NewWorkflow("wf", 1, start, nodes, agents, nil)
	require.NoError(t, err)
	return wf
}

func TestStandardExecutorSuccess(t *testing.T) {
	nodes := map[string]*workflow.Node{
		"n1": {ID: "n1", Kind: workflow.KindStandard, Standard: &workflow.StandardPayload{AgentID: "a1", PromptTemplate: "hi"}},
	}
	agents := map[string]*workflow.AgentConfig{"a1": {ID: "a1", Model: "stub"}}
	wf := testWorkflow(t, "n1", nodes, agents)

	exec := &StandardExecutor{Agents: stubAgents{fn: func(_ context.Context, _ *workflow.AgentConfig, prompt string) (string, map[string]any, error) {
		return "reply:" + prompt, nil, nil
	}}}

	state := workflow.NewExecutionState("e1", "wf", "t1", "n1", nil)
	ec := workflow.NewExecutionContext(state, passthroughResolver{}, wf)

	result, err := exec.Execute(context.Background(), ec, nodes["n1"])
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSuccess, result.Status)
	require.Equal(t, "reply:hi", result.Output)
}

type fixedConsensus struct{ outcome ConsensusOutcome }

func (f fixedConsensus) Evaluate(_ context.Context, _ []workflow.Branch, _ []BranchResult, _ *workflow.ParallelPayload) (ConsensusOutcome, error) {
	return f.outcome, nil
}

func TestParallelExecutorConsensusReached(t *testing.T) {
	nodes := map[string]*workflow.Node{
		"par": {
			ID:   "par",
			Kind: workflow.KindParallel,
			Parallel: &workflow.ParallelPayload{
				Branches: []workflow.Branch{
					{ID: "b1", AgentID: "a1"},
					{ID: "b2", AgentID: "a1"},
				},
				Strategy:    workflow.MajorityVote,
				OnConsensus: "next",
			},
		},
	}
	agents := map[string]*workflow.AgentConfig{"a1": {ID: "a1"}}
	wf := testWorkflow(t, "par", nodes, agents)

	exec := &ParallelExecutor{
		Agents:    stubAgents{fn: func(_ context.Context, _ *workflow.AgentConfig, _ string) (string, map[string]any, error) { return "I approve", nil, nil }},
		Consensus: fixedConsensus{outcome: ConsensusOutcome{Reached: true, Output: "winner", Metadata: map[string]any{"approveCount": 2}}},
		Semaphore: make(chan struct{}, 2),
	}

	state := workflow.NewExecutionState("e2", "wf", "t1", "par", nil)
	ec := workflow.NewExecutionContext(state, passthroughResolver{}, wf)

	result, err := exec.Execute(context.Background(), ec, nodes["par"])
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSuccess, result.Status)
	require.Equal(t, "winner", result.Output)
	require.Equal(t, true, result.Metadata["consensusReached"])
}

func TestForkJoinRoundTrip(t *testing.T) {
	futures := NewMemFutures()
	nodes := map[string]*workflow.Node{
		"branchA": {ID: "branchA", Kind: workflow.KindStandard, Standard: &workflow.StandardPayload{AgentID: "a1"}},
		"branchB": {ID: "branchB", Kind: workflow.KindStandard, Standard: &workflow.StandardPayload{AgentID: "a1"}},
		"fork":    {ID: "fork", Kind: workflow.KindFork, Fork: &workflow.ForkPayload{Targets: []string{"branchA", "branchB"}, WaitForAll: false}},
		"join":    {ID: "join", Kind: workflow.KindJoin, Join: &workflow.JoinPayload{AwaitTargets: []string{"branchA", "branchB"}, Merge: workflow.MergeCollectAll, OutputField: "joined", FailOnAnyError: true}},
	}
	agents := map[string]*workflow.AgentConfig{"a1": {ID: "a1"}}
	wf := testWorkflow(t, "fork", nodes, agents)

	table := NewTable(Deps{
		Agents:  stubAgents{fn: func(_ context.Context, _ *workflow.AgentConfig, _ string) (string, map[string]any, error) { return "done", nil, nil }},
		Futures: futures,
	})

	state := workflow.NewExecutionState("e3", "wf", "t1", "fork", nil)
	ec := workflow.NewExecutionContext(state, passthroughResolver{}, wf)

	forkExec, _ := table.Dispatch(workflow.KindFork)
	_, err := forkExec.Execute(context.Background(), ec, nodes["fork"])
	require.NoError(t, err)

	joinExec, _ := table.Dispatch(workflow.KindJoin)
	result, err := joinExec.Execute(context.Background(), ec, nodes["join"])
	require.NoError(t, err)
	require.Equal(t, workflow.StatusSuccess, result.Status)

	joined, ok := ec.Get("joined")
	require.True(t, ok)
	m := joined.(map[string]any)
	require.Equal(t, "done", m["branchA"])
	require.Equal(t, "done", m["branchB"])
}
