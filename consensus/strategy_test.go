package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentforge/workflow-engine/node"
	"github.com/agentforge/workflow-engine/workflow"
)

func branchResults(outputs ...string) []node.BranchResult {
	out := make([]node.BranchResult, len(outputs))
	for i, o := range outputs {
		out[i] = node.BranchResult{Result: workflow.SuccessResult(o, nil)}
	}
	return out
}

func TestMajorityVoteConsensus(t *testing.T) {
	e := &Evaluator{}
	payload := &workflow.ParallelPayload{Strategy: workflow.MajorityVote}
	outcome, err := e.Evaluate(context.Background(), nil, branchResults("I approve", "I approve", "I reject"), payload)
	require.NoError(t, err)
	require.True(t, outcome.Reached)
	require.Equal(t, 2, outcome.Metadata["approveCount"])
	require.Equal(t, 1, outcome.Metadata["rejectCount"])
}

func TestUnanimousFailsOnSingleReject(t *testing.T) {
	e := &Evaluator{}
	payload := &workflow.ParallelPayload{Strategy: workflow.Unanimous}
	outcome, err := e.Evaluate(context.Background(), nil, branchResults("approve", "approve", "reject"), payload)
	require.NoError(t, err)
	require.False(t, outcome.Reached)
}

func TestWeightedVoteRespectsThreshold(t *testing.T) {
	e := &Evaluator{}
	branches := []workflow.Branch{{ID: "b1", Weight: 2}, {ID: "b2", Weight: 1}}
	payload := &workflow.ParallelPayload{Strategy: workflow.WeightedVote, Threshold: 0.6}
	outcome, err := e.Evaluate(context.Background(), branches, branchResults("Score: 90", "Score: 10"), payload)
	require.NoError(t, err)
	require.True(t, outcome.Reached)
}

func TestVoteExtractionFallsBackToAbstain(t *testing.T) {
	v := extractVote("no signal here", nil)
	require.Equal(t, VoteAbstain, v.Vote)
	require.Equal(t, 50.0, v.Score)
}

func TestVoteExtractionPrefersRubricMetadata(t *testing.T) {
	v := extractVote("irrelevant text mentioning reject", map[string]any{"rubric_passed": true, "rubric_score": 88.0})
	require.Equal(t, VoteApprove, v.Vote)
	require.Equal(t, 88.0, v.Score)
}
