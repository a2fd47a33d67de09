package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	fn func(ctx context.Context, ec *ExecutionContext, node *Node) (NodeResult, error)
}

func (s stubExecutor) Execute(ctx context.Context, ec *ExecutionContext, node *Node) (NodeResult, error) {
	return s.fn(ctx, ec, node)
}

type tableDispatcher map[NodeKind]NodeExecutor

func (t tableDispatcher) Dispatch(kind NodeKind) (NodeExecutor, bool) {
	e, ok := t[kind]
	return e, ok
}

type passthroughResolver struct{}

func (passthroughResolver) Resolve(template string, _ map[string]any) string { return template }

type recordingListener struct {
	snaps []*ExecutionSnapshot
}

func (r *recordingListener) OnSnapshot(_ context.Context, snap *ExecutionSnapshot) {
	r.snaps = append(r.snaps, snap)
}

func mustWorkflow(t *testing.T, start string, nodes map[string]*Node) *Workflow {
	t.Helper()
	wf, err := NewWorkflow("wf-1", 1, start, nodes, nil, nil)
	require.NoError(t, err)
	return wf
}

func TestBasicLinearScenario(t *testing.T) {
	nodes := map[string]*Node{
		"process": {
			ID:              "process",
			Kind:            KindStandard,
			Standard:        &StandardPayload{AgentID: "processor"},
			TransitionRules: []TransitionRule{SuccessTransition{Target: "done"}},
		},
		"done": {ID: "done", Kind: KindEnd, End: &EndPayload{Status: ExitSuccess}},
	}
	wf := mustWorkflow(t, "process", nodes)

	dispatcher := tableDispatcher{
		KindStandard: stubExecutor{fn: func(_ context.Context, _ *ExecutionContext, _ *Node) (NodeResult, error) {
			return SuccessResult("hello world", nil), nil
		}},
		KindEnd: stubExecutor{fn: func(_ context.Context, _ *ExecutionContext, node *Node) (NodeResult, error) {
			return EndResult(node.End.Status), nil
		}},
	}

	listener := &recordingListener{}
	exec := NewExecutor(wf, dispatcher, passthroughResolver{}, nil, nil, listener, 0)
	state := NewExecutionState("exec-1", "wf-1", "tenant-a", "process", nil)

	result, err := exec.Run(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, result.Kind)
	require.Equal(t, "done", result.State.CurrentNode)
	require.Equal(t, "hello world", result.State.Context["process"])

	require.NotEmpty(t, listener.snaps)
	last := listener.snaps[len(listener.snaps)-1]
	require.Equal(t, ReasonCompleted, last.CheckpointReason)
}

func TestScoreBasedRoutingScenario(t *testing.T) {
	nodes := map[string]*Node{
		"evaluate": {
			ID:   "evaluate",
			Kind: KindStandard,
			Standard: &StandardPayload{
				AgentID:      "evaluator",
				OutputParams: []string{"score"},
			},
			TransitionRules: []TransitionRule{
				ScoreTransition{Conditions: []ScoreCondition{
					{Operator: OpGTE, Value: 8, Target: "high-quality"},
					{Operator: OpGTE, Value: 4, Target: "medium-quality"},
					{Operator: OpGT, Value: -1, Target: "low-quality"},
				}},
			},
		},
		"high-quality":   {ID: "high-quality", Kind: KindEnd, End: &EndPayload{Status: ExitSuccess}},
		"medium-quality": {ID: "medium-quality", Kind: KindEnd, End: &EndPayload{Status: ExitSuccess}},
		"low-quality":    {ID: "low-quality", Kind: KindEnd, End: &EndPayload{Status: ExitSuccess}},
	}
	wf := mustWorkflow(t, "evaluate", nodes)

	dispatcher := tableDispatcher{
		KindStandard: stubExecutor{fn: func(_ context.Context, _ *ExecutionContext, _ *Node) (NodeResult, error) {
			return SuccessResult(`{"score": 9.5}`, nil), nil
		}},
		KindEnd: stubExecutor{fn: func(_ context.Context, _ *ExecutionContext, node *Node) (NodeResult, error) {
			return EndResult(node.End.Status), nil
		}},
	}

	exec := NewExecutor(wf, dispatcher, passthroughResolver{}, nil, nil, nil, 0)
	state := NewExecutionState("exec-2", "wf-1", "tenant-a", "evaluate", nil)

	result, err := exec.Run(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, result.Kind)
	require.Equal(t, "high-quality", result.State.CurrentNode)
}

type thresholdRubric struct {
	threshold float64
	scores    []float64
	calls     int
}

func (r *thresholdRubric) Evaluate(_ context.Context, _ string, _ string, _ map[string]any) (*RubricEvaluation, error) {
	score := r.scores[r.calls]
	if r.calls < len(r.scores)-1 {
		r.calls++
	}
	return &RubricEvaluation{RubricID: "draft-rubric", Score: score, Passed: score >= r.threshold}, nil
}

func (r *thresholdRubric) PassThreshold(_ string) float64 { return r.threshold }

func TestRubricDrivenRetryThenCompletionScenario(t *testing.T) {
	nodes := map[string]*Node{
		"draft": {
			ID:   "draft",
			Kind: KindStandard,
			Standard: &StandardPayload{
				AgentID:  "writer",
				RubricID: "draft-rubric",
			},
			TransitionRules: []TransitionRule{SuccessTransition{Target: "done"}},
		},
		"done": {ID: "done", Kind: KindEnd, End: &EndPayload{Status: ExitSuccess}},
	}
	wf := mustWorkflow(t, "draft", nodes)

	dispatcher := tableDispatcher{
		KindStandard: stubExecutor{fn: func(_ context.Context, _ *ExecutionContext, _ *Node) (NodeResult, error) {
			return SuccessResult("draft text", nil), nil
		}},
		KindEnd: stubExecutor{fn: func(_ context.Context, _ *ExecutionContext, node *Node) (NodeResult, error) {
			return EndResult(node.End.Status), nil
		}},
	}

	rubric := &thresholdRubric{threshold: 70, scores: []float64{65, 65, 65, 80}}
	exec := NewExecutor(wf, dispatcher, passthroughResolver{}, nil, rubric, nil, 3)
	state := NewExecutionState("exec-3", "wf-1", "tenant-a", "draft", nil)

	result, err := exec.Run(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, ResultCompleted, result.Kind)

	var autoBacktracks int
	for _, bt := range result.State.History.Backtracks {
		if bt.Type == BacktrackAutomatic {
			require.Equal(t, "draft", bt.From)
			require.Equal(t, "draft", bt.To)
			autoBacktracks++
		}
	}
	require.Equal(t, 3, autoBacktracks)
}

func TestNoMatchingTransitionFails(t *testing.T) {
	nodes := map[string]*Node{
		"only": {ID: "only", Kind: KindStandard, Standard: &StandardPayload{AgentID: "a"}},
	}
	wf := mustWorkflow(t, "only", nodes)
	dispatcher := tableDispatcher{
		KindStandard: stubExecutor{fn: func(_ context.Context, _ *ExecutionContext, _ *Node) (NodeResult, error) {
			return SuccessResult("x", nil), nil
		}},
	}
	exec := NewExecutor(wf, dispatcher, passthroughResolver{}, nil, nil, nil, 0)
	state := NewExecutionState("exec-4", "wf-1", "tenant-a", "only", nil)

	result, err := exec.Run(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, ResultFailure, result.Kind)
	require.Equal(t, "failed", string(ReasonFailed))
}

func TestSnapshotRoundTrip(t *testing.T) {
	state := NewExecutionState("exec-5", "wf-1", "tenant-a", "start", map[string]any{"k": "v"})
	state.History.AppendStep(ExecutionStep{NodeID: "start", Result: SuccessResult("out", nil)})

	snap := state.ToSnapshot(ReasonCheckpoint, state.History.Steps[0].Timestamp)
	restored := FromSnapshot(snap)
	snap2 := restored.ToSnapshot(ReasonCheckpoint, snap.Timestamp)

	require.True(t, snap.Equal(snap2))
}
