package workflow

// postprocessor.go implements the fixed-order post-processor pipeline run
// after every non-end node dispatch: output extraction, history recording,
// human review, rubric evaluation, transition resolution. Any stage may
// short-circuit with a terminal ExecutionResult.

import (
	"context"
	"fmt"
)

// postProcess runs the pipeline for one node dispatch. A non-nil terminal
// result means the loop must return it immediately. Otherwise next names the
// node to move to (which may be nodeID itself, the retry case — signalled by
// retrying=true so the caller does not double-count it as a forward step).
func (e *Executor) postProcess(ctx context.Context, state *ExecutionState, node *Node, before ContextSnapshot, result NodeResult, autoCaps autoBacktrackCounts) (terminal *ExecutionResult, next string, retrying bool, err error) {
	extractOutput(state, node, result)

	step := ExecutionStep{NodeID: node.ID, Result: result, Timestamp: e.now()}
	if snapshotsOnStep(node) {
		step.StateBefore = before
	}
	state.History.AppendStep(step)

	if result.Status == StatusPending {
		return nil, "", false, nil
	}

	if rc := reviewConfigFor(node); rc != nil && reviewRequired(rc, result, state.Rubric) && e.Review != nil {
		decision, rerr := e.Review.Review(ctx, state, node, result)
		if rerr != nil {
			return nil, "", false, rerr
		}
		switch decision.Kind {
		case ReviewReject:
			res := e.reject(ctx, state, decision.Reason)
			return &res, "", false, nil
		case ReviewBacktrack:
			state.History.AppendBacktrack(BacktrackEvent{
				From: node.ID, To: decision.TargetNode, Reason: decision.Reason,
				Type: BacktrackManual, Timestamp: e.now(),
			})
			for k, v := range decision.ContextOverrides {
				state.Context[k] = v
			}
			return nil, decision.TargetNode, false, nil
		case ReviewModify:
			for k, v := range decision.ContextOverrides {
				state.Context[k] = v
			}
		case ReviewApprove:
		}
	}

	if rubricID := rubricIDFor(node); rubricID != "" && e.Rubric != nil {
		eval, rerr := e.Rubric.Evaluate(ctx, rubricID, result.Output, result.Metadata)
		if rerr != nil {
			return nil, "", false, rerr
		}
		if eval != nil {
			state.Rubric = eval
			threshold := e.Rubric.PassThreshold(rubricID)
			if eval.Score < threshold && autoCaps[node.ID] < e.AutoBacktrackCap {
				autoCaps[node.ID]++
				score := eval.Score
				minor := eval.Score >= threshold-20
				target := node.ID
				if !minor {
					target = nearestEligiblePrevious(state.History, node.ID)
				}
				state.History.AppendBacktrack(BacktrackEvent{
					From: node.ID, To: target, Reason: "rubric score below pass threshold",
					Type: BacktrackAutomatic, RubricScore: &score, Timestamp: e.now(),
				})
				return nil, target, false, nil
			}
		}
	}

	target, retry, ok := resolveTransition(node.TransitionRules, result, state, node.ID)
	if !ok {
		res := e.fail(ctx, state, fmt.Errorf("workflow: no transition rule matched for node %q", node.ID), "failed")
		return &res, "", false, nil
	}
	if retry {
		state.RetryCount[node.ID]++
		return nil, node.ID, true, nil
	}
	return nil, target, false, nil
}

func snapshotsOnStep(node *Node) bool {
	return node.Standard != nil && node.Standard.SnapshotOnStep
}

func reviewConfigFor(node *Node) *ReviewConfig {
	if node.Standard != nil {
		return node.Standard.ReviewConfig
	}
	return nil
}

func rubricIDFor(node *Node) string {
	if node.Standard != nil {
		return node.Standard.RubricID
	}
	return ""
}

func reviewRequired(rc *ReviewConfig, result NodeResult, rubric *RubricEvaluation) bool {
	switch rc.Trigger {
	case ReviewAlways:
		return true
	case ReviewOnFailure:
		return result.Status == StatusFailure
	case ReviewBelowRubricScore:
		return rubric != nil && rubric.Score < rc.ScoreThreshold
	default:
		return false
	}
}

// nearestEligiblePrevious walks history backward from the current node,
// skipping its own occurrences, and returns the most recent distinct node
// visited. Falls back to nodeID if history holds nothing else (no eligible
// earlier node to jump to).
func nearestEligiblePrevious(history *ExecutionHistory, nodeID string) string {
	for i := len(history.Steps) - 1; i >= 0; i-- {
		if history.Steps[i].NodeID != nodeID {
			return history.Steps[i].NodeID
		}
	}
	return nodeID
}
