package node

import (
	"context"
	"fmt"

	"github.com/agentforge/workflow-engine/workflow"
)

// LoopExecutor implements the loop node: §4.2.5. It re-checks Condition
// before each iteration and runs the body subgraph to its first dead end
// (a node whose transition rules declare no SuccessTransition), following
// plain success transitions node-to-node. MaxIterations is a hard ceiling.
//
// Dispatch runs a single body node (mirroring ForkExecutor.Dispatch).
type LoopExecutor struct {
	Dispatch func(ctx context.Context, ec *workflow.ExecutionContext, targetID string) (workflow.NodeResult, error)
}

func (l *LoopExecutor) Execute(ctx context.Context, ec *workflow.ExecutionContext, n *workflow.Node) (workflow.NodeResult, error) {
	payload := n.Loop
	if payload == nil {
		return workflow.NodeResult{}, fmt.Errorf("node %q: missing loop payload", n.ID)
	}

	iterKey := "_loop_" + n.ID + "_iter"
	iter, _ := ec.Get(iterKey)
	count, _ := iter.(int)

	if payload.Condition != "" && payload.Condition != "Always" && !truthy(ec, payload.Condition) {
		return workflow.SuccessResult("", map[string]any{"loopIterations": count}), nil
	}

	for _, rule := range payload.BreakRules {
		if truthy(ec, rule.Condition) {
			return workflow.SuccessResult("", map[string]any{
				"loopIterations":           count,
				workflow.CtxLoopBreakTarget: rule.NextNode,
			}), nil
		}
	}

	if payload.MaxIterations > 0 && count >= payload.MaxIterations {
		return workflow.SuccessResult("", map[string]any{"loopIterations": count, "maxIterationsReached": true}), nil
	}

	nodeID := payload.BodyStart
	for nodeID != "" {
		bodyNode, ok := ec.Node(nodeID)
		if !ok {
			return workflow.FailureResult(fmt.Sprintf("loop %q: body node %q not found", n.ID, nodeID), nil), nil
		}
		result, err := l.Dispatch(ctx, ec, nodeID)
		if err != nil {
			return workflow.FailureResult(err.Error(), err), nil
		}
		if result.Status == workflow.StatusFailure {
			return result, nil
		}
		nodeID = firstSuccessTarget(bodyNode)
	}

	count++
	ec.Set(iterKey, count)
	return workflow.SuccessResult("", map[string]any{
		"loopIterations":            count,
		workflow.CtxLoopBreakTarget: n.ID, // re-enter this loop node to re-check condition
	}), nil
}

func firstSuccessTarget(n *workflow.Node) string {
	for _, r := range n.TransitionRules {
		if st, ok := r.(workflow.SuccessTransition); ok {
			return st.Target
		}
	}
	return ""
}

// truthy evaluates a loop condition string against context. "Always" is the
// predefined always-true condition; otherwise the condition names a context
// key whose value is treated as truthy per standard Go boolean/zero-value
// conventions.
func truthy(ec *workflow.ExecutionContext, condition string) bool {
	if condition == "" || condition == "Always" {
		return true
	}
	v, ok := ec.Get(condition)
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return v != nil
	}
}
