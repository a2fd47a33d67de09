package node

import (
	"context"
	"fmt"
	"time"

	"github.com/agentforge/workflow-engine/workflow"
)

// JoinExecutor implements the join node: §4.2.4. It awaits the futures
// named by AwaitTargets, merging results according to MergeStrategy.
type JoinExecutor struct {
	Futures Futures
}

func (j *JoinExecutor) Execute(ctx context.Context, ec *workflow.ExecutionContext, n *workflow.Node) (workflow.NodeResult, error) {
	payload := n.Join
	if payload == nil {
		return workflow.NodeResult{}, fmt.Errorf("node %q: missing join payload", n.ID)
	}

	awaitCtx := ctx
	var cancel context.CancelFunc
	if payload.TimeoutMs > 0 {
		awaitCtx, cancel = context.WithTimeout(ctx, time.Duration(payload.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	merged := map[string]any{}
	var anyErr error
	for _, target := range payload.AwaitTargets {
		key := target + "_futures"
		futures, ok := j.Futures.Load(key)
		if !ok {
			merged[target] = map[string]any{"error": "no matching fork futures"}
			anyErr = fmt.Errorf("join %q: no futures registered for %q", n.ID, target)
			continue
		}
		fut, ok := futures[target]
		if !ok {
			for _, f := range futures {
				fut = f
				break
			}
		}
		result, err := fut.Wait(awaitCtx)
		switch {
		case err != nil:
			merged[target] = map[string]any{"timeout": true, "error": err.Error()}
			anyErr = err
		case result.Status == workflow.StatusFailure:
			merged[target] = map[string]any{"error": result.Output}
			anyErr = result.Err
		default:
			merged[target] = result.Output
		}
		j.Futures.Delete(key)
	}

	outputField := payload.OutputField
	if outputField == "" {
		outputField = n.ID
	}
	ec.Set(outputField, merged)

	if anyErr != nil && payload.FailOnAnyError {
		return workflow.FailureResult(fmt.Sprintf("join %q: %v", n.ID, anyErr), anyErr), nil
	}
	return workflow.SuccessResult("", map[string]any{outputField: merged}), nil
}
