package node

import (
	"context"
	"fmt"

	"github.com/agentforge/workflow-engine/workflow"
)

// ForkExecutor implements the fork node: §4.2.3. It spawns one goroutine
// per target id, storing the resulting Futures under context key
// "{forkNodeId}_futures" for a downstream Join to await.
//
// Dispatch resolves and runs a single target (a node in the same workflow).
// It is wired by the table builder as a closure over the Table itself so a
// fork target can be any dispatchable node kind, including another fork.
type ForkExecutor struct {
	Futures  Futures
	Dispatch func(ctx context.Context, ec *workflow.ExecutionContext, targetID string) (workflow.NodeResult, error)
}

func (f *ForkExecutor) Execute(ctx context.Context, ec *workflow.ExecutionContext, n *workflow.Node) (workflow.NodeResult, error) {
	payload := n.Fork
	if payload == nil {
		return workflow.NodeResult{}, fmt.Errorf("node %q: missing fork payload", n.ID)
	}

	futures := make(map[string]*Future, len(payload.Targets))
	for _, target := range payload.Targets {
		fut := NewFuture()
		futures[target] = fut
		go func(target string, fut *Future) {
			result, err := f.Dispatch(ctx, ec, target)
			fut.Complete(result, err)
		}(target, fut)
	}

	key := n.ID + "_futures"
	f.Futures.Store(key, payload.Targets, futures)
	ec.Set(key, payload.Targets)

	if !payload.WaitForAll {
		return workflow.SuccessResult("", map[string]any{"forked": payload.Targets, "waited": false}), nil
	}

	metadata := map[string]any{"forked": payload.Targets, "waited": true}
	for target, fut := range futures {
		result, err := fut.Wait(ctx)
		if err != nil {
			return workflow.FailureResult(fmt.Sprintf("fork target %q: %v", target, err), err), nil
		}
		if result.Status == workflow.StatusFailure {
			return workflow.FailureResult(fmt.Sprintf("fork target %q failed: %s", target, result.Output), result.Err), nil
		}
	}
	return workflow.SuccessResult("", metadata), nil
}
