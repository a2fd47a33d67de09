package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentforge/workflow-engine/workflow"
)

// ParallelExecutor implements the parallel-with-consensus node: §4.2.2.
// Each branch runs on its own goroutine, bounded by the shared
// branch-concurrency semaphore (one engine-wide semaphore, per the
// concurrency model, to prevent provider stampedes).
type ParallelExecutor struct {
	Agents    AgentInvoker
	Consensus ConsensusEvaluator
	Semaphore chan struct{}
}

func (p *ParallelExecutor) Execute(ctx context.Context, ec *workflow.ExecutionContext, n *workflow.Node) (workflow.NodeResult, error) {
	payload := n.Parallel
	if payload == nil {
		return workflow.NodeResult{}, fmt.Errorf("node %q: missing parallel payload", n.ID)
	}

	results := make([]BranchResult, len(payload.Branches))
	var wg sync.WaitGroup
	for i, branch := range payload.Branches {
		wg.Add(1)
		go func(i int, branch workflow.Branch) {
			defer wg.Done()
			if p.Semaphore != nil {
				select {
				case p.Semaphore <- struct{}{}:
					defer func() { <-p.Semaphore }()
				case <-ctx.Done():
					results[i] = BranchResult{BranchID: branch.ID, Err: ctx.Err()}
					return
				}
			}
			results[i] = p.runBranch(ctx, ec, branch)
		}(i, branch)
	}
	wg.Wait()

	outcome, err := p.Consensus.Evaluate(ctx, payload.Branches, results, payload)
	if err != nil {
		return workflow.FailureResult(err.Error(), err), nil
	}

	metadata := outcome.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["consensusReached"] = outcome.Reached
	if outcome.Reached {
		metadata["onConsensus"] = payload.OnConsensus
		return workflow.SuccessResult(outcome.Output, metadata), nil
	}
	metadata["onNoConsensus"] = payload.OnNoConsensus
	return workflow.NodeResult{Status: workflow.StatusFailure, Output: outcome.Output, Metadata: metadata}, nil
}

func (p *ParallelExecutor) runBranch(ctx context.Context, ec *workflow.ExecutionContext, branch workflow.Branch) BranchResult {
	agent, ok := ec.Agent(branch.AgentID)
	if !ok {
		return BranchResult{BranchID: branch.ID, Result: workflow.FailureResult(fmt.Sprintf("agent %q not found", branch.AgentID), nil)}
	}
	prompt := ec.Resolve(branch.PromptTemplate)
	output, metadata, err := p.Agents.Invoke(ctx, agent, prompt)
	if err != nil {
		return BranchResult{BranchID: branch.ID, Result: workflow.FailureResult(err.Error(), err), Err: err}
	}
	return BranchResult{BranchID: branch.ID, Result: workflow.SuccessResult(output, metadata)}
}
