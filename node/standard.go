package node

import (
	"context"
	"fmt"

	"github.com/agentforge/workflow-engine/workflow"
)

// StandardExecutor implements the standard (agent) node: §4.2.1.
type StandardExecutor struct {
	Agents AgentInvoker
	Plans  PlanRunner
}

func (s *StandardExecutor) Execute(ctx context.Context, ec *workflow.ExecutionContext, n *workflow.Node) (workflow.NodeResult, error) {
	payload := n.Standard
	if payload == nil {
		return workflow.NodeResult{}, fmt.Errorf("node %q: missing standard payload", n.ID)
	}

	if payload.Planning != nil && payload.Planning.Enabled {
		if s.Plans == nil {
			return workflow.FailureResult("planning enabled but no plan runner configured", nil), nil
		}
		return s.Plans.RunPlan(ctx, ec, n)
	}

	agent, ok := ec.Agent(payload.AgentID)
	if !ok {
		return workflow.FailureResult(fmt.Sprintf("agent %q not found", payload.AgentID), nil), nil
	}

	prompt := ec.Resolve(payload.PromptTemplate)
	output, metadata, err := s.Agents.Invoke(ctx, agent, prompt)
	if err != nil {
		return workflow.FailureResult(err.Error(), err), nil
	}
	return workflow.SuccessResult(output, metadata), nil
}
