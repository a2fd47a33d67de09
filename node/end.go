package node

import (
	"context"

	"github.com/agentforge/workflow-engine/workflow"
)

// EndExecutor implements the end node: §4.2.9.
type EndExecutor struct{}

func (EndExecutor) Execute(_ context.Context, _ *workflow.ExecutionContext, n *workflow.Node) (workflow.NodeResult, error) {
	return workflow.EndResult(n.End.Status), nil
}
