package node

import (
	"context"
	"fmt"

	"github.com/agentforge/workflow-engine/workflow"
)

// GenericExecutor implements the generic (custom-handler) node: §4.2.8.
type GenericExecutor struct {
	Generics GenericHandlerRegistry
}

func (g *GenericExecutor) Execute(ctx context.Context, ec *workflow.ExecutionContext, n *workflow.Node) (workflow.NodeResult, error) {
	payload := n.Generic
	if payload == nil {
		return workflow.NodeResult{}, fmt.Errorf("node %q: missing generic payload", n.ID)
	}
	handler, ok := g.Generics.Lookup(payload.ExecutorType)
	if !ok {
		return workflow.FailureResult(fmt.Sprintf("no generic handler registered for %q", payload.ExecutorType), nil), nil
	}
	return handler.Handle(ctx, ec, payload.Config)
}
