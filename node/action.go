package node

import (
	"context"
	"fmt"

	"github.com/agentforge/workflow-engine/workflow"
)

// ActionExecutor implements the action node: §4.2.7. Send dispatches to a
// registered handler (in-process or, for server usage, via the tool
// transport); Execute references a local command and is rejected by the
// server executor.
type ActionExecutor struct {
	Actions ActionHandlerRegistry
	Tools   ToolCaller
}

func (a *ActionExecutor) Execute(ctx context.Context, ec *workflow.ExecutionContext, n *workflow.Node) (workflow.NodeResult, error) {
	payload := n.Action
	if payload == nil {
		return workflow.NodeResult{}, fmt.Errorf("node %q: missing action payload", n.ID)
	}

	for i, act := range payload.Actions {
		if err := a.runOne(ctx, ec, act); err != nil {
			return workflow.FailureResult(fmt.Sprintf("action %d (%s) failed: %v", i, act.Kind, err), err), nil
		}
	}
	return workflow.SuccessResult("", map[string]any{"actionsRun": len(payload.Actions)}), nil
}

func (a *ActionExecutor) runOne(ctx context.Context, ec *workflow.ExecutionContext, act workflow.Action) error {
	switch act.Kind {
	case workflow.ActionExecute:
		return fmt.Errorf("server executor rejects Execute(%s): local commands are not permitted", act.CommandID)
	case workflow.ActionSend:
		if handler, ok := a.Actions.Lookup(act.HandlerID); ok {
			return handler.Handle(ctx, ec, act.Payload)
		}
		if a.Tools == nil {
			return fmt.Errorf("no mcp endpoint: handler %q not registered and no tool transport configured", act.HandlerID)
		}
		_, err := a.Tools.CallTool(ctx, ec.TenantID(), act.HandlerID, act.Payload, 0)
		return err
	default:
		return fmt.Errorf("unknown action kind %q", act.Kind)
	}
}
