package node

import (
	"context"
	"fmt"

	"github.com/agentforge/workflow-engine/workflow"
)

// MaxSubWorkflowDepth bounds sub-workflow recursion to prevent an
// accidentally cyclic workflow graph from recursing unboundedly.
const MaxSubWorkflowDepth = 8

const ctxSubWorkflowDepth = "_sub_workflow_depth"

// SubWorkflowExecutor implements the sub-workflow node: §4.2.6.
type SubWorkflowExecutor struct {
	Runner SubWorkflowRunner
}

func (s *SubWorkflowExecutor) Execute(ctx context.Context, ec *workflow.ExecutionContext, n *workflow.Node) (workflow.NodeResult, error) {
	payload := n.SubWorkflow
	if payload == nil {
		return workflow.NodeResult{}, fmt.Errorf("node %q: missing sub-workflow payload", n.ID)
	}
	if s.Runner == nil {
		return workflow.FailureResult("no sub-workflow runner configured", nil), nil
	}

	depth, _ := ec.Get(ctxSubWorkflowDepth)
	d, _ := depth.(int)
	if d >= MaxSubWorkflowDepth {
		return workflow.FailureResult("sub-workflow recursion depth exceeded", nil), nil
	}

	seed := make(map[string]any, len(payload.InputMapping)+1)
	for parentKey, childKey := range payload.InputMapping {
		if v, ok := ec.Get(parentKey); ok {
			seed[childKey] = v
		}
	}
	seed[ctxSubWorkflowDepth] = d + 1

	final, err := s.Runner.RunSubWorkflow(ctx, ec.TenantID(), payload.WorkflowID, seed)
	if err != nil {
		return workflow.FailureResult(fmt.Sprintf("sub-workflow %q failed: %v", payload.WorkflowID, err), err), nil
	}

	for childKey, parentKey := range payload.OutputMapping {
		if v, ok := final[childKey]; ok {
			ec.Set(parentKey, v)
		}
	}

	return workflow.SuccessResult("", map[string]any{"subWorkflowId": payload.WorkflowID}), nil
}
