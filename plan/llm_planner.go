package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentforge/workflow-engine/node"
	"github.com/agentforge/workflow-engine/workflow"
)

// wireStep is the JSON shape an LLM planner response is expected to produce:
// a flat array of steps, each either a tool call or a synthesize step.
type wireStep struct {
	Kind        string         `json:"kind"`
	Description string         `json:"description"`
	Tool        string         `json:"tool,omitempty"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	AgentID     string         `json:"agentId,omitempty"`
	Prompt      string         `json:"prompt,omitempty"`
}

// LlmPlanner is the dynamic Planner implementation: it asks the node's
// agent to emit a JSON step list, tolerating markdown code fences around
// the response.
type LlmPlanner struct {
	Agents node.AgentInvoker
}

var _ Planner = (*LlmPlanner)(nil)

func NewLlmPlanner(agents node.AgentInvoker) *LlmPlanner {
	return &LlmPlanner{Agents: agents}
}

func (p *LlmPlanner) Plan(ctx context.Context, agent *workflow.AgentConfig, prompt string, constraints map[string]any) ([]workflow.PlannedStep, error) {
	full := planningPrompt(prompt, constraints)
	output, _, err := p.Agents.Invoke(ctx, agent, full)
	if err != nil {
		return nil, fmt.Errorf("plan: llm planner invocation failed: %w", err)
	}
	return parseSteps(output)
}

func (p *LlmPlanner) Replan(ctx context.Context, agent *workflow.AgentConfig, prompt string, previous []workflow.PlannedStep, failedStep int, failure string) ([]workflow.PlannedStep, error) {
	full := revisionPrompt(prompt, previous, failedStep, failure)
	output, _, err := p.Agents.Invoke(ctx, agent, full)
	if err != nil {
		return nil, fmt.Errorf("plan: llm replan invocation failed: %w", err)
	}
	return parseSteps(output)
}

func planningPrompt(prompt string, constraints map[string]any) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nProduce a plan as a JSON array of steps. Each step is either ")
	b.WriteString(`{"kind":"tool_call","tool":"...","arguments":{...}} or {"kind":"synthesize","agentId":"...","prompt":"..."}. `)
	b.WriteString("Respond with only the JSON array.")
	if len(constraints) > 0 {
		encoded, _ := json.Marshal(constraints)
		b.WriteString("\n\nConstraints: ")
		b.Write(encoded)
	}
	return b.String()
}

func revisionPrompt(prompt string, previous []workflow.PlannedStep, failedStep int, failure string) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nThe previous plan failed at step ")
	fmt.Fprintf(&b, "%d: %s\n", failedStep, failure)
	b.WriteString("Revise the plan to work around the failure. Respond with only the JSON array of steps.")
	return b.String()
}

func parseSteps(output string) ([]workflow.PlannedStep, error) {
	cleaned := stripCodeFence(output)
	var wire []wireStep
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, fmt.Errorf("plan: could not parse planner response as a JSON step array: %w", err)
	}
	steps := make([]workflow.PlannedStep, 0, len(wire))
	for _, w := range wire {
		step := workflow.PlannedStep{Description: w.Description}
		switch w.Kind {
		case "tool_call":
			step.Kind = workflow.StepToolCall
			step.Tool = w.Tool
			step.Arguments = w.Arguments
		case "synthesize":
			step.Kind = workflow.StepSynthesize
			step.AgentID = w.AgentID
			step.Prompt = w.Prompt
		default:
			return nil, fmt.Errorf("plan: unrecognized step kind %q in planner response", w.Kind)
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("plan: planner response produced an empty step list")
	}
	return steps, nil
}
