package workflow

// StepKind distinguishes the two PlannedStep variants.
type StepKind string

const (
	StepToolCall   StepKind = "tool_call"
	StepSynthesize StepKind = "synthesize"
)

// PlannedStep is a tagged variant: a step in a Plan is either a ToolCall or
// a Synthesize.
type PlannedStep struct {
	Kind        StepKind
	Description string

	// ToolCall fields.
	Tool      string
	Arguments map[string]any

	// Synthesize fields. AgentID is enriched with the node's agent id when
	// absent, per the dynamic-planner contract.
	AgentID string
	Prompt  string
}

// Plan is a per-node ordered list of steps, either pre-declared (static) or
// generated at runtime (dynamic) and revised in place on failure.
type Plan struct {
	NodeID      string
	Mode        PlanMode
	Steps       []PlannedStep
	Constraints map[string]any
}
