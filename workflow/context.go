package workflow

// ExecutionContext is the controlled handle through which node executors may
// read and mutate per-execution context. Executors must not reach into
// ExecutionState directly; the data model requires all context mutation to
// flow through this handle.
type ExecutionContext struct {
	state    *ExecutionState
	resolver TemplateResolver
	workflow *Workflow
}

// NewExecutionContext wraps state behind the controlled handle. wf is the
// owning (read-only) Workflow, exposed so executors can resolve node ids for
// fork/join/sub-workflow targets.
func NewExecutionContext(state *ExecutionState, resolver TemplateResolver, wf *Workflow) *ExecutionContext {
	return &ExecutionContext{state: state, resolver: resolver, workflow: wf}
}

// Node looks up a node by id within the owning workflow.
func (e *ExecutionContext) Node(id string) (*Node, bool) {
	n, ok := e.workflow.Nodes[id]
	return n, ok
}

// Agent looks up an agent configuration by id within the owning workflow.
func (e *ExecutionContext) Agent(id string) (*AgentConfig, bool) {
	a, ok := e.workflow.Agents[id]
	return a, ok
}

// RubricSource looks up a rubric definition string by id within the owning
// workflow (the rubric package parses it; the data model treats it as an
// opaque string here).
func (e *ExecutionContext) RubricSource(id string) (string, bool) {
	r, ok := e.workflow.Rubrics[id]
	return r, ok
}

func (e *ExecutionContext) Get(key string) (any, bool) {
	v, ok := e.state.Context[key]
	return v, ok
}

func (e *ExecutionContext) Set(key string, value any) {
	e.state.Context[key] = value
}

func (e *ExecutionContext) Merge(values map[string]any) {
	for k, v := range values {
		e.state.Context[k] = v
	}
}

// Resolve performs {variable} template substitution against the current
// context.
func (e *ExecutionContext) Resolve(template string) string {
	if e.resolver == nil {
		return template
	}
	return e.resolver.Resolve(template, e.state.Context)
}

func (e *ExecutionContext) TenantID() string    { return e.state.TenantID() }
func (e *ExecutionContext) ExecutionID() string { return e.state.ExecutionID }
func (e *ExecutionContext) WorkflowID() string  { return e.state.WorkflowID }

// State returns the current state's executor-facing view (read-only by
// convention; callers must use Set/Merge to mutate).
func (e *ExecutionContext) State() *ExecutionState { return e.state }

// TemplateResolver performs `{variable}` substitution in prompts against the
// execution context.
type TemplateResolver interface {
	Resolve(template string, ctx map[string]any) string
}
