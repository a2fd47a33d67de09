// Package agentprovider implements the AgentConfig → LLM-response bridge:
// a priority-ordered registry of Provider adapters, discovered the way the
// teacher discovers model clients (interface + explicit registration, no
// classpath scanning), each wrapping a concrete LLM SDK.
package agentprovider

import (
	"context"
	"fmt"

	"github.com/agentforge/workflow-engine/node"
	"github.com/agentforge/workflow-engine/workflow"
)

// Provider serves Agent invocations for the models it supports.
type Provider interface {
	// Supports reports whether this provider can serve the given model
	// identifier.
	Supports(model string) bool
	// Invoke runs a single completion against the agent's configuration
	// and the resolved prompt.
	Invoke(ctx context.Context, agent *workflow.AgentConfig, prompt string) (output string, metadata map[string]any, err error)
}

// registration pairs a provider with the priority it was registered at;
// lower numbers win. The stub provider is registered with StubPriority (-1)
// so it always matches first.
type registration struct {
	priority int
	provider Provider
}

// Registry resolves an AgentConfig's model to exactly one provider: the
// first, in priority order, whose Supports reports true. It implements both
// node.AgentInvoker and consensus.JudgeInvoker.
type Registry struct {
	providers []registration
}

var _ node.AgentInvoker = (*Registry)(nil)

// NewRegistry builds an empty registry. Register providers with Register,
// lowest priority value wins ties are broken by registration order.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a provider at the given priority (lower wins).
func (r *Registry) Register(priority int, p Provider) {
	r.providers = append(r.providers, registration{priority: priority, provider: p})
	// simple insertion sort: registries are built once at startup with a
	// handful of providers, so O(n^2) is not a concern.
	for i := len(r.providers) - 1; i > 0 && r.providers[i].priority < r.providers[i-1].priority; i-- {
		r.providers[i], r.providers[i-1] = r.providers[i-1], r.providers[i]
	}
}

// Resolve returns the highest-priority provider supporting model.
func (r *Registry) Resolve(model string) (Provider, bool) {
	for _, reg := range r.providers {
		if reg.provider.Supports(model) {
			return reg.provider, true
		}
	}
	return nil, false
}

func (r *Registry) Invoke(ctx context.Context, agent *workflow.AgentConfig, prompt string) (string, map[string]any, error) {
	if agent == nil {
		return "", nil, fmt.Errorf("agentprovider: agent configuration is required")
	}
	p, ok := r.Resolve(agent.Model)
	if !ok {
		return "", nil, fmt.Errorf("agentprovider: no provider registered for model %q", agent.Model)
	}
	return p.Invoke(ctx, agent, prompt)
}

// StubPriority is reserved for the stub provider: the data model requires
// it to have the highest priority and always match, so no real provider may
// register below it.
const StubPriority = -1
