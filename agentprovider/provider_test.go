package agentprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentforge/workflow-engine/workflow"
)

type fakeProvider struct {
	prefix string
	output string
}

func (f fakeProvider) Supports(model string) bool { return len(model) >= len(f.prefix) && model[:len(f.prefix)] == f.prefix }
func (f fakeProvider) Invoke(context.Context, *workflow.AgentConfig, string) (string, map[string]any, error) {
	return f.output, nil, nil
}

func TestRegistryResolvesHighestPriorityMatch(t *testing.T) {
	r := NewRegistry()
	r.Register(10, fakeProvider{prefix: "claude-", output: "from-anthropic"})
	r.Register(20, fakeProvider{prefix: "gpt-", output: "from-openai"})

	p, ok := r.Resolve("claude-opus")
	require.True(t, ok)
	out, _, err := p.Invoke(context.Background(), nil, "")
	require.NoError(t, err)
	require.Equal(t, "from-anthropic", out)
}

func TestStubProviderAlwaysMatchesAtHighestPriority(t *testing.T) {
	r := NewRegistry()
	stub := NewStubProvider()
	stub.SetResponse("agent-1", StubResponse{Output: "stubbed"})
	r.Register(StubPriority, stub)
	r.Register(10, fakeProvider{prefix: "claude-", output: "real"})

	out, _, err := r.Invoke(context.Background(), &workflow.AgentConfig{ID: "agent-1", Model: "claude-3"}, "hi")
	require.NoError(t, err)
	require.Equal(t, "stubbed", out)
}

func TestRegistryReturnsErrorWhenNoProviderMatches(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Invoke(context.Background(), &workflow.AgentConfig{ID: "a", Model: "unknown-model"}, "hi")
	require.Error(t, err)
}
