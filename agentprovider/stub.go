package agentprovider

import (
	"context"
	"sync"

	"github.com/agentforge/workflow-engine/workflow"
)

// StubProvider always matches, per the data model's AgentConfig invariant
// ("the stub provider has highest priority and always matches"). It exists
// for the testable properties and end-to-end scenarios, which stub agent
// responses rather than calling a real LLM.
type StubProvider struct {
	mu        sync.RWMutex
	responses map[string]StubResponse
	fallback  StubResponse
}

// StubResponse is a canned reply, returned on every matching invocation.
type StubResponse struct {
	Output   string
	Metadata map[string]any
	Err      error
}

// NewStubProvider constructs an empty stub; use SetResponse to seed replies
// keyed by agent id before running a stubbed scenario.
func NewStubProvider() *StubProvider {
	return &StubProvider{responses: make(map[string]StubResponse)}
}

func (s *StubProvider) Supports(string) bool { return true }

// SetResponse registers the canned reply returned for every future
// invocation of agentID until changed again.
func (s *StubProvider) SetResponse(agentID string, resp StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[agentID] = resp
}

// SetFallback registers the reply used for agent ids with no specific
// response configured.
func (s *StubProvider) SetFallback(resp StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = resp
}

func (s *StubProvider) Invoke(_ context.Context, agent *workflow.AgentConfig, _ string) (string, map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if agent != nil {
		if resp, ok := s.responses[agent.ID]; ok {
			return resp.Output, resp.Metadata, resp.Err
		}
	}
	return s.fallback.Output, s.fallback.Metadata, s.fallback.Err
}
