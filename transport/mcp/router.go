// Package mcp implements the server-side half of the tool transport's
// split-pipe protocol (spec §4.5/§6): a per-tenant outbound event stream
// carries tools/call requests to the connected client, and a separate
// inbound endpoint accepts that client's correlated responses.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentforge/workflow-engine/node"
)

// Frame is the wire shape shared by outbound requests and inbound
// responses/errors (spec §6 wire protocol).
type Frame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  *CallParams     `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *FrameError     `json:"error,omitempty"`
}

// CallParams is the params object of a tools/call request.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// FrameError mirrors a JSON-RPC error object.
type FrameError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *FrameError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("mcp: tool call failed (%d): %s", e.Code, e.Message)
}

// Broadcaster delivers outbound frames to the single connected client for a
// tenant. Implementations must allow Subscribe, Publish and the close
// function returned by Subscribe to be called concurrently; a missing subscription means no client is connected.
type Broadcaster interface {
	Publish(tenant string, frame Frame) bool // false iff no subscriber
	Subscribe(ctx context.Context, tenant string) (<-chan Frame, func(), error)
}

type pendingCall struct {
	done   chan struct{}
	result map[string]any
	err    error
}

// Router implements node.ToolCaller: it owns the pending-request
// correlation table and the per-tenant outbound broadcaster.
type Router struct {
	broadcaster Broadcaster

	mu      sync.Mutex
	pending map[string]*pendingCall
}

var _ node.ToolCaller = (*Router)(nil)

func NewRouter(broadcaster Broadcaster) *Router {
	return &Router{broadcaster: broadcaster, pending: make(map[string]*pendingCall)}
}

// CallTool implements node.ToolCaller: it constructs a tools/call request,
// publishes it on the tenant's outbound stream, and blocks until a
// correlated response arrives or the timeout elapses.
func (r *Router) CallTool(ctx context.Context, tenantID, name string, arguments map[string]any, timeout time.Duration) (map[string]any, error) {
	id := uuid.NewString()
	call := &pendingCall{done: make(chan struct{})}

	r.mu.Lock()
	r.pending[id] = call
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	frame := Frame{JSONRPC: "2.0", ID: id, Method: "tools/call", Params: &CallParams{Name: name, Arguments: arguments}}
	if !r.broadcaster.Publish(tenantID, frame) {
		return nil, errors.New("no MCP endpoint")
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-call.done:
		return call.result, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("mcp: tool %q timed out after %s", name, timeout)
	}
}

// HandleResponse processes an inbound frame from the client's response
// endpoint. A frame with no id, or one whose id has no pending entry (a
// late or spurious response), is dropped silently per spec §4.5.
func (r *Router) HandleResponse(frame Frame) {
	if frame.ID == "" {
		return
	}
	r.mu.Lock()
	call, ok := r.pending[frame.ID]
	delete(r.pending, frame.ID)
	r.mu.Unlock()
	if !ok {
		return
	}

	if frame.Error != nil {
		call.err = frame.Error
		close(call.done)
		return
	}
	var result map[string]any
	if len(frame.Result) > 0 {
		if err := json.Unmarshal(frame.Result, &result); err != nil {
			call.err = fmt.Errorf("mcp: malformed tool result: %w", err)
			close(call.done)
			return
		}
	}
	call.result = result
	close(call.done)
}
