package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCallToolRoundTripsThroughBroadcaster(t *testing.T) {
	b := NewChannelBroadcaster(4)
	router := NewRouter(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames, _, err := b.Subscribe(ctx, "tenant-a")
	require.NoError(t, err)

	go func() {
		frame := <-frames
		result, _ := json.Marshal(map[string]any{"ok": true})
		router.HandleResponse(Frame{JSONRPC: "2.0", ID: frame.ID, Result: result})
	}()

	result, err := router.CallTool(context.Background(), "tenant-a", "search", map[string]any{"q": "go"}, time.Second)
	require.NoError(t, err)
	require.Equal(t, true, result["ok"])
}

func TestCallToolFailsWithNoEndpoint(t *testing.T) {
	router := NewRouter(NewChannelBroadcaster(4))
	_, err := router.CallTool(context.Background(), "tenant-without-client", "search", nil, time.Second)
	require.Error(t, err)
}

func TestCallToolTimesOutWithoutResponse(t *testing.T) {
	b := NewChannelBroadcaster(4)
	router := NewRouter(b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _, err := b.Subscribe(ctx, "tenant-a")
	require.NoError(t, err)

	_, err = router.CallTool(context.Background(), "tenant-a", "search", nil, 20*time.Millisecond)
	require.Error(t, err)
}

func TestHandleResponseDropsUnknownID(t *testing.T) {
	router := NewRouter(NewChannelBroadcaster(4))
	router.HandleResponse(Frame{JSONRPC: "2.0", ID: "not-pending"})
}

func TestHandleResponsePropagatesError(t *testing.T) {
	b := NewChannelBroadcaster(4)
	router := NewRouter(b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	frames, _, err := b.Subscribe(ctx, "tenant-a")
	require.NoError(t, err)

	go func() {
		frame := <-frames
		router.HandleResponse(Frame{JSONRPC: "2.0", ID: frame.ID, Error: &FrameError{Code: 404, Message: "tool not found"}})
	}()

	_, err = router.CallTool(context.Background(), "tenant-a", "search", nil, time.Second)
	require.Error(t, err)
}
