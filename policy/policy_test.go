package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockListTakesPrecedenceOverAllow(t *testing.T) {
	e := New(Options{AllowTools: []string{"search"}, BlockTools: []string{"search"}})
	d, err := e.Decide(context.Background(), "tenant-a", "search")
	require.NoError(t, err)
	require.False(t, d.Allowed)
}

func TestAllowListRejectsUnlistedTool(t *testing.T) {
	e := New(Options{AllowTools: []string{"search"}})
	d, err := e.Decide(context.Background(), "tenant-a", "delete-everything")
	require.NoError(t, err)
	require.False(t, d.Allowed)
}

func TestNoListsAllowsAnyTool(t *testing.T) {
	e := New(Options{})
	d, err := e.Decide(context.Background(), "tenant-a", "anything")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}

func TestRateLimiterBlocksBurstOverflow(t *testing.T) {
	e := New(Options{RatePerSecond: 1, Burst: 1})
	first, err := e.Decide(context.Background(), "tenant-a", "search")
	require.NoError(t, err)
	require.True(t, first.Allowed)

	second, err := e.Decide(context.Background(), "tenant-a", "search")
	require.NoError(t, err)
	require.False(t, second.Allowed)
}

func TestRateLimiterIsPerTenant(t *testing.T) {
	e := New(Options{RatePerSecond: 1, Burst: 1})
	_, err := e.Decide(context.Background(), "tenant-a", "search")
	require.NoError(t, err)

	d, err := e.Decide(context.Background(), "tenant-b", "search")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}
