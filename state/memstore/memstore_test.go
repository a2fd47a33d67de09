package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentforge/workflow-engine/workflow"
)

func TestWorkflowStoreSaveIsIdempotent(t *testing.T) {
	s := NewWorkflowStore()
	ctx := context.Background()
	wf := &workflow.Workflow{ID: "wf-1", StartNode: "a", Nodes: map[string]*workflow.Node{"a": {ID: "a", Kind: workflow.KindEnd, End: &workflow.EndPayload{Status: workflow.ExitSuccess}}}}

	require.NoError(t, s.Save(ctx, "tenant-a", wf))
	require.NoError(t, s.Save(ctx, "tenant-a", wf))

	n, err := s.Count(ctx, "tenant-a")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	found, ok, err := s.FindByID(ctx, "tenant-a", "wf-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, wf, found)
}

func TestWorkflowStoreTenantIsolation(t *testing.T) {
	s := NewWorkflowStore()
	ctx := context.Background()
	wf := &workflow.Workflow{ID: "wf-1", StartNode: "a", Nodes: map[string]*workflow.Node{"a": {ID: "a", Kind: workflow.KindEnd, End: &workflow.EndPayload{Status: workflow.ExitSuccess}}}}
	require.NoError(t, s.Save(ctx, "tenant-a", wf))

	_, ok, err := s.FindByID(ctx, "tenant-b", "wf-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStateStoreFindPausedFiltersByTenantAndReason(t *testing.T) {
	s := NewStateStore()
	ctx := context.Background()

	paused := &workflow.ExecutionSnapshot{ExecutionID: "exec-1", WorkflowID: "wf-1", TenantID: "tenant-a", CheckpointReason: workflow.ReasonPaused}
	completed := &workflow.ExecutionSnapshot{ExecutionID: "exec-2", WorkflowID: "wf-1", TenantID: "tenant-a", CheckpointReason: workflow.ReasonCompleted}
	otherTenant := &workflow.ExecutionSnapshot{ExecutionID: "exec-3", WorkflowID: "wf-1", TenantID: "tenant-b", CheckpointReason: workflow.ReasonPaused}

	require.NoError(t, s.Save(ctx, paused))
	require.NoError(t, s.Save(ctx, completed))
	require.NoError(t, s.Save(ctx, otherTenant))

	out, err := s.FindPaused(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "exec-1", out[0].ExecutionID)
}

func TestStateStoreFindByWorkflowIDOrdersChronologically(t *testing.T) {
	s := NewStateStore()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, &workflow.ExecutionSnapshot{ExecutionID: "exec-1", WorkflowID: "wf-1", TenantID: "tenant-a"}))
	require.NoError(t, s.Save(ctx, &workflow.ExecutionSnapshot{ExecutionID: "exec-2", WorkflowID: "wf-1", TenantID: "tenant-a"}))

	out, err := s.FindByWorkflowID(ctx, "tenant-a", "wf-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "exec-1", out[0].ExecutionID)
	require.Equal(t, "exec-2", out[1].ExecutionID)
}
