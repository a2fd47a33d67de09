// Package state defines the tenant-scoped repository contracts for
// workflow definitions and execution snapshots (spec §6), and hosts their
// concrete backends (memstore, mongostore, redisstore).
package state

import (
	"context"

	"github.com/agentforge/workflow-engine/workflow"
)

// WorkflowRepository persists immutable Workflow definitions, tenant-scoped.
// Save is idempotent: saving the same id twice upserts rather than erroring.
type WorkflowRepository interface {
	Save(ctx context.Context, tenant string, wf *workflow.Workflow) error
	FindByID(ctx context.Context, tenant, id string) (*workflow.Workflow, bool, error)
	FindAll(ctx context.Context, tenant string) ([]*workflow.Workflow, error)
	Exists(ctx context.Context, tenant, id string) (bool, error)
	Delete(ctx context.Context, tenant, id string) error
	DeleteAllForTenant(ctx context.Context, tenant string) error
	Count(ctx context.Context, tenant string) (int, error)
}

// WorkflowStateRepository persists ExecutionSnapshots, tenant-scoped. Every
// operation must provide read-your-writes within a tenant and be safe under
// concurrent callers (spec §5).
type WorkflowStateRepository interface {
	Save(ctx context.Context, snap *workflow.ExecutionSnapshot) error
	FindByExecutionID(ctx context.Context, tenant, executionID string) (*workflow.ExecutionSnapshot, bool, error)
	FindByWorkflowID(ctx context.Context, tenant, workflowID string) ([]*workflow.ExecutionSnapshot, error)
	FindPaused(ctx context.Context, tenant string) ([]*workflow.ExecutionSnapshot, error)
	DeleteAllForTenant(ctx context.Context, tenant string) error
}

// DefinitionError reports a workflow-definition validation failure
// surfaced at the repository/validation boundary (spec §7): unknown
// transition target, missing start node, duplicate node id, or missing
// referenced agent/rubric.
type DefinitionError struct {
	Tenant string
	ID     string
	Reason string
}

func (e *DefinitionError) Error() string {
	return "state: workflow " + e.Tenant + "/" + e.ID + " rejected: " + e.Reason
}
