package mongostore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agentforge/workflow-engine/state"
	"github.com/agentforge/workflow-engine/workflow"
)

// WorkflowRepository implements state.WorkflowRepository backed by a Mongo
// collection, documents keyed by (tenant_id, workflow_id).
type WorkflowRepository struct {
	coll    *mongodriver.Collection
	client  *mongodriver.Client
	timeout time.Duration
}

func (r *WorkflowRepository) Ping(ctx context.Context) error { return ping(ctx, r.client) }

func (r *WorkflowRepository) Save(ctx context.Context, tenant string, wf *workflow.Workflow) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	definition, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("mongostore: encode workflow: %w", err)
	}
	doc := workflowDoc{TenantID: tenant, WorkflowID: wf.ID, Version: wf.Version, StartNode: wf.StartNode, Definition: definition}
	_, err = r.coll.ReplaceOne(ctx,
		bson.D{{Key: "tenant_id", Value: tenant}, {Key: "workflow_id", Value: wf.ID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *WorkflowRepository) FindByID(ctx context.Context, tenant, id string) (*workflow.Workflow, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var doc workflowDoc
	err := r.coll.FindOne(ctx, bson.D{{Key: "tenant_id", Value: tenant}, {Key: "workflow_id", Value: id}}).Decode(&doc)
	if err == mongodriver.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var wf workflow.Workflow
	if err := json.Unmarshal(doc.Definition, &wf); err != nil {
		return nil, false, fmt.Errorf("mongostore: decode workflow: %w", err)
	}
	return &wf, true, nil
}

func (r *WorkflowRepository) FindAll(ctx context.Context, tenant string) ([]*workflow.Workflow, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	cur, err := r.coll.Find(ctx, bson.D{{Key: "tenant_id", Value: tenant}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*workflow.Workflow
	for cur.Next(ctx) {
		var doc workflowDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		var wf workflow.Workflow
		if err := json.Unmarshal(doc.Definition, &wf); err != nil {
			return nil, fmt.Errorf("mongostore: decode workflow: %w", err)
		}
		out = append(out, &wf)
	}
	return out, cur.Err()
}

func (r *WorkflowRepository) Exists(ctx context.Context, tenant, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "tenant_id", Value: tenant}, {Key: "workflow_id", Value: id}})
	return n > 0, err
}

func (r *WorkflowRepository) Delete(ctx context.Context, tenant, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.coll.DeleteOne(ctx, bson.D{{Key: "tenant_id", Value: tenant}, {Key: "workflow_id", Value: id}})
	return err
}

func (r *WorkflowRepository) DeleteAllForTenant(ctx context.Context, tenant string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.coll.DeleteMany(ctx, bson.D{{Key: "tenant_id", Value: tenant}})
	return err
}

func (r *WorkflowRepository) Count(ctx context.Context, tenant string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "tenant_id", Value: tenant}})
	return int(n), err
}

// StateRepository implements state.WorkflowStateRepository backed by a
// Mongo collection, documents keyed by (tenant_id, execution_id).
type StateRepository struct {
	coll    *mongodriver.Collection
	client  *mongodriver.Client
	timeout time.Duration
}

func (r *StateRepository) Ping(ctx context.Context) error { return ping(ctx, r.client) }

func (r *StateRepository) Save(ctx context.Context, snap *workflow.ExecutionSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("mongostore: encode snapshot: %w", err)
	}
	doc := snapshotDoc{
		TenantID:         snap.TenantID,
		ExecutionID:      snap.ExecutionID,
		WorkflowID:       snap.WorkflowID,
		CheckpointReason: string(snap.CheckpointReason),
		SavedAt:          time.Now().UTC(),
		Payload:          payload,
	}
	_, err = r.coll.ReplaceOne(ctx,
		bson.D{{Key: "tenant_id", Value: snap.TenantID}, {Key: "execution_id", Value: snap.ExecutionID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *StateRepository) FindByExecutionID(ctx context.Context, tenant, executionID string) (*workflow.ExecutionSnapshot, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	var doc snapshotDoc
	err := r.coll.FindOne(ctx, bson.D{{Key: "tenant_id", Value: tenant}, {Key: "execution_id", Value: executionID}}).Decode(&doc)
	if err == mongodriver.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeSnapshot(doc)
}

func (r *StateRepository) FindByWorkflowID(ctx context.Context, tenant, workflowID string) ([]*workflow.ExecutionSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "saved_at", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.D{{Key: "tenant_id", Value: tenant}, {Key: "workflow_id", Value: workflowID}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	return decodeSnapshots(ctx, cur)
}

func (r *StateRepository) FindPaused(ctx context.Context, tenant string) ([]*workflow.ExecutionSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	cur, err := r.coll.Find(ctx, bson.D{
		{Key: "tenant_id", Value: tenant},
		{Key: "checkpoint_reason", Value: string(workflow.ReasonPaused)},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	return decodeSnapshots(ctx, cur)
}

func (r *StateRepository) DeleteAllForTenant(ctx context.Context, tenant string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.coll.DeleteMany(ctx, bson.D{{Key: "tenant_id", Value: tenant}})
	return err
}

func decodeSnapshot(doc snapshotDoc) (*workflow.ExecutionSnapshot, bool, error) {
	var snap workflow.ExecutionSnapshot
	if err := json.Unmarshal(doc.Payload, &snap); err != nil {
		return nil, false, fmt.Errorf("mongostore: decode snapshot: %w", err)
	}
	return &snap, true, nil
}

func decodeSnapshots(ctx context.Context, cur *mongodriver.Cursor) ([]*workflow.ExecutionSnapshot, error) {
	var out []*workflow.ExecutionSnapshot
	for cur.Next(ctx) {
		var doc snapshotDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		snap, _, err := decodeSnapshot(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, cur.Err()
}

var _ state.WorkflowRepository = (*WorkflowRepository)(nil)
var _ state.WorkflowStateRepository = (*StateRepository)(nil)
