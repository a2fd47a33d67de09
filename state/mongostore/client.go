// Package mongostore hosts the MongoDB-backed WorkflowRepository and
// WorkflowStateRepository implementations, collections keyed by
// (tenant_id, execution_id)/(tenant_id, workflow_id) per spec §6.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/agentforge/workflow-engine/state"
	"github.com/agentforge/workflow-engine/workflow"
)

const (
	defaultWorkflowsCollection = "workflows"
	defaultSnapshotsCollection = "execution_snapshots"
	defaultOpTimeout           = 5 * time.Second
)

// Options configures the Mongo-backed stores.
type Options struct {
	Client              *mongodriver.Client
	Database            string
	WorkflowsCollection string
	SnapshotsCollection string
	Timeout             time.Duration
}

// Stores bundles both repository implementations so callers wire a single
// Mongo client once.
type Stores struct {
	Workflows *WorkflowRepository
	State     *StateRepository
}

// New builds both Mongo-backed repositories sharing one client, ensuring the
// tenant-scoped indexes exist.
func New(opts Options) (*Stores, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database name is required")
	}
	workflowsColl := opts.WorkflowsCollection
	if workflowsColl == "" {
		workflowsColl = defaultWorkflowsCollection
	}
	snapshotsColl := opts.SnapshotsCollection
	if snapshotsColl == "" {
		snapshotsColl = defaultSnapshotsCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	wfColl := opts.Client.Database(opts.Database).Collection(workflowsColl)
	snapColl := opts.Client.Database(opts.Database).Collection(snapshotsColl)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, wfColl, snapColl); err != nil {
		return nil, err
	}

	return &Stores{
		Workflows: &WorkflowRepository{coll: wfColl, timeout: timeout, client: opts.Client},
		State:     &StateRepository{coll: snapColl, timeout: timeout, client: opts.Client},
	}, nil
}

func ensureIndexes(ctx context.Context, wfColl, snapColl *mongodriver.Collection) error {
	_, err := wfColl.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "workflow_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = snapColl.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "execution_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func ping(ctx context.Context, client *mongodriver.Client) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return client.Ping(ctx, readpref.Primary())
}

var _ state.WorkflowRepository = (*WorkflowRepository)(nil)
var _ state.WorkflowStateRepository = (*StateRepository)(nil)

// workflowDoc is the BSON persistence shape for a workflow.Workflow.
type workflowDoc struct {
	TenantID   string `bson:"tenant_id"`
	WorkflowID string `bson:"workflow_id"`
	Version    int    `bson:"version"`
	StartNode  string `bson:"start_node"`
	Definition []byte `bson:"definition"` // canonical JSON of the full Workflow, decoded via the out-of-scope JSON-to-domain serializer
}

// snapshotDoc is the BSON persistence shape for a workflow.ExecutionSnapshot.
type snapshotDoc struct {
	TenantID         string    `bson:"tenant_id"`
	ExecutionID      string    `bson:"execution_id"`
	WorkflowID       string    `bson:"workflow_id"`
	CheckpointReason string    `bson:"checkpoint_reason"`
	SavedAt          time.Time `bson:"saved_at"`
	Payload          []byte    `bson:"payload"`
}
