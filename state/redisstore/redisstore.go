// Package redisstore implements a Redis-backed WorkflowStateRepository used
// as a low-latency snapshot cache ahead of a durable store (state/mongostore
// or state/memstore). It must never be the sole source of truth: reads miss
// on eviction/expiry and callers are expected to fall back to the durable
// repository. FindByWorkflowID reads a per-workflow index set and FindPaused
// uses Redis's SCAN over this cache's key space, so both only reflect
// whatever has not yet been evicted.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentforge/workflow-engine/state"
	"github.com/agentforge/workflow-engine/workflow"
)

const defaultTTL = 15 * time.Minute

// Store is a Redis-backed hot cache for ExecutionSnapshots.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

var _ state.WorkflowStateRepository = (*Store)(nil)

// New wraps a Redis client. ttl (default 15m) bounds how long a snapshot
// stays in the hot cache after its last write.
func New(client *redis.Client, ttl time.Duration) (*Store, error) {
	if client == nil {
		return nil, errors.New("redisstore: redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{redis: client, ttl: ttl}, nil
}

func snapshotKey(tenant, executionID string) string {
	return fmt.Sprintf("wf:snap:%s:%s", tenant, executionID)
}

func workflowIndexKey(tenant, workflowID string) string {
	return fmt.Sprintf("wf:snap:by-workflow:%s:%s", tenant, workflowID)
}

func (s *Store) Save(ctx context.Context, snap *workflow.ExecutionSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redisstore: encode snapshot: %w", err)
	}
	key := snapshotKey(snap.TenantID, snap.ExecutionID)
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, key, payload, s.ttl)
	pipe.SAdd(ctx, workflowIndexKey(snap.TenantID, snap.WorkflowID), snap.ExecutionID)
	pipe.Expire(ctx, workflowIndexKey(snap.TenantID, snap.WorkflowID), s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) FindByExecutionID(ctx context.Context, tenant, executionID string) (*workflow.ExecutionSnapshot, bool, error) {
	raw, err := s.redis.Get(ctx, snapshotKey(tenant, executionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var snap workflow.ExecutionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, fmt.Errorf("redisstore: decode snapshot: %w", err)
	}
	return &snap, true, nil
}

func (s *Store) FindByWorkflowID(ctx context.Context, tenant, workflowID string) ([]*workflow.ExecutionSnapshot, error) {
	ids, err := s.redis.SMembers(ctx, workflowIndexKey(tenant, workflowID)).Result()
	if err != nil {
		return nil, err
	}
	var out []*workflow.ExecutionSnapshot
	for _, id := range ids {
		snap, ok, err := s.FindByExecutionID(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *Store) FindPaused(ctx context.Context, tenant string) ([]*workflow.ExecutionSnapshot, error) {
	var out []*workflow.ExecutionSnapshot
	iter := s.redis.Scan(ctx, 0, fmt.Sprintf("wf:snap:%s:*", tenant), 0).Iterator()
	for iter.Next(ctx) {
		raw, err := s.redis.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var snap workflow.ExecutionSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("redisstore: decode snapshot: %w", err)
		}
		if snap.CheckpointReason == workflow.ReasonPaused {
			out = append(out, &snap)
		}
	}
	return out, iter.Err()
}

func (s *Store) DeleteAllForTenant(ctx context.Context, tenant string) error {
	iter := s.redis.Scan(ctx, 0, fmt.Sprintf("wf:snap:%s:*", tenant), 0).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	idxIter := s.redis.Scan(ctx, 0, fmt.Sprintf("wf:snap:by-workflow:%s:*", tenant), 0).Iterator()
	for idxIter.Next(ctx) {
		if err := s.redis.Del(ctx, idxIter.Val()).Err(); err != nil {
			return err
		}
	}
	return idxIter.Err()
}
