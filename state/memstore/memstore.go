// Package memstore implements state.WorkflowRepository and
// state.WorkflowStateRepository entirely in-process, for tests and the
// engine/inmem backend.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agentforge/workflow-engine/state"
	"github.com/agentforge/workflow-engine/workflow"
)

type workflowKey struct{ tenant, id string }

// WorkflowStore is an in-memory state.WorkflowRepository.
type WorkflowStore struct {
	mu   sync.RWMutex
	data map[workflowKey]*workflow.Workflow
}

var _ state.WorkflowRepository = (*WorkflowStore)(nil)

func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{data: make(map[workflowKey]*workflow.Workflow)}
}

func (s *WorkflowStore) Save(_ context.Context, tenant string, wf *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[workflowKey{tenant, wf.ID}] = wf
	return nil
}

func (s *WorkflowStore) FindByID(_ context.Context, tenant, id string) (*workflow.Workflow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.data[workflowKey{tenant, id}]
	return wf, ok, nil
}

func (s *WorkflowStore) FindAll(_ context.Context, tenant string) ([]*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*workflow.Workflow
	for k, wf := range s.data {
		if k.tenant == tenant {
			out = append(out, wf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *WorkflowStore) Exists(_ context.Context, tenant, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[workflowKey{tenant, id}]
	return ok, nil
}

func (s *WorkflowStore) Delete(_ context.Context, tenant, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, workflowKey{tenant, id})
	return nil
}

func (s *WorkflowStore) DeleteAllForTenant(_ context.Context, tenant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if k.tenant == tenant {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *WorkflowStore) Count(_ context.Context, tenant string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.data {
		if k.tenant == tenant {
			n++
		}
	}
	return n, nil
}

type snapshotEntry struct {
	snap   *workflow.ExecutionSnapshot
	savedAt time.Time
}

// StateStore is an in-memory state.WorkflowStateRepository.
type StateStore struct {
	mu   sync.RWMutex
	data map[string]*snapshotEntry // keyed by executionID
}

var _ state.WorkflowStateRepository = (*StateStore)(nil)

func NewStateStore() *StateStore {
	return &StateStore{data: make(map[string]*snapshotEntry)}
}

func (s *StateStore) Save(_ context.Context, snap *workflow.ExecutionSnapshot) error {
	if snap.ExecutionID == "" {
		return fmt.Errorf("memstore: snapshot requires an executionId")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.ExecutionID] = &snapshotEntry{snap: snap, savedAt: time.Now()}
	return nil
}

func (s *StateStore) FindByExecutionID(_ context.Context, tenant, executionID string) (*workflow.ExecutionSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.data[executionID]
	if !ok || entry.snap.TenantID != tenant {
		return nil, false, nil
	}
	return entry.snap, true, nil
}

func (s *StateStore) FindByWorkflowID(_ context.Context, tenant, workflowID string) ([]*workflow.ExecutionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []*snapshotEntry
	for _, e := range s.data {
		if e.snap.TenantID == tenant && e.snap.WorkflowID == workflowID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].savedAt.Before(entries[j].savedAt) })
	out := make([]*workflow.ExecutionSnapshot, len(entries))
	for i, e := range entries {
		out[i] = e.snap
	}
	return out, nil
}

func (s *StateStore) FindPaused(_ context.Context, tenant string) ([]*workflow.ExecutionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*workflow.ExecutionSnapshot
	for _, e := range s.data {
		if e.snap.TenantID == tenant && e.snap.CheckpointReason == workflow.ReasonPaused {
			out = append(out, e.snap)
		}
	}
	return out, nil
}

func (s *StateStore) DeleteAllForTenant(_ context.Context, tenant string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.data {
		if e.snap.TenantID == tenant {
			delete(s.data, id)
		}
	}
	return nil
}
