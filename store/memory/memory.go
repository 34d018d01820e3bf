// Package memory provides an in-memory store.Store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/workforce-planner/store"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu        sync.RWMutex
	instances map[string]store.InstanceRecord
	runs      map[string]store.RunRecord
	byInst    map[string][]string
}

func New() *Store {
	return &Store{
		instances: make(map[string]store.InstanceRecord),
		runs:      make(map[string]store.RunRecord),
		byInst:    make(map[string][]string),
	}
}

func (s *Store) CreateInstance(_ context.Context, rec store.InstanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[rec.ID]; ok {
		return store.ErrDuplicateID
	}
	s.instances[rec.ID] = rec
	return nil
}

func (s *Store) GetInstance(_ context.Context, id string) (*store.InstanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.instances[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) ListInstances(_ context.Context) ([]store.InstanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.InstanceRecord, 0, len(s.instances))
	for _, rec := range s.instances {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateRun(_ context.Context, rec store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[rec.InstanceID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := s.runs[rec.ID]; ok {
		return store.ErrDuplicateID
	}
	s.runs[rec.ID] = rec
	s.byInst[rec.InstanceID] = append(s.byInst[rec.InstanceID], rec.ID)
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (*store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) ListRuns(_ context.Context, instanceID string) ([]store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.instances[instanceID]; !ok {
		return nil, store.ErrNotFound
	}
	ids := s.byInst[instanceID]
	out := make([]store.RunRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.runs[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Close() error { return nil }
