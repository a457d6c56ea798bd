package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore keeps checkpoints in process memory. Useful for tests and for
// single-process deployments that do not need durability.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Checkpoint
	latest map[string]*Checkpoint // thread id -> highest version
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Checkpoint),
		latest: make(map[string]*Checkpoint),
	}
}

func (s *MemoryStore) Save(_ context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[cp.ID] = cp
	if cur, ok := s.latest[cp.ThreadID]; !ok || cp.Version >= cur.Version {
		s.latest[cp.ThreadID] = cp
	}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cp, nil
}

func (s *MemoryStore) LoadLatest(_ context.Context, threadID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.latest[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	return cp, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	if s.latest[cp.ThreadID] == cp {
		delete(s.latest, cp.ThreadID)
		for _, other := range s.byID {
			if other.ThreadID != cp.ThreadID {
				continue
			}
			if cur, ok := s.latest[cp.ThreadID]; !ok || other.Version > cur.Version {
				s.latest[cp.ThreadID] = other
			}
		}
	}
	return nil
}
