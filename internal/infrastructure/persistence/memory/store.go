// Package memory keeps learner state as JSON snapshots in process memory.
// It is the default backend for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
)

// Store implements progress.Store.
// Snapshots are serialized so callers never share memory with the store.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{snapshots: make(map[string][]byte)}
}

// Load implements progress.Store.
func (s *Store) Load(ctx context.Context, userID string) (*progress.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.snapshots[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, shared.ErrStateNotFound
	}

	var st progress.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, shared.WrapError("memory", "Load", shared.ErrInvalidState, "corrupt snapshot", err)
	}
	st.Normalize()
	return &st, nil
}

// Save implements progress.Store.
func (s *Store) Save(ctx context.Context, userID string, st *progress.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if st == nil {
		return shared.NewDomainError("memory", "Save", shared.ErrInvalidInput, "state is nil")
	}

	data, err := json.Marshal(st)
	if err != nil {
		return shared.WrapError("memory", "Save", shared.ErrInvalidState, "encode snapshot", err)
	}

	s.mu.Lock()
	s.snapshots[userID] = data
	s.mu.Unlock()
	return nil
}

// Delete removes a learner's snapshot. Returns false if there was none.
func (s *Store) Delete(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.snapshots[userID]
	delete(s.snapshots, userID)
	return ok
}

// UserIDs returns the learners with a stored snapshot, sorted.
func (s *Store) UserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
