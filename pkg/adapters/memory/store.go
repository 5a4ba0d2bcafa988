// Package memory provides an in-memory BindingStore, used by tests and
// single-process setups without Redis.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
)

// Store implements ports.BindingStore over an in-process map. The log
// semantics mirror the Redis adapter so either can back the session
// manager interchangeably.
type Store struct {
	mu   sync.RWMutex
	logs map[string][]domain.Bindings
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{logs: make(map[string][]domain.Bindings)}
}

// Append records one binding delta for the session.
func (s *Store) Append(ctx context.Context, sessionID string, delta domain.Bindings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to insulate the log from caller mutation.
	entry := make(domain.Bindings, len(delta))
	for k, v := range delta {
		entry[k] = v
	}
	s.logs[sessionID] = append(s.logs[sessionID], entry)
	return nil
}

// Load replays the session's delta log in order.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Bindings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.logs[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	merged := domain.Bindings{}
	for _, delta := range log {
		merged = merged.Merge(delta)
	}
	return merged, nil
}

// Delete removes the session's log.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, sessionID)
	return nil
}

// List returns all session IDs with a log, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.logs))
	for id := range s.logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
