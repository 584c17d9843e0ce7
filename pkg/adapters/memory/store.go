package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/covidash/pkg/domain"
)

// Store implements ports.SelectionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Selection
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Selection),
	}
}

// Save persists the selection in memory. Selection is a value type, so the
// stored copy is isolated from the caller.
func (s *Store) Save(ctx context.Context, sessionID string, sel domain.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = sel
	return nil
}

// Load retrieves the selection from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (domain.Selection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sel, ok := s.data[sessionID]
	if !ok {
		return domain.Selection{}, domain.ErrSessionNotFound
	}
	return sel, nil
}

// Delete removes the selection.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns stored sessions, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}
