// Package memory provides a process-local store for tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"example.com/fitledger/internal/store"
)

// Store keeps documents in a map. Values are copied in and out so callers
// cannot mutate what was saved.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// New constructs an empty Store.
func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.docs[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

// Put implements store.Store.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[key] = append([]byte(nil), value...)
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }
