package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the snapshot in memory. Used by tests; FailNextSave lets
// tests exercise the rollback-on-persist-failure path.
type MemoryStore struct {
	mu           sync.Mutex
	blob         []byte
	saves        int
	failNextSave error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the last saved blob, or ErrNoSnapshot.
func (s *MemoryStore) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blob == nil {
		return nil, ErrNoSnapshot
	}
	out := make([]byte, len(s.blob))
	copy(out, s.blob)
	return out, nil
}

// Save stores a copy of the blob, or returns the injected failure.
func (s *MemoryStore) Save(_ context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextSave != nil {
		err := s.failNextSave
		s.failNextSave = nil
		return err
	}
	s.blob = make([]byte, len(blob))
	copy(s.blob, blob)
	s.saves++
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// FailNextSave makes the next Save return err.
func (s *MemoryStore) FailNextSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextSave = err
}

// Saves reports how many saves succeeded.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
