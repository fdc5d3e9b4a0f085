package kvstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store.
// Useful for development and testing.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string

	// Injected failures, keyed by operation name ("get", "set", "remove", "keys", "clear").
	failures map[string]error
	sets     int
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]string),
		failures: make(map[string]error),
	}
}

// FailOn makes every subsequent call of the named operation return err. A nil err clears
// the failure.
func (s *MemoryStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// SetCount returns how many successful writes the store has accepted.
func (s *MemoryStore) SetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sets
}

// Get retrieves a value by key.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures["get"]; err != nil {
		return "", false, err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

// Set stores a value.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["set"]; err != nil {
		return err
	}
	s.data[key] = value
	s.sets++
	return nil
}

// Remove deletes a key. Removing a missing key is not an error.
func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["remove"]; err != nil {
		return err
	}
	delete(s.data, key)
	return nil
}

// Keys lists every stored key.
func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures["keys"]; err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// Clear removes every key.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["clear"]; err != nil {
		return err
	}
	s.data = make(map[string]string)
	return nil
}
