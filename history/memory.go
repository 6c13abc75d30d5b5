package history

import (
	"context"
	"strings"
	"sync"
)

// InMemoryStore is a thread-safe in-memory Store.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]Entry)}
}

// Append implements Store.
func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	if s == nil {
		return ErrStoreNotConfigured
	}
	if err := validateEntry(entry); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string][]Entry)
	}
	s.entries[entry.CaseInstanceID] = append(s.entries[entry.CaseInstanceID], entry)
	return nil
}

// List returns a copy of the entries of one case instance.
func (s *InMemoryStore) List(_ context.Context, caseInstanceID string) ([]Entry, error) {
	if s == nil {
		return nil, ErrStoreNotConfigured
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries[strings.TrimSpace(caseInstanceID)]...), nil
}

// Delete drops the entries of one case instance.
func (s *InMemoryStore) Delete(_ context.Context, caseInstanceID string) error {
	if s == nil {
		return ErrStoreNotConfigured
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, strings.TrimSpace(caseInstanceID))
	return nil
}
