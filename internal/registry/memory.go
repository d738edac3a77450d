package registry

import (
	"context"
	"sync"
)

// MemoryStore is an in-process store, mostly for tests.  Err, when
// set, fails every query.
type MemoryStore struct {
	mu     sync.Mutex
	hosts  []string
	rules  []string
	Err    error
	closed bool
}

// NewMemoryStore returns a store holding copies of hosts and rules.
func NewMemoryStore(hosts, rules []string) *MemoryStore {
	return &MemoryStore{
		hosts: append([]string(nil), hosts...),
		rules: append([]string(nil), rules...),
	}
}

func (s *MemoryStore) Hosts(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]string(nil), s.hosts...), nil
}

func (s *MemoryStore) Rules(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]string(nil), s.rules...), nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *MemoryStore) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
