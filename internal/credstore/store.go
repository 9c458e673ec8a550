// Package credstore persists OAuth credentials and tokens as opaque
// key-value blobs.
package credstore

import "sync"

// Keys used by the session manager.
const (
	KeyCredentials = "googleCreds"
	KeyToken       = "googleToken"
)

// Store is a generic persistent key-value store. Get returns (nil, nil)
// for absent keys; Set replaces the value wholesale.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// Memory is an in-memory Store for tests and ephemeral sessions.
type Memory struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *Memory) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

var _ Store = (*Memory)(nil)
