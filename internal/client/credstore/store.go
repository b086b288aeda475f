// Package credstore persists the client's token pair between runs.
package credstore

import (
	"context"
	"sync"
)

const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
)

// Store is a small durable key-value store. Get reports ok=false for a
// missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Clear removes both tokens.
func Clear(ctx context.Context, s Store) error {
	if err := s.Delete(ctx, KeyAccessToken); err != nil {
		return err
	}
	return s.Delete(ctx, KeyRefreshToken)
}
