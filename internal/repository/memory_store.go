package repository

import (
	"context"
	"sort"
	"sync"
)

type memoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore[T any]() Store[T] {
	return &memoryStore[T]{items: make(map[string]T)}
}

func (s *memoryStore[T]) Get(_ context.Context, key string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return v, nil
}

func (s *memoryStore[T]) Put(_ context.Context, key string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *memoryStore[T]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Scan returns values in key order so callers see a stable iteration.
func (s *memoryStore[T]) Scan(_ context.Context) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.items[k])
	}
	return out, nil
}
