package cachemem

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

// Store is the in-process challenge and session table. Entries are kept
// until deleted; expiry is only reported through ScanExpired.
type Store[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
}

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

func New[T any]() *Store[T] {
	return &Store[T]{entries: make(map[string]entry[T])}
}

func (s *Store[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if s == nil {
		return zero, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return zero, false, nil
	}
	return e.value, true, nil
}

func (s *Store[T]) Put(ctx context.Context, key string, value T, expiresAt time.Time) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{value: value, expiresAt: expiresAt}
	return nil
}

func (s *Store[T]) Delete(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *Store[T]) Take(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if s == nil {
		return zero, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return zero, false, nil
	}
	delete(s.entries, key)
	return e.value, true, nil
}

func (s *Store[T]) Update(ctx context.Context, key string, fn func(T) (T, error)) (T, bool, error) {
	var zero T
	if s == nil {
		return zero, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return zero, false, nil
	}
	next, err := fn(e.value)
	if err != nil {
		return zero, true, err
	}
	s.entries[key] = entry[T]{value: next, expiresAt: e.expiresAt}
	return next, true, nil
}

// ScanExpired lists keys whose deadline is at or before now, sorted.
func (s *Store[T]) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k, e := range s.entries {
		if !e.expiresAt.IsZero() && !e.expiresAt.After(now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Range iterates over a snapshot so fn may call back into the store.
func (s *Store[T]) Range(ctx context.Context, fn func(key string, value T) bool) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	snapshot := make(map[string]T, len(s.entries))
	for k, e := range s.entries {
		snapshot[k] = e.value
	}
	s.mu.Unlock()
	for k, v := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

func (s *Store[T]) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

var (
	_ usecase.KVStore[domain.Challenge] = (*Store[domain.Challenge])(nil)
	_ usecase.KVStore[domain.Session]   = (*Store[domain.Session])(nil)
	_ usecase.KVStore[string]           = (*Store[string])(nil)
)
