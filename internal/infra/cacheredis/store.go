package cacheredis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/usecase"
)

// DefaultRetention keeps keys readable after their logical deadline so the
// reaper can still audit them before Redis evicts them.
const DefaultRetention = time.Hour

const scanBatch = 256

// updateAttempts bounds optimistic retries when another writer touches a
// watched key between read and write.
const updateAttempts = 8

// Store keeps one table under a key prefix. Values are JSON envelopes that
// carry their own deadline.
type Store[T any] struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

type envelope[T any] struct {
	Value     T         `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewClient(addr, password string, db int) (redis.UniversalClient, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}

func New[T any](client redis.UniversalClient, prefix string, now func() time.Time) *Store[T] {
	if now == nil {
		now = time.Now
	}
	return &Store[T]{client: client, prefix: prefix, retention: DefaultRetention, now: now}
}

func (s *Store[T]) key(k string) string {
	return s.prefix + k
}

func (s *Store[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	env, err := decode[T](raw)
	if err != nil {
		return zero, false, err
	}
	return env.Value, true, nil
}

func (s *Store[T]) Put(ctx context.Context, key string, value T, expiresAt time.Time) error {
	raw, err := json.Marshal(envelope[T]{Value: value, ExpiresAt: expiresAt.UTC()})
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(s.now()) + s.retention
		if ttl <= 0 {
			ttl = s.retention
		}
	}
	return s.client.Set(ctx, s.key(key), raw, ttl).Err()
}

func (s *Store[T]) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Take relies on GETDEL so concurrent consumers across processes see the
// value at most once.
func (s *Store[T]) Take(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	env, err := decode[T](raw)
	if err != nil {
		return zero, false, err
	}
	return env.Value, true, nil
}

// Update runs a WATCH/MULTI compare-and-set. A Delete that lands between the
// read and the write aborts the transaction, and the retry then sees the key
// gone, so a deleted entry is never written back.
func (s *Store[T]) Update(ctx context.Context, key string, fn func(T) (T, error)) (T, bool, error) {
	var (
		zero  T
		next  T
		found bool
	)
	full := s.key(key)
	txf := func(tx *redis.Tx) error {
		found = false
		raw, err := tx.Get(ctx, full).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		env, err := decode[T](raw)
		if err != nil {
			return err
		}
		found = true
		if next, err = fn(env.Value); err != nil {
			return err
		}
		out, err := json.Marshal(envelope[T]{Value: next, ExpiresAt: env.ExpiresAt})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, out, redis.KeepTTL)
			return nil
		})
		return err
	}
	for i := 0; i < updateAttempts; i++ {
		err := s.client.Watch(ctx, txf, full)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return zero, found, err
		}
		if !found {
			return zero, false, nil
		}
		return next, true, nil
	}
	return zero, false, fmt.Errorf("update %s: too much contention", full)
}

func (s *Store[T]) ScanExpired(ctx context.Context, now time.Time) ([]string, error) {
	var keys []string
	err := s.scan(ctx, func(key string, env envelope[T]) bool {
		if !env.ExpiresAt.IsZero() && !env.ExpiresAt.After(now) {
			keys = append(keys, key)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store[T]) Range(ctx context.Context, fn func(key string, value T) bool) error {
	return s.scan(ctx, func(key string, env envelope[T]) bool {
		return fn(key, env.Value)
	})
}

func (s *Store[T]) scan(ctx context.Context, fn func(key string, env envelope[T]) bool) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		raw, err := s.client.Get(ctx, full).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}
		env, err := decode[T](raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", full, err)
		}
		if !fn(full[len(s.prefix):], env) {
			return nil
		}
	}
	return iter.Err()
}

func decode[T any](raw []byte) (envelope[T], error) {
	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope[T]{}, err
	}
	return env, nil
}

var (
	_ usecase.KVStore[domain.Challenge] = (*Store[domain.Challenge])(nil)
	_ usecase.KVStore[domain.Session]   = (*Store[domain.Session])(nil)
	_ usecase.KVStore[string]           = (*Store[string])(nil)
)
