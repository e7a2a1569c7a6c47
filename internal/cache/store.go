// Package cache abstracts the ephemeral key/value store used for ticket
// holds and per-event locks. The production implementation is backed by
// Redis; an in-memory implementation with the same semantics exists for
// tests and local development. Both honour per-key TTL expiry, which is
// what gives holds and locks their bounded lifetime.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aurelia-events/ticketing/internal/clock"
)

// Store is a key/value store with per-key expiry. A zero or negative TTL
// means the key does not expire. MGet returns one slot per requested key;
// a nil slot means the key is absent (or expired).
type Store interface {
	// SetNX writes the key only if it does not already exist and reports
	// whether this call created it. This is the atomic primitive the lock
	// manager is built on.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Set writes the key unconditionally, resetting its TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// MGet returns values for all keys in order; absent keys yield nil slots.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
	// Del removes the given keys. Deleting absent keys is not an error.
	Del(ctx context.Context, keys ...string) error
	// Keys returns all live keys matching a glob pattern such as "prefix:*".
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisStore implements Store on top of a go-redis client.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing Redis client. The client must be non-nil.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	if rdb == nil {
		panic("nil redis client passed to NewRedisStore")
	}
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if str, ok := v.(string); ok {
			out[i] = []byte(str)
		}
	}
	return out, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// Keys uses SCAN rather than KEYS so it never blocks the server on large
// keyspaces.
func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Memory is an in-process Store with the same TTL semantics as Redis.
// Expired entries are dropped lazily when touched by a read or write.
// It is safe for concurrent use.
type Memory struct {
	mu    sync.Mutex
	clock clock.Clock
	items map[string]memoryItem
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemory returns an empty in-memory store driven by the given clock.
func NewMemory(clk clock.Clock) *Memory {
	return &Memory{clock: clk, items: make(map[string]memoryItem)}
}

func (m *Memory) live(key string) (memoryItem, bool) {
	item, ok := m.items[key]
	if !ok {
		return memoryItem{}, false
	}
	if !item.expiresAt.IsZero() && !m.clock.Now().Before(item.expiresAt) {
		delete(m.items, key)
		return memoryItem{}, false
	}
	return item, true
}

func (m *Memory) put(key string, value []byte, ttl time.Duration) {
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = m.clock.Now().Add(ttl)
	}
	m.items[key] = item
}

func (m *Memory) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.put(key, value, ttl)
	return true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, value, ttl)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.live(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (m *Memory) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(keys))
	for i, key := range keys {
		if item, ok := m.live(key); ok {
			out[i] = append([]byte(nil), item.value...)
		}
	}
	return out, nil
}

func (m *Memory) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.items, key)
	}
	return nil
}

// Keys supports the subset of glob syntax the application uses: an exact
// key, or a fixed prefix followed by a single trailing "*".
func (m *Memory) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix, wildcard := strings.CutSuffix(pattern, "*")
	var keys []string
	for key := range m.items {
		if wildcard && !strings.HasPrefix(key, prefix) {
			continue
		}
		if !wildcard && key != pattern {
			continue
		}
		if _, ok := m.live(key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
