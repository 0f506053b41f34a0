// Package checkpoint persists pipeline state snapshots against an external
// key-value store and plans resume work from them.
package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the narrow slice of a key-value store the checkpoint layer needs.
// A single Set must be atomic from a concurrent reader's perspective; the
// store never splits a snapshot across keys.
type KV interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes the value with an expiry; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Keys lists keys matching a glob-style pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisKV backs the checkpoint store with a Redis server.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV connects to the given address. The connection is lazy; the
// first operation surfaces reachability problems.
func NewRedisKV(addr string) *RedisKV {
	return &RedisKV{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Get implements KV.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set implements KV as a single atomic SET.
func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Keys implements KV via SCAN so large keyspaces are not blocked on.
func (r *RedisKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Close releases the underlying connection pool.
func (r *RedisKV) Close() error { return r.client.Close() }

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryKV is a process-local KV with Redis-like TTL semantics, used by
// tests and dry runs.
type MemoryKV struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   func() time.Time
}

// NewMemoryKV returns an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{entries: map[string]memoryEntry{}, clock: time.Now}
}

// WithClock injects a deterministic clock for expiry tests.
func (m *MemoryKV) WithClock(clock func() time.Time) *MemoryKV {
	if clock != nil {
		m.clock = clock
	}
	return m
}

// Get implements KV.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok || m.expired(entry) {
		return nil, false, nil
	}
	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, true, nil
}

// Set implements KV.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{data: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expires = m.clock().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

// Keys implements KV for the prefix patterns the store uses ("prefix*").
func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	prefix := pattern
	if n := len(pattern); n > 0 && pattern[n-1] == '*' {
		prefix = pattern[:n-1]
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key, entry := range m.entries {
		if m.expired(entry) {
			continue
		}
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *MemoryKV) expired(entry memoryEntry) bool {
	return !entry.expires.IsZero() && m.clock().After(entry.expires)
}
