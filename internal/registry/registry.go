// Package registry remembers which channels and advertisers discovery has
// already observed, so first sightings can be counted per product.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/smart-affiliate/internal/opportunity"
)

var (
	_ opportunity.SeenRegistry = (*Memory)(nil)
	_ opportunity.SeenRegistry = (*Redis)(nil)
)

// Memory is a process-local registry.
type Memory struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

// HasSeen reports whether key was marked.
func (m *Memory) HasSeen(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[key]
	return ok, nil
}

// MarkSeen records key.
func (m *Memory) MarkSeen(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[key] = struct{}{}
	return nil
}

// Len returns the number of keys seen.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seen)
}

// DefaultRedisTTL bounds how long a sighting is remembered. A channel silent
// for longer counts as new again.
const DefaultRedisTTL = 90 * 24 * time.Hour

// Redis stores each seen key as its own string key with a TTL so sightings age out.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed registry. Keys are stored under prefix.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "smart-affiliate:seen:"
	}
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// HasSeen reports whether key exists.
func (r *Redis) HasSeen(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSeen records key and refreshes its TTL.
func (r *Redis) MarkSeen(ctx context.Context, key string) error {
	return r.client.Set(ctx, r.prefix+key, time.Now().UTC().Format(time.RFC3339), r.ttl).Err()
}
