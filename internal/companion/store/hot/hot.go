// Package hot is the hot tier (§6 "Hot store (keyed)"): a TTL-keyed cache
// backed by Redis. Grounded on intelligencedev-manifold's RedisSkillsCache
// (internal/skills/redis_cache.go) — the only repo in the pack that pairs a
// TTL cache with the same "string key -> JSON/string value, miss falls through
// to a slower tier" shape this spec needs for A/D/H.
package hot

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kiosk404/soulgraph/internal/companion/config"
	"github.com/kiosk404/soulgraph/internal/companion/log"
)

var logger = log.For("hotstore")

// Store wraps a Redis client for the three keyed shapes spec §6 documents:
// a scalar string (beijing_time), a struct hash (role_mood:<id>), and an
// ordered list (session:<id>:messages).
type Store struct {
	client *redis.Client
}

// New connects to Redis using the given StoreConfig. Connection failures are
// not fatal here — callers degrade to StoreUnavailable semantics (spec §7) on
// first failed operation rather than refusing to start.
func New(cfg config.StoreConfig) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})}
}

// Ping checks connectivity; used by health checks and tests, never by core
// request paths (those degrade on error instead of pre-checking).
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetString reads a scalar string key. ok=false on miss or error.
func (s *Store) GetString(ctx context.Context, key string) (string, bool) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.WithError(err).WithField("key", key).Debug("get string failed")
		}
		return "", false
	}
	return val, true
}

// SetString writes a scalar string key with a TTL.
func (s *Store) SetString(ctx context.Context, key, val string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, val, ttl).Err(); err != nil {
		return fmt.Errorf("hotstore: set %q: %w", key, err)
	}
	return nil
}

// Expire refreshes a key's TTL without rewriting its value (used by the
// Dialogue Log's "extend to 2h on every persistence round-trip" rule).
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("hotstore: expire %q: %w", key, err)
	}
	return nil
}

// LPush pushes a value to the head of a list key, matching spec §4.H: "Writes
// push newest to head (so a right-to-left traversal is oldest->newest)."
func (s *Store) LPush(ctx context.Context, key, val string) error {
	if err := s.client.LPush(ctx, key, val).Err(); err != nil {
		return fmt.Errorf("hotstore: lpush %q: %w", key, err)
	}
	return nil
}

// LRange returns the list contents, head to tail (newest to oldest).
func (s *Store) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("hotstore: lrange %q: %w", key, err)
	}
	return vals, nil
}

// LSet overwrites the element at index (used to mark a hot entry persisted in
// place, per spec §4.H's flush step).
func (s *Store) LSet(ctx context.Context, key string, index int64, val string) error {
	if err := s.client.LSet(ctx, key, index, val).Err(); err != nil {
		return fmt.Errorf("hotstore: lset %q[%d]: %w", key, index, err)
	}
	return nil
}

// LLen returns the list length.
func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("hotstore: llen %q: %w", key, err)
	}
	return n, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Key builders, kept alongside the store so every caller constructs the same
// well-known key shapes documented in spec §6.
func KeyBeijingTime() string            { return "beijing_time" }
func KeyRoleMood(roleID string) string  { return "role_mood:" + roleID }
func KeySessionMessages(id string) string { return "session:" + id + ":messages" }
