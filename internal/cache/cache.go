// Package cache memoizes prediction results in Redis.
//
// Entries are keyed by model ID and processed document, so retraining
// naturally invalidates every entry of the previous model. Concurrent misses
// on the same key are collapsed into one computation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chriscorrea/relatos/internal/config"
	"github.com/chriscorrea/relatos/internal/logger"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// KeyPrefix namespaces every prediction entry.
const KeyPrefix = "relatos:pred:"

// ErrMiss is returned by a Store when the key is absent.
var ErrMiss = errors.New("cache miss")

// Store is the byte-level backend of a Cache.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Redis is a Store backed by go-redis.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to Redis and verifies the connection with a PING.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// Ping reports whether Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Cache stores JSON-encoded values of type T.
type Cache[T any] struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New returns a Cache over store whose entries expire after ttl.
func New[T any](store Store, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		store:  store,
		ttl:    ttl,
		logger: logger.WithComponent("prediction-cache"),
	}
}

// Key derives the cache key for a processed document under a model.
func Key(modelID, processed string) string {
	hash := sha256.Sum256([]byte(modelID + "\x00" + processed))
	return fmt.Sprintf("%s%x", KeyPrefix, hash[:16])
}

// Get returns the cached value for key. Backend errors count as misses.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var value T
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		c.logger.Warn("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return value, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return value, true
}

// Set stores value under key. Failures are logged, not returned.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value for key, or computes, stores and
// returns it. The boolean reports a cache hit.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, compute func() (T, error)) (T, bool, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if value, ok := c.Get(ctx, key); ok {
			return value, nil
		}
		value, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, value)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

// Stats returns the hit and miss counts.
func (c *Cache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
