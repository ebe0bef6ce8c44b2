package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dogwifhat6/supplychain-lens/internal/domain"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/output"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisCache implements output.Cache on Redis.
type RedisCache struct {
	client  *redis.Client
	metrics output.MetricsCollector
}

// NewRedisCache creates a Redis-backed cache. The connection is lazy; use
// Ping to verify it.
func NewRedisCache(cfg RedisConfig, metrics output.MetricsCollector) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		metrics: metrics,
	}
}

// Get returns the cached value. A missing key is (nil, false, nil).
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.metrics.IncCacheLookup(false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StorageError{Operation: "cache_get", Key: key, Err: err}
	}
	c.metrics.IncCacheLookup(true)
	return val, true, nil
}

// Set stores value with the given TTL. A zero TTL never expires.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return &domain.StorageError{Operation: "cache_set", Key: key, Err: err}
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
