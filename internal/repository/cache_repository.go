package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
)

const (
	cacheKeyPrefix = "jobshop:"
	scanBatch      = 100
)

// CacheRepository stores JSON payloads in Redis under a namespaced key.
type CacheRepository struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewCacheRepository constructs a cache repository. A nil client yields a repository that always misses.
func NewCacheRepository(client redis.UniversalClient, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

func cacheKey(key string) string {
	return cacheKeyPrefix + key
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}

	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, cacheKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// DeleteByPattern unlinks every key matching pattern, scanning in batches.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}

	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, cacheKey(pattern), scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := r.client.Unlink(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("redis unlink %s: %w", pattern, err)
			}
			removed += n
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	r.logger.Debug("cache entries removed", zap.String("pattern", pattern), zap.Int64("count", removed))
	return nil
}

// Ping reports Redis reachability to /ready.
func (r *CacheRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
