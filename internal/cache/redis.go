package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raaihank/grammar-sentinel/internal/overlay"
)

// ResultCache stores grammar-check annotations keyed by text hash
type ResultCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache connects to Redis and verifies the connection
func NewResultCache(config *Config, logger *zap.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.MaxConnections > 0 {
		opts.PoolSize = config.MaxConnections
	}
	opts.MinIdleConns = config.MinIdleConns

	cache := NewFromClient(redis.NewClient(opts), config, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

// NewFromClient wraps an existing Redis client
func NewFromClient(client *redis.Client, config *Config, logger *zap.Logger) *ResultCache {
	return &ResultCache{
		client: client,
		config: config,
		logger: logger,
	}
}

// Get returns the cached annotations for text. The boolean reports a hit.
// Lookup failures are logged and reported as misses.
func (rc *ResultCache) Get(ctx context.Context, text string) ([]overlay.Annotation, bool) {
	key := rc.key(text)

	data, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		rc.misses.Add(1)
		rc.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	} else if err != nil {
		rc.misses.Add(1)
		rc.logger.Error("Cache lookup failed", zap.Error(err))
		return nil, false
	}

	var cached CachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		rc.misses.Add(1)
		rc.logger.Error("Failed to unmarshal cached result", zap.Error(err))
		// Delete corrupted cache entry
		rc.client.Del(ctx, key)
		return nil, false
	}

	rc.hits.Add(1)
	rc.logger.Debug("Cache hit", zap.String("key", key), zap.Int("annotations", len(cached.Annotations)))

	if cached.Annotations == nil {
		cached.Annotations = []overlay.Annotation{}
	}
	return cached.Annotations, true
}

// Store caches annotations for text
func (rc *ResultCache) Store(ctx context.Context, text string, annotations []overlay.Annotation) error {
	key := rc.key(text)

	data, err := json.Marshal(CachedResult{
		TextHash:    HashText(text),
		Annotations: annotations,
		CachedAt:    time.Now(),
		TTL:         int64(rc.config.DefaultTTL.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal result for caching: %w", err)
	}

	if err := rc.client.Set(ctx, key, data, rc.config.DefaultTTL).Err(); err != nil {
		rc.logger.Error("Failed to cache result", zap.Error(err))
		return fmt.Errorf("failed to cache result: %w", err)
	}

	rc.logger.Debug("Result cached", zap.String("key", key), zap.Int("annotations", len(annotations)))
	return nil
}

// GetStats returns cache performance statistics
func (rc *ResultCache) GetStats(ctx context.Context) (*CacheStats, error) {
	info, err := rc.client.Info(ctx, "memory").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get Redis info: %w", err)
	}

	stats := &CacheStats{
		Hits:   rc.hits.Load(),
		Misses: rc.misses.Load(),
	}

	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}

	for _, line := range strings.Split(info, "\r\n") {
		if memStr := strings.TrimPrefix(line, "used_memory:"); memStr != line {
			if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
				stats.MemoryUsage = mem
			}
		}
	}

	if keys, err := rc.client.DBSize(ctx).Result(); err == nil {
		stats.TotalKeys = keys
	}

	return stats, nil
}

// Clear removes all cached results
func (rc *ResultCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.config.KeyPrefix+":check:*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}

	// Delete keys in batches
	batchSize := 100
	for i := 0; i < len(keys); i += batchSize {
		end := i + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		if err := rc.client.Del(ctx, keys[i:end]...).Err(); err != nil {
			rc.logger.Error("Failed to delete cache keys", zap.Error(err))
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	rc.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection
func (rc *ResultCache) Close() error {
	if rc.client != nil {
		return rc.client.Close()
	}
	return nil
}

func (rc *ResultCache) key(text string) string {
	return fmt.Sprintf("%s:check:%s", rc.config.KeyPrefix, HashText(text))
}

// HashText returns the hex SHA-256 of text
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	colon := strings.LastIndex(userPart, ":")
	scheme := strings.Index(userPart, "://")
	if colon <= scheme+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
