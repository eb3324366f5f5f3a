package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freyrlabs/freyr/internal/search"
	"github.com/freyrlabs/freyr/internal/validation"
)

// keyPrefix namespaces every search-result key in Redis.
// Entries:  freyr:search:<store>:<version>:<fingerprint>
// Versions: freyr:search:ver:<store>
const keyPrefix = "freyr:search"

// Redis is the shared result cache. Because invalidation is a version bump
// (INCR), it works across instances without pub/sub plumbing: every process
// reads the same version key before composing an entry key.
//
// All operations are best-effort: any Redis failure degrades to a miss (Get)
// or a dropped write (Set) and is only logged, never returned.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ search.ResultCache = (*Redis)(nil)

// NewRedis wraps an existing client as a result cache. ttl bounds entry
// staleness; zero or negative falls back to five minutes.
func NewRedis(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Redis {
	validation.AssertNotNil(client, "redis client")
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached result for the fingerprint at the store's current
// version. Any failure, including a corrupt entry, is a miss.
func (c *Redis) Get(ctx context.Context, storeID, fingerprint string) (*search.Result, bool) {
	version, ok := c.version(ctx, storeID)
	if !ok {
		return nil, false
	}

	data, err := c.client.Get(ctx, c.entryKey(storeID, version, fingerprint)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("result cache read failed", slog.String("error", err.Error()))
		}
		return nil, false
	}

	var result search.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("discarding corrupt result cache entry",
			slog.String("store_id", storeID),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	return &result, true
}

// Set stores a result under the store's current version with the configured
// TTL.
func (c *Redis) Set(ctx context.Context, storeID, fingerprint string, result *search.Result) {
	version, ok := c.version(ctx, storeID)
	if !ok {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("failed to serialize search result", slog.String("error", err.Error()))
		return
	}

	if err := c.client.Set(ctx, c.entryKey(storeID, version, fingerprint), data, c.ttl).Err(); err != nil {
		c.logger.Warn("result cache write failed", slog.String("error", err.Error()))
	}
}

// InvalidateStore bumps the store's version key, orphaning every entry
// cached for it across all instances. Orphaned entries expire via TTL.
func (c *Redis) InvalidateStore(ctx context.Context, storeID string) {
	if err := c.client.Incr(ctx, c.versionKey(storeID)).Err(); err != nil {
		c.logger.Warn("result cache invalidation failed",
			slog.String("store_id", storeID),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes the underlying Redis client.
func (c *Redis) Close() error {
	return c.client.Close()
}

// version reads the store's current version counter. A missing key means
// version zero; any other failure disables the cache for this operation.
func (c *Redis) version(ctx context.Context, storeID string) (int64, bool) {
	version, err := c.client.Get(ctx, c.versionKey(storeID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		c.logger.Warn("result cache version read failed", slog.String("error", err.Error()))
		return 0, false
	}
	return version, true
}

func (c *Redis) versionKey(storeID string) string {
	return fmt.Sprintf("%s:ver:%s", keyPrefix, storeID)
}

func (c *Redis) entryKey(storeID string, version int64, fingerprint string) string {
	return fmt.Sprintf("%s:%s:%d:%s", keyPrefix, storeID, version, fingerprint)
}
