// Package cache provides the result-cache backends for the search engine:
// an in-process cache built on otter's S3-FIFO implementation and a shared
// Redis-backed cache. Both key entries under a per-store version counter, so
// invalidating a store is a single counter bump rather than a scan; stale
// entries simply age out under TTL and capacity pressure.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/freyrlabs/freyr/internal/search"
)

// Memory is the in-process result cache. Entry lookups are contention-free
// otter reads; the version map is the only locked structure and is touched
// once per operation.
type Memory struct {
	entries otter.Cache[string, *search.Result]

	mu       sync.RWMutex
	versions map[string]uint64
}

var _ search.ResultCache = (*Memory)(nil)

// NewMemory initializes the in-memory cache with strict limits.
// capacity caps the number of entries (hard cap to prevent OOM);
// ttl is the safety net bounding staleness when no change event arrives.
func NewMemory(capacity int, ttl time.Duration) (*Memory, error) {
	entries, err := otter.MustBuilder[string, *search.Result](capacity).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}

	return &Memory{
		entries:  entries,
		versions: make(map[string]uint64),
	}, nil
}

// Get returns the cached result for the fingerprint at the store's current
// version.
func (c *Memory) Get(_ context.Context, storeID, fingerprint string) (*search.Result, bool) {
	return c.entries.Get(c.key(storeID, fingerprint))
}

// Set stores a result under the store's current version.
func (c *Memory) Set(_ context.Context, storeID, fingerprint string, result *search.Result) {
	c.entries.Set(c.key(storeID, fingerprint), result)
}

// InvalidateStore bumps the store's version counter, orphaning every entry
// cached for it. Orphaned entries are reclaimed by TTL and eviction.
func (c *Memory) InvalidateStore(_ context.Context, storeID string) {
	c.mu.Lock()
	c.versions[storeID]++
	c.mu.Unlock()
}

// Close shuts down the cache and its background cleanup goroutines.
func (c *Memory) Close() {
	c.entries.Close()
}

func (c *Memory) key(storeID, fingerprint string) string {
	c.mu.RLock()
	version := c.versions[storeID]
	c.mu.RUnlock()

	return storeID + ":" + strconv.FormatUint(version, 10) + ":" + fingerprint
}
