package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/freyrlabs/freyr/internal/association"
	"github.com/freyrlabs/freyr/internal/observability"
)

// ResultCache is the storage contract the cached searcher memoizes through.
// Implementations (in-memory and Redis-backed) live in internal/cache; the
// engine itself stays fully usable without any cache present.
//
// The cache is best-effort: implementations signal a miss on any internal
// failure and never surface errors to the search path.
type ResultCache interface {
	// Get returns the cached result for a fingerprint, if present.
	Get(ctx context.Context, storeID, fingerprint string) (*Result, bool)

	// Set stores a result under a fingerprint.
	Set(ctx context.Context, storeID, fingerprint string, result *Result)

	// InvalidateStore drops every entry cached for the given store.
	InvalidateStore(ctx context.Context, storeID string)
}

// CachedSearcher decorates a Searcher with fingerprint-keyed memoization.
// Cached results are shared between callers and must be treated as read-only.
type CachedSearcher struct {
	inner  Searcher
	cache  ResultCache
	bucket time.Duration
	logger *slog.Logger
}

var _ Searcher = (*CachedSearcher)(nil)

// NewCachedSearcher wraps a searcher with a result cache. The bucket controls
// how coarsely the evaluation time is folded into the fingerprint: one-minute
// buckets keep hit rates useful while bounding staleness; zero or negative
// falls back to one minute.
func NewCachedSearcher(inner Searcher, cache ResultCache, bucket time.Duration, logger *slog.Logger) *CachedSearcher {
	if inner == nil {
		panic("search: inner searcher cannot be nil")
	}
	if cache == nil {
		panic("search: result cache cannot be nil")
	}
	if bucket <= 0 {
		bucket = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CachedSearcher{
		inner:  inner,
		cache:  cache,
		bucket: bucket,
		logger: logger,
	}
}

// Search serves the result from the cache when an identical query (same
// fingerprint) was computed since the store's last mutation; otherwise it
// delegates to the inner searcher and caches the outcome.
func (c *CachedSearcher) Search(ctx context.Context, q Query) (*Result, error) {
	// Invalid queries never touch the cache or the store.
	if err := q.Validate(); err != nil {
		return nil, err
	}

	fingerprint := c.fingerprint(q)

	if result, ok := c.cache.Get(ctx, q.StoreID, fingerprint); ok {
		observability.CacheHits.Inc()
		return result, nil
	}
	observability.CacheMisses.Inc()

	result, err := c.inner.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	c.cache.Set(ctx, q.StoreID, fingerprint, result)
	return result, nil
}

// OnAssociationChanged invalidates every cached result for the mutated
// record's store. Wire it to the association event bus at startup.
func (c *CachedSearcher) OnAssociationChanged(event association.ChangedEvent) {
	observability.CacheInvalidations.Inc()
	c.logger.Debug("invalidating cached search results",
		slog.String("store_id", event.StoreID),
		slog.String("association_id", event.AssociationID),
	)
	c.cache.InvalidateStore(context.Background(), event.StoreID)
}

// fingerprint derives a deterministic key from every query field. Anchor ids
// are sorted so permutations of the same product set share an entry, and the
// evaluation time is truncated to the bucket so near-simultaneous queries
// share one too.
func (c *CachedSearcher) fingerprint(q Query) string {
	ids := make([]string, len(q.ProductIDs))
	copy(ids, q.ProductIDs)
	sort.Strings(ids)

	h := sha256.New()
	writeField(h, q.StoreID)
	for _, id := range ids {
		writeField(h, id)
	}
	writeField(h, q.Group)
	writeField(h, strconv.Itoa(q.Skip))
	writeField(h, strconv.Itoa(q.Take))
	writeField(h, strconv.FormatInt(q.EvaluationTime().Truncate(c.bucket).Unix(), 10))

	return hex.EncodeToString(h.Sum(nil))
}

// writeField separates fields with a unit separator so adjacent values
// cannot collide ("ab"+"c" vs "a"+"bc").
func writeField(w io.Writer, field string) {
	io.WriteString(w, field)
	w.Write([]byte{0x1f})
}
