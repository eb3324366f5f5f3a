package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freyrlabs/freyr/internal/association"
)

// countingSearcher records how often the inner search runs.
type countingSearcher struct {
	result *Result
	err    error
	calls  int
}

func (c *countingSearcher) Search(_ context.Context, _ Query) (*Result, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

// mapCache is a plain in-memory ResultCache with store-scoped eviction.
type mapCache struct {
	entries map[string]map[string]*Result // storeID -> fingerprint -> result
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]map[string]*Result)}
}

func (m *mapCache) Get(_ context.Context, storeID, fingerprint string) (*Result, bool) {
	result, ok := m.entries[storeID][fingerprint]
	return result, ok
}

func (m *mapCache) Set(_ context.Context, storeID, fingerprint string, result *Result) {
	if m.entries[storeID] == nil {
		m.entries[storeID] = make(map[string]*Result)
	}
	m.entries[storeID][fingerprint] = result
}

func (m *mapCache) InvalidateStore(_ context.Context, storeID string) {
	delete(m.entries, storeID)
}

// brokenCache loses every write: models a failing or evicting cache backend.
type brokenCache struct{}

func (brokenCache) Get(_ context.Context, _, _ string) (*Result, bool) { return nil, false }
func (brokenCache) Set(_ context.Context, _, _ string, _ *Result)      {}
func (brokenCache) InvalidateStore(_ context.Context, _ string)        {}

func cachedQuery() Query {
	return Query{
		StoreID:    "store-1",
		ProductIDs: []string{"prod-1", "prod-2"},
		Group:      "cross-sell",
		Take:       20,
		At:         time.Date(2024, 6, 15, 12, 0, 30, 0, time.UTC),
	}
}

func TestCachedSearcher_ServesRepeatQueriesFromCache(t *testing.T) {
	inner := &countingSearcher{result: &Result{TotalCount: 2, Matches: []Match{{AssociationID: "assoc-1"}}}}
	cached := NewCachedSearcher(inner, newMapCache(), time.Minute, nil)

	first, err := cached.Search(context.Background(), cachedQuery())
	require.NoError(t, err)

	second, err := cached.Search(context.Background(), cachedQuery())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// The candidate loader ran exactly once.
	assert.Equal(t, 1, inner.calls)
}

func TestCachedSearcher_AnchorOrderDoesNotChangeTheFingerprint(t *testing.T) {
	inner := &countingSearcher{result: &Result{}}
	cached := NewCachedSearcher(inner, newMapCache(), time.Minute, nil)

	q := cachedQuery()
	q.ProductIDs = []string{"prod-1", "prod-2"}
	_, err := cached.Search(context.Background(), q)
	require.NoError(t, err)

	q.ProductIDs = []string{"prod-2", "prod-1"}
	_, err = cached.Search(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
}

func TestCachedSearcher_DistinctQueriesMiss(t *testing.T) {
	inner := &countingSearcher{result: &Result{}}
	cached := NewCachedSearcher(inner, newMapCache(), time.Minute, nil)

	base := cachedQuery()
	_, err := cached.Search(context.Background(), base)
	require.NoError(t, err)

	mutations := []func(*Query){
		func(q *Query) { q.Skip = 5 },
		func(q *Query) { q.Take = 3 },
		func(q *Query) { q.Group = "up-sell" },
		func(q *Query) { q.ProductIDs = []string{"prod-3"} },
		func(q *Query) { q.At = q.At.Add(2 * time.Minute) },
	}
	for _, mutate := range mutations {
		q := cachedQuery()
		mutate(&q)
		_, err := cached.Search(context.Background(), q)
		require.NoError(t, err)
	}

	assert.Equal(t, 1+len(mutations), inner.calls)
}

func TestCachedSearcher_TimeBucketing(t *testing.T) {
	inner := &countingSearcher{result: &Result{}}
	cached := NewCachedSearcher(inner, newMapCache(), time.Minute, nil)

	// Two queries inside the same minute bucket share an entry.
	q := cachedQuery()
	q.At = time.Date(2024, 6, 15, 12, 0, 5, 0, time.UTC)
	_, err := cached.Search(context.Background(), q)
	require.NoError(t, err)

	q.At = time.Date(2024, 6, 15, 12, 0, 55, 0, time.UTC)
	_, err = cached.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	// Crossing the bucket boundary recomputes.
	q.At = time.Date(2024, 6, 15, 12, 1, 5, 0, time.UTC)
	_, err = cached.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedSearcher_ChangeEventInvalidatesStore(t *testing.T) {
	inner := &countingSearcher{result: &Result{}}
	cached := NewCachedSearcher(inner, newMapCache(), time.Minute, nil)

	_, err := cached.Search(context.Background(), cachedQuery())
	require.NoError(t, err)
	require.Equal(t, 1, inner.calls)

	cached.OnAssociationChanged(association.ChangedEvent{StoreID: "store-1", AssociationID: "assoc-9"})

	_, err = cached.Search(context.Background(), cachedQuery())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "a change event must force recomputation")
}

func TestCachedSearcher_ChangeEventForOtherStoreKeepsEntries(t *testing.T) {
	inner := &countingSearcher{result: &Result{}}
	cached := NewCachedSearcher(inner, newMapCache(), time.Minute, nil)

	_, err := cached.Search(context.Background(), cachedQuery())
	require.NoError(t, err)

	cached.OnAssociationChanged(association.ChangedEvent{StoreID: "store-other"})

	_, err = cached.Search(context.Background(), cachedQuery())
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedSearcher_WiredToEventBus(t *testing.T) {
	inner := &countingSearcher{result: &Result{}}
	cached := NewCachedSearcher(inner, newMapCache(), time.Minute, nil)

	bus := association.NewBus()
	bus.Subscribe(cached.OnAssociationChanged)

	_, err := cached.Search(context.Background(), cachedQuery())
	require.NoError(t, err)

	bus.Publish(context.Background(), association.ChangedEvent{StoreID: "store-1"})

	_, err = cached.Search(context.Background(), cachedQuery())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedSearcher_BrokenCacheDegradesToComputation(t *testing.T) {
	inner := &countingSearcher{result: &Result{TotalCount: 1}}
	cached := NewCachedSearcher(inner, brokenCache{}, time.Minute, nil)

	for i := 1; i <= 3; i++ {
		result, err := cached.Search(context.Background(), cachedQuery())
		require.NoError(t, err)
		assert.Equal(t, 1, result.TotalCount)
		assert.Equal(t, i, inner.calls)
	}
}

func TestCachedSearcher_InvalidQueryNeverTouchesTheCache(t *testing.T) {
	inner := &countingSearcher{result: &Result{}}
	cache := newMapCache()
	cached := NewCachedSearcher(inner, cache, time.Minute, nil)

	q := cachedQuery()
	q.ProductIDs = nil

	_, err := cached.Search(context.Background(), q)

	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Zero(t, inner.calls)
	assert.Empty(t, cache.entries)
}

func TestCachedSearcher_ErrorsAreNotCached(t *testing.T) {
	innerErr := errors.New("store down")
	inner := &countingSearcher{err: innerErr}
	cache := newMapCache()
	cached := NewCachedSearcher(inner, cache, time.Minute, nil)

	_, err := cached.Search(context.Background(), cachedQuery())
	assert.ErrorIs(t, err, innerErr)
	assert.Empty(t, cache.entries)

	// Once the store recovers, the next call computes and caches normally.
	inner.err = nil
	inner.result = &Result{}
	_, err = cached.Search(context.Background(), cachedQuery())
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
