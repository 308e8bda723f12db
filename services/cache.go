package services

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"flatwatch/models"
)

// Fetcher is the upstream bulk-fetch dependency of the cache.
type Fetcher interface {
	FetchBatch(ctx context.Context, targetSize int) ([]models.RawListing, error)
}

// BulkCache holds the last successful bulk fetch and serves it to all
// callers until the TTL lapses. The refresh path is guarded by a
// single-flight group: callers that observe an expired cache while a refresh
// is underway wait for that refresh's result instead of fetching again.
type BulkCache struct {
	fetcher Fetcher
	ttl     time.Duration
	target  int

	mu    sync.RWMutex
	entry *cacheEntry
	group singleflight.Group
	now   func() time.Time
}

type cacheEntry struct {
	listings  []models.RawListing
	fetchedAt time.Time
}

func NewBulkCache(fetcher Fetcher, ttl time.Duration, targetSize int) *BulkCache {
	return &BulkCache{
		fetcher: fetcher,
		ttl:     ttl,
		target:  targetSize,
		now:     time.Now,
	}
}

// Get returns the cached batch, refreshing it first when expired. A refresh
// that returns listings (even fewer than before, even none) replaces the
// cache wholesale. A refresh where no page succeeded leaves the old entry
// untouched so the next call retries, and the error is surfaced so callers
// can tell "no matches" from "fetch failed".
func (c *BulkCache) Get(ctx context.Context) ([]models.RawListing, error) {
	if listings, ok := c.fresh(); ok {
		return listings, nil
	}

	v, err, _ := c.group.Do("bulk", func() (any, error) {
		// A concurrent caller may have finished the refresh while this
		// one was queued on the group.
		if listings, ok := c.fresh(); ok {
			return listings, nil
		}

		listings, err := c.fetcher.FetchBatch(ctx, c.target)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entry = &cacheEntry{listings: listings, fetchedAt: c.now()}
		c.mu.Unlock()

		log.Printf("Cache: refreshed with %d listings", len(listings))
		return listings, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.RawListing), nil
}

// Recent returns at most limit listings from the head of the cached batch,
// the upstream's newest-first view.
func (c *BulkCache) Recent(ctx context.Context, limit int) ([]models.RawListing, error) {
	listings, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(listings) > limit {
		return listings[:limit], nil
	}
	return listings, nil
}

// FetchedAt reports the timestamp of the current entry, zero when empty.
func (c *BulkCache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return time.Time{}
	}
	return c.entry.fetchedAt
}

func (c *BulkCache) fresh() ([]models.RawListing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return nil, false
	}
	if c.now().Sub(c.entry.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.entry.listings, true
}
