package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flatwatch/models"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int32
	batches [][]models.RawListing
	err     error
	delay   time.Duration
}

func (f *fakeFetcher) FetchBatch(ctx context.Context, targetSize int) ([]models.RawListing, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		return nil, fmt.Errorf("fetch call %d has no scripted batch", n)
	}
	batch := f.batches[0]
	if len(f.batches) > 1 {
		f.batches = f.batches[1:]
	}
	return batch, nil
}

func batchOf(pks ...int64) []models.RawListing {
	var batch []models.RawListing
	for _, pk := range pks {
		batch = append(batch, models.RawListing{"pk": pk, "state": "TI"})
	}
	return batch
}

func TestCache_ServesWithinTTL(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]models.RawListing{batchOf(1, 2)}}
	cache := NewBulkCache(fetcher, time.Hour, 100)

	base := time.Now()
	cache.now = func() time.Time { return base }

	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("first get failed: %v", err)
	}

	cache.now = func() time.Time { return base.Add(time.Hour - time.Second) }
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("second get failed: %v", err)
	}

	if n := atomic.LoadInt32(&fetcher.calls); n != 1 {
		t.Fatalf("expected exactly 1 fetch within TTL, got %d", n)
	}
}

func TestCache_RefreshesAfterTTL(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]models.RawListing{batchOf(1, 2), batchOf(3)}}
	cache := NewBulkCache(fetcher, time.Hour, 100)

	base := time.Now()
	cache.now = func() time.Time { return base }
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("first get failed: %v", err)
	}

	cache.now = func() time.Time { return base.Add(time.Hour + time.Second) }
	listings, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("refresh get failed: %v", err)
	}

	if n := atomic.LoadInt32(&fetcher.calls); n != 2 {
		t.Fatalf("expected a second fetch after expiry, got %d", n)
	}
	// Replacement is wholesale, not a merge.
	if len(listings) != 1 {
		t.Fatalf("expected the new batch of 1, got %d", len(listings))
	}
	if pk, _ := listings[0].PK(); pk != 3 {
		t.Fatalf("expected pk 3 from the refresh, got %d", pk)
	}
}

func TestCache_FailedRefreshKeepsNothingAndRetries(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("upstream down")}
	cache := NewBulkCache(fetcher, time.Hour, 100)

	if _, err := cache.Get(context.Background()); err == nil {
		t.Fatal("expected error from failed fetch")
	}
	if !cache.FetchedAt().IsZero() {
		t.Fatal("failed refresh must not advance the cache timestamp")
	}

	// Next call retries instead of serving a cached failure.
	fetcher.err = nil
	fetcher.mu.Lock()
	fetcher.batches = [][]models.RawListing{batchOf(7)}
	fetcher.mu.Unlock()

	listings, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing after retry, got %d", len(listings))
	}
	if n := atomic.LoadInt32(&fetcher.calls); n != 2 {
		t.Fatalf("expected 2 fetch attempts, got %d", n)
	}
}

func TestCache_EmptyBatchStillReplaces(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]models.RawListing{{}}}
	cache := NewBulkCache(fetcher, time.Hour, 100)

	listings, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("expected empty batch, got %d", len(listings))
	}
	if cache.FetchedAt().IsZero() {
		t.Fatal("successful empty fetch must advance the cache timestamp")
	}

	// Served from cache now, no second fetch.
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if n := atomic.LoadInt32(&fetcher.calls); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}
}

func TestCache_ConcurrentCallersShareOneRefresh(t *testing.T) {
	fetcher := &fakeFetcher{
		batches: [][]models.RawListing{batchOf(1, 2, 3)},
		delay:   20 * time.Millisecond,
	}
	cache := NewBulkCache(fetcher, time.Hour, 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listings, err := cache.Get(context.Background())
			if err != nil {
				t.Errorf("get failed: %v", err)
				return
			}
			if len(listings) != 3 {
				t.Errorf("expected 3 listings, got %d", len(listings))
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&fetcher.calls); n != 1 {
		t.Fatalf("expected a single shared fetch, got %d", n)
	}
}

func TestCache_RecentLimitsFromHead(t *testing.T) {
	fetcher := &fakeFetcher{batches: [][]models.RawListing{batchOf(10, 20, 30, 40)}}
	cache := NewBulkCache(fetcher, time.Hour, 100)

	recent, err := cache.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(recent))
	}
	if pk, _ := recent[0].PK(); pk != 10 {
		t.Fatalf("expected head of batch first, got pk %d", pk)
	}
}
