package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/datastash/datastash/pkg/index"
	"github.com/datastash/datastash/pkg/store"
	"github.com/datastash/datastash/pkg/store/memory"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestController(t *testing.T, cfg Config) (*Controller, *memory.Store, *fakeClock) {
	t.Helper()

	backend := memory.New()
	if err := backend.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	clock := &fakeClock{now: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
	backend.SetClock(clock.Now)

	cfg.Backend = backend
	cfg.Index = index.New()
	cfg.Clock = clock.Now

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, backend, clock
}

func TestPutGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, Config{})

	payload := []byte{0x01, 0x02, 0x00, 0xff}
	if err := c.Put(ctx, "q-abc", payload, PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := c.Get(ctx, "q-abc", GetOptions{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get returned %v, want %v", got, payload)
	}
}

func TestGet_MissIsNotAnError(t *testing.T) {
	c, _, _ := newTestController(t, Config{})

	got, err := c.Get(context.Background(), "absent", GetOptions{})
	if err != nil {
		t.Fatalf("miss returned error: %v", err)
	}
	if got != nil {
		t.Errorf("miss returned payload %v", got)
	}
}

func TestHitMissCounters_Exact(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, Config{})

	const misses = 3
	for i := 0; i < misses; i++ {
		if _, err := c.Get(ctx, "key", GetOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Put(ctx, "key", []byte("v"), PutOptions{}); err != nil {
		t.Fatal(err)
	}

	const hits = 5
	for i := 0; i < hits; i++ {
		if _, err := c.Get(ctx, "key", GetOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	stats := c.Stats()
	if stats.Misses != misses {
		t.Errorf("misses = %d, want %d", stats.Misses, misses)
	}
	if stats.Hits != hits {
		t.Errorf("hits = %d, want %d", stats.Hits, hits)
	}

	c.ResetCounters()
	stats = c.Stats()
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("counters after reset = %d/%d, want 0/0", stats.Hits, stats.Misses)
	}
}

func TestGet_ExpiredEntryMissesAndIsRemoved(t *testing.T) {
	ctx := context.Background()
	c, backend, clock := newTestController(t, Config{})

	if err := c.Put(ctx, "short", []byte("v"), PutOptions{TTL: time.Minute}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Minute)

	got, err := c.Get(ctx, "short", GetOptions{})
	if err != nil {
		t.Fatalf("Get on expired entry errored: %v", err)
	}
	if got != nil {
		t.Errorf("expired entry returned payload %q", got)
	}

	// Both index entry and backing file are gone.
	if _, ok := c.Index().Get(store.PartitionCache, "short"); ok {
		t.Error("expired entry still indexed")
	}
	exists, err := backend.Exists(ctx, store.PartitionCache, "short")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("expired entry still on backend")
	}
}

func TestGet_StaleIndexEntryIsRecoverableMiss(t *testing.T) {
	ctx := context.Background()
	c, backend, _ := newTestController(t, Config{})

	if err := c.Put(ctx, "k", []byte("v"), PutOptions{}); err != nil {
		t.Fatal(err)
	}

	// Simulate host-driven quota eviction behind the index's back.
	if _, err := backend.Remove(ctx, store.PartitionCache, "k"); err != nil {
		t.Fatal(err)
	}

	got, err := c.Get(ctx, "k", GetOptions{})
	if err != nil {
		t.Fatalf("quota-evicted entry surfaced error: %v", err)
	}
	if got != nil {
		t.Errorf("quota-evicted entry returned payload %q", got)
	}
	if _, ok := c.Index().Get(store.PartitionCache, "k"); ok {
		t.Error("stale index entry survived the miss")
	}
}

func TestClearExpired_RemovesExactlyTheExpired(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestController(t, Config{})

	if err := c.Put(ctx, "expired-a", []byte("a"), PutOptions{TTL: time.Minute}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "expired-b", []byte("b"), PutOptions{TTL: 30 * time.Second}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "long-lived", []byte("c"), PutOptions{TTL: time.Hour}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "no-ttl", []byte("d"), PutOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "ds", []byte("e"), PutOptions{Partition: store.PartitionDatasets, TTL: time.Second}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(5 * time.Minute)

	removed, err := c.ClearExpired(ctx)
	if err != nil {
		t.Fatalf("ClearExpired failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("ClearExpired removed %d entries, want 3", removed)
	}

	for _, path := range []string{"expired-a", "expired-b"} {
		if _, ok := c.Index().Get(store.PartitionCache, path); ok {
			t.Errorf("%s survived ClearExpired", path)
		}
	}
	if _, ok := c.Index().Get(store.PartitionDatasets, "ds"); ok {
		t.Error("expired dataset entry survived ClearExpired")
	}
	if _, ok := c.Index().Get(store.PartitionCache, "long-lived"); !ok {
		t.Error("unexpired entry removed by ClearExpired")
	}
	if _, ok := c.Index().Get(store.PartitionCache, "no-ttl"); !ok {
		t.Error("TTL-less entry removed by ClearExpired")
	}
}

func TestDefaultTTL_AppliesToCachePartitionOnly(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestController(t, Config{DefaultTTL: time.Minute})

	if err := c.Put(ctx, "q", []byte("v"), PutOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "d", []byte("v"), PutOptions{Partition: store.PartitionDatasets}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Hour)

	removed, err := c.ClearExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("ClearExpired removed %d, want 1 (cache entry only)", removed)
	}
	if _, ok := c.Index().Get(store.PartitionDatasets, "d"); !ok {
		t.Error("dataset entry inherited the cache default TTL")
	}
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	c, backend, _ := newTestController(t, Config{})

	if err := c.Put(ctx, "k", []byte("v"), PutOptions{}); err != nil {
		t.Fatal(err)
	}

	removed, err := c.Invalidate(ctx, "k", GetOptions{})
	if err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if !removed {
		t.Error("Invalidate returned false for present key")
	}

	exists, err := backend.Exists(ctx, store.PartitionCache, "k")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("invalidated entry still on backend")
	}

	removed, err = c.Invalidate(ctx, "k", GetOptions{})
	if err != nil {
		t.Fatalf("Invalidate of absent key errored: %v", err)
	}
	if removed {
		t.Error("Invalidate of absent key returned true")
	}
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	c, backend, _ := newTestController(t, Config{})

	if err := c.Put(ctx, "a", []byte("1"), PutOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "b", []byte("2"), PutOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "keep", []byte("3"), PutOptions{Partition: store.PartitionDatasets}); err != nil {
		t.Fatal(err)
	}

	// A file the index never saw must go too.
	if err := backend.Write(ctx, store.PartitionCache, "orphan", []byte("4")); err != nil {
		t.Fatal(err)
	}

	if err := c.ClearAll(ctx, store.PartitionCache); err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}

	entries, err := backend.List(ctx, store.PartitionCache)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("cache partition holds %d entries after ClearAll", len(entries))
	}
	if s := c.Index().Stats(store.PartitionCache); s.Entries != 0 || s.TotalBytes != 0 {
		t.Errorf("index stats after ClearAll = %+v", s)
	}
	if _, ok := c.Index().Get(store.PartitionDatasets, "keep"); !ok {
		t.Error("ClearAll leaked into another partition")
	}
}

func TestStats_AggregatesPartitions(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestController(t, Config{})

	if err := c.Put(ctx, "q", make([]byte, 100), PutOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Put(ctx, "d", make([]byte, 400), PutOptions{Partition: store.PartitionDatasets}); err != nil {
		t.Fatal(err)
	}

	stats := c.Stats()
	if stats.TotalBytes != 500 {
		t.Errorf("TotalBytes = %d, want 500", stats.TotalBytes)
	}
	if ps := stats.PerPartition[store.PartitionCache]; ps.Entries != 1 || ps.TotalBytes != 100 {
		t.Errorf("cache partition stats = %+v", ps)
	}
	if ps := stats.PerPartition[store.PartitionDatasets]; ps.Entries != 1 || ps.TotalBytes != 400 {
		t.Errorf("datasets partition stats = %+v", ps)
	}
}

func TestOverwrite_RefreshesTTL(t *testing.T) {
	ctx := context.Background()
	c, _, clock := newTestController(t, Config{})

	if err := c.Put(ctx, "k", []byte("v1"), PutOptions{TTL: time.Minute}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(50 * time.Second)
	if err := c.Put(ctx, "k", []byte("v2"), PutOptions{TTL: time.Minute}); err != nil {
		t.Fatal(err)
	}

	clock.Advance(30 * time.Second)

	got, err := c.Get(ctx, "k", GetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("Get after refresh = %q, want v2", got)
	}
}
