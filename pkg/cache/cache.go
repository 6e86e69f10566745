// Package cache implements the policy layer over the storage backend and
// metadata index.
//
// The controller decides what lives and what dies: TTL-based expiration,
// explicit invalidation, full-partition wipes, and LRU eviction when the
// cache partition outgrows its quota. It also owns hit/miss accounting.
// The backend stays a dumb byte store; the index stays a dumb map.
//
// A miss is not an error: Get returns a nil payload for absent and expired
// entries, and store.ErrNotFound never escapes this package.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/datastash/datastash/internal/logger"
	"github.com/datastash/datastash/pkg/index"
	"github.com/datastash/datastash/pkg/metrics"
	"github.com/datastash/datastash/pkg/store"
)

// Controller applies cache policy on top of a storage backend and the
// metadata index. Safe for concurrent use; mutating operations on the same
// (partition, path) key are serialized by a per-key guard.
type Controller struct {
	backend store.Backend
	idx     *index.Index
	metrics *metrics.CacheMetrics

	keys keyedMutex

	// cacheQuota bounds the cache partition in bytes. Zero disables LRU
	// eviction. Other partitions are never auto-evicted.
	cacheQuota int64

	// defaultTTL applies to cache-partition puts that carry no explicit
	// TTL. Zero means no implicit expiration.
	defaultTTL time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	now func() time.Time
}

// Config holds controller construction parameters.
type Config struct {
	// Backend is the initialized storage backend. Required.
	Backend store.Backend

	// Index is the metadata index mirroring the backend. Required.
	Index *index.Index

	// Metrics receives instrumentation. Optional; nil records nothing.
	Metrics *metrics.CacheMetrics

	// CacheQuotaBytes bounds the cache partition; zero disables eviction.
	CacheQuotaBytes int64

	// DefaultTTL is applied to cache-partition puts without an explicit
	// TTL. Zero means entries only expire when the caller sets a TTL.
	DefaultTTL time.Duration

	// Clock overrides the time source (for tests). Defaults to time.Now.
	Clock func() time.Time
}

// PutOptions controls a single Put.
type PutOptions struct {
	// Partition selects the storage area. Defaults to the cache partition.
	Partition store.Partition

	// Metadata is stored alongside the entry (schema version, source URL).
	Metadata map[string]string

	// TTL sets the entry's expiration; zero falls back to the controller
	// default for the cache partition, and to "never" elsewhere.
	TTL time.Duration
}

// GetOptions controls a single Get.
type GetOptions struct {
	// Partition selects the storage area. Defaults to the cache partition.
	Partition store.Partition
}

// Stats is the aggregate, derived cache view. Recomputed on demand from
// the index; never persisted.
type Stats struct {
	TotalBytes   int64
	PerPartition map[store.Partition]index.PartitionStats
	Hits         int64
	Misses       int64
}

// New creates a cache controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if cfg.Index == nil {
		return nil, errors.New("index is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Controller{
		backend:    cfg.Backend,
		idx:        cfg.Index,
		metrics:    cfg.Metrics,
		cacheQuota: cfg.CacheQuotaBytes,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Clock,
	}, nil
}

func (opts GetOptions) partition() store.Partition {
	if opts.Partition == "" {
		return store.PartitionCache
	}
	return opts.Partition
}

func (opts PutOptions) partition() store.Partition {
	if opts.Partition == "" {
		return store.PartitionCache
	}
	return opts.Partition
}

// Get returns the persisted payload for a key, or nil on a miss. A key
// misses when it is unindexed, expired, or gone from the backend (host
// quota eviction); the latter two also remove the leftovers. Only
// unexpected backend failures surface as errors.
func (c *Controller) Get(ctx context.Context, path string, opts GetOptions) ([]byte, error) {
	partition := opts.partition()

	unlock := c.keys.lock(keyOf(partition, path))
	defer unlock()

	entry, ok := c.idx.Get(partition, path)
	if !ok {
		c.recordMiss()
		return nil, nil
	}

	now := c.now()
	if entry.Expired(now) {
		// Drop the corpse right away instead of waiting for the sweep.
		if _, err := c.backend.Remove(ctx, partition, path); err != nil {
			return nil, fmt.Errorf("remove expired entry: %w", err)
		}
		c.idx.Delete(partition, path)
		c.metrics.ObserveEviction("expired")
		c.recordMiss()
		c.publishPartition(partition)
		return nil, nil
	}

	payload, err := c.backend.Read(ctx, partition, path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Index pointed at a file the host evicted. Recoverable miss.
			logger.Debug("index entry without backing file", "partition", partition, "path", path)
			c.idx.Delete(partition, path)
			c.recordMiss()
			c.publishPartition(partition)
			return nil, nil
		}
		return nil, err
	}

	c.idx.Touch(partition, path, now)
	c.recordHit()
	return payload, nil
}

// Put persists the payload through the backend and records it in the index.
// The index update follows the backend write; an interruption between the
// two leaves the index without the new entry, and reconciliation repairs
// the gap on the next start. A live index entry never points at a missing
// file.
func (c *Controller) Put(ctx context.Context, path string, payload []byte, opts PutOptions) error {
	partition := opts.partition()
	if err := store.ValidatePath(path); err != nil {
		return err
	}

	unlock := c.keys.lock(keyOf(partition, path))

	err := c.backend.Write(ctx, partition, path, payload)
	if err != nil {
		unlock()
		return err
	}

	now := c.now()
	ttl := opts.TTL
	if ttl == 0 && partition == store.PartitionCache {
		ttl = c.defaultTTL
	}

	entry := index.Entry{
		Partition:    partition,
		Path:         path,
		Size:         int64(len(payload)),
		LastModified: now,
		LastAccess:   now,
		Metadata:     opts.Metadata,
	}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}
	c.idx.Put(entry)
	unlock()

	c.publishPartition(partition)

	if partition == store.PartitionCache && c.cacheQuota > 0 {
		if err := c.evictOverQuota(ctx); err != nil {
			return fmt.Errorf("evict over quota: %w", err)
		}
	}
	return nil
}

// Invalidate removes a single key from backend and index, reporting
// whether it was present. Invalidating an absent key is not an error.
func (c *Controller) Invalidate(ctx context.Context, path string, opts GetOptions) (bool, error) {
	partition := opts.partition()

	unlock := c.keys.lock(keyOf(partition, path))
	defer unlock()

	removed, err := c.backend.Remove(ctx, partition, path)
	if err != nil {
		return false, err
	}
	indexed := c.idx.Delete(partition, path)
	if removed || indexed {
		c.metrics.ObserveEviction("invalidated")
		c.publishPartition(partition)
	}
	return removed || indexed, nil
}

// ClearExpired removes exactly the entries whose TTL has elapsed, across
// all partitions, from both index and backend. TTL-less entries are left
// untouched. Returns the number of entries removed.
func (c *Controller) ClearExpired(ctx context.Context) (int, error) {
	now := c.now()
	removed := 0

	for _, partition := range store.Partitions() {
		for _, entry := range c.idx.Entries(partition) {
			if !entry.Expired(now) {
				continue
			}

			unlock := c.keys.lock(keyOf(partition, entry.Path))
			// Recheck under the key guard; a concurrent Put may have
			// refreshed the entry.
			current, ok := c.idx.Get(partition, entry.Path)
			if !ok || !current.Expired(now) {
				unlock()
				continue
			}
			if _, err := c.backend.Remove(ctx, partition, entry.Path); err != nil {
				unlock()
				return removed, fmt.Errorf("clear expired %s/%s: %w", partition, entry.Path, err)
			}
			c.idx.Delete(partition, entry.Path)
			unlock()

			c.metrics.ObserveEviction("expired")
			removed++
		}
		c.publishPartition(partition)
	}

	return removed, nil
}

// ClearAll wipes one partition: every entry leaves both backend and index.
func (c *Controller) ClearAll(ctx context.Context, partition store.Partition) error {
	for _, entry := range c.idx.Entries(partition) {
		unlock := c.keys.lock(keyOf(partition, entry.Path))
		_, err := c.backend.Remove(ctx, partition, entry.Path)
		if err == nil {
			c.idx.Delete(partition, entry.Path)
		}
		unlock()
		if err != nil {
			return fmt.Errorf("clear %s: %w", partition, err)
		}
	}

	// Catch backing files the index never saw this session.
	listed, err := c.backend.List(ctx, partition)
	if err != nil {
		return fmt.Errorf("clear %s: %w", partition, err)
	}
	for _, info := range listed {
		if _, err := c.backend.Remove(ctx, partition, info.Name); err != nil {
			return fmt.Errorf("clear %s: %w", partition, err)
		}
	}

	c.idx.ClearPartition(partition)
	c.publishPartition(partition)
	return nil
}

// Stats aggregates current index contents per partition plus the running
// hit/miss counters.
func (c *Controller) Stats() Stats {
	stats := Stats{
		PerPartition: make(map[store.Partition]index.PartitionStats, 3),
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
	}
	for _, partition := range store.Partitions() {
		ps := c.idx.Stats(partition)
		stats.PerPartition[partition] = ps
		stats.TotalBytes += ps.TotalBytes
	}
	return stats
}

// ResetCounters zeroes the hit/miss counters. Counters are process-lifetime
// otherwise; nothing resets them implicitly.
func (c *Controller) ResetCounters() {
	c.hits.Store(0)
	c.misses.Store(0)
}

// Index exposes the metadata index to collaborating layers (read-mostly;
// the sync coordinator walks it during revalidation).
func (c *Controller) Index() *index.Index {
	return c.idx
}

func (c *Controller) recordHit() {
	c.hits.Add(1)
	c.metrics.ObserveHit()
}

func (c *Controller) recordMiss() {
	c.misses.Add(1)
	c.metrics.ObserveMiss()
}

func (c *Controller) publishPartition(partition store.Partition) {
	ps := c.idx.Stats(partition)
	c.metrics.SetPartitionSize(partition.String(), ps.TotalBytes, ps.Entries)
}
