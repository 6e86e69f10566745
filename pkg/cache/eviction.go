package cache

import (
	"context"
	"fmt"

	"github.com/datastash/datastash/internal/logger"
	"github.com/datastash/datastash/pkg/index"
	"github.com/datastash/datastash/pkg/store"
)

// evictOverQuota removes least-recently-used cache-partition entries until
// the partition fits its quota again. Datasets and temporary entries are
// never touched; quota pressure there is the host's business, surfaced as
// recoverable misses.
func (c *Controller) evictOverQuota(ctx context.Context) error {
	for c.idx.Stats(store.PartitionCache).TotalBytes > c.cacheQuota {
		victim, ok := c.pickLRUVictim()
		if !ok {
			return nil
		}

		unlock := c.keys.lock(keyOf(store.PartitionCache, victim.Path))
		// The victim may have been refreshed since selection; skip it and
		// pick again.
		current, present := c.idx.Get(store.PartitionCache, victim.Path)
		if !present || current.LastAccess.After(victim.LastAccess) {
			unlock()
			continue
		}

		if _, err := c.backend.Remove(ctx, store.PartitionCache, victim.Path); err != nil {
			unlock()
			return fmt.Errorf("evict %s: %w", victim.Path, err)
		}
		c.idx.Delete(store.PartitionCache, victim.Path)
		unlock()

		c.metrics.ObserveEviction("lru")
		logger.Debug("evicted cache entry over quota",
			"path", victim.Path,
			"size", victim.Size,
			"last_access", victim.LastAccess,
		)
	}

	c.publishPartition(store.PartitionCache)
	return nil
}

// pickLRUVictim selects the cache entry with the oldest access time.
// Entries never read since their write rank by write time.
func (c *Controller) pickLRUVictim() (index.Entry, bool) {
	entries := c.idx.Entries(store.PartitionCache)
	if len(entries) == 0 {
		return index.Entry{}, false
	}

	victim := entries[0]
	for _, entry := range entries[1:] {
		if entry.LastAccess.Before(victim.LastAccess) {
			victim = entry
		}
	}
	return victim, true
}
