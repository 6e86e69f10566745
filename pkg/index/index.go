// Package index maintains the in-memory metadata index over the storage
// backend.
//
// The index is the source of truth for "does this artifact exist" without
// touching the backend: every successful backend write or remove updates it,
// and Reconcile rebuilds a partition's view from a backend listing for
// artifacts written in a previous session. The index itself is never
// persisted.
package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/datastash/datastash/pkg/store"
)

// Entry is the indexed metadata for one stored artifact.
type Entry struct {
	// Partition is the logical storage area the artifact lives in.
	Partition store.Partition

	// Path is the artifact's key within its partition.
	Path string

	// Size is the byte length of the persisted payload. Always derived
	// from the payload, never set independently.
	Size int64

	// LastModified is the write timestamp.
	LastModified time.Time

	// ExpiresAt is the expiration deadline computed from the caller's TTL.
	// Zero means the entry never auto-expires.
	ExpiresAt time.Time

	// LastAccess is updated on cache hits and drives LRU eviction.
	LastAccess time.Time

	// Metadata is the caller-supplied key/value mapping (schema version,
	// source URL, content hash). Opaque to the index.
	Metadata map[string]string
}

// Expired reports whether the entry's TTL has elapsed at the given time.
// Entries without a TTL never expire.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now)
}

// PartitionStats aggregates one partition's index contents.
type PartitionStats struct {
	Entries    int
	TotalBytes int64
}

// Index is an in-memory (partition, path) → Entry mapping with O(1)
// lookup and per-partition size accounting. Safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries map[store.Partition]map[string]Entry
	bytes   map[store.Partition]int64
}

// New creates an empty index covering all partitions.
func New() *Index {
	idx := &Index{
		entries: make(map[store.Partition]map[string]Entry),
		bytes:   make(map[store.Partition]int64),
	}
	for _, p := range store.Partitions() {
		idx.entries[p] = make(map[string]Entry)
	}
	return idx
}

// Put inserts or replaces the entry for (entry.Partition, entry.Path).
func (idx *Index) Put(entry Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	part := idx.entries[entry.Partition]
	if part == nil {
		part = make(map[string]Entry)
		idx.entries[entry.Partition] = part
	}

	if old, ok := part[entry.Path]; ok {
		idx.bytes[entry.Partition] -= old.Size
	}
	part[entry.Path] = entry
	idx.bytes[entry.Partition] += entry.Size
}

// Get returns the entry for (partition, path).
func (idx *Index) Get(partition store.Partition, path string) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entry, ok := idx.entries[partition][path]
	return entry, ok
}

// Touch records an access time on an existing entry. A no-op for
// unindexed keys.
func (idx *Index) Touch(partition store.Partition, path string, at time.Time) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if entry, ok := idx.entries[partition][path]; ok {
		entry.LastAccess = at
		idx.entries[partition][path] = entry
	}
}

// Delete removes the entry for (partition, path), reporting whether it
// was present.
func (idx *Index) Delete(partition store.Partition, path string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entry, ok := idx.entries[partition][path]
	if !ok {
		return false
	}
	delete(idx.entries[partition], path)
	idx.bytes[partition] -= entry.Size
	return true
}

// ClearPartition drops every entry of a partition.
func (idx *Index) ClearPartition(partition store.Partition) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries[partition] = make(map[string]Entry)
	idx.bytes[partition] = 0
}

// Entries returns a snapshot of a partition's entries. No ordering
// guarantees.
func (idx *Index) Entries(partition store.Partition) []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	part := idx.entries[partition]
	out := make([]Entry, 0, len(part))
	for _, entry := range part {
		out = append(out, entry)
	}
	return out
}

// Stats returns entry count and byte total for a partition.
func (idx *Index) Stats(partition store.Partition) PartitionStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return PartitionStats{
		Entries:    len(idx.entries[partition]),
		TotalBytes: idx.bytes[partition],
	}
}

// TotalBytes returns the byte total across all partitions.
func (idx *Index) TotalBytes() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var total int64
	for _, b := range idx.bytes {
		total += b
	}
	return total
}

// Reconcile rebuilds one partition's view from a backend listing.
//
// Listed entries missing from the index are added; indexed entries absent
// from the listing (removed by the host, or quota-evicted) are dropped.
// Entries present in both keep their in-session metadata and expiration —
// the backend listing carries neither — while size and modification time
// follow the listing.
func (idx *Index) Reconcile(ctx context.Context, backend store.Backend, partition store.Partition) error {
	listed, err := backend.List(ctx, partition)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", partition, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	part := idx.entries[partition]
	next := make(map[string]Entry, len(listed))
	var total int64

	for _, info := range listed {
		entry := Entry{
			Partition:    partition,
			Path:         info.Name,
			Size:         info.Size,
			LastModified: info.ModTime,
		}
		if prev, ok := part[info.Name]; ok {
			entry.ExpiresAt = prev.ExpiresAt
			entry.LastAccess = prev.LastAccess
			entry.Metadata = prev.Metadata
		}
		next[info.Name] = entry
		total += info.Size
	}

	idx.entries[partition] = next
	idx.bytes[partition] = total
	return nil
}

// ReconcileAll reconciles every partition.
func (idx *Index) ReconcileAll(ctx context.Context, backend store.Backend) error {
	for _, p := range store.Partitions() {
		if err := idx.Reconcile(ctx, backend, p); err != nil {
			return err
		}
	}
	return nil
}
