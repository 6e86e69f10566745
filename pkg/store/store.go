// Package store defines the storage backend contract for the partitioned
// artifact area.
//
// A backend owns a private, sandboxed file area split into three top-level
// partitions (datasets, cache, temporary), each with its own lifetime policy.
// Backends are thin byte-level adapters: they create partitions, read, write,
// delete and list entries, and nothing else. Expiration, eviction and retry
// policy live in the layers above.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Partition identifies one of the three top-level storage areas.
type Partition string

const (
	// PartitionDatasets holds downloaded dataset blobs. Never auto-evicted.
	PartitionDatasets Partition = "datasets"

	// PartitionCache holds cached query results, subject to TTL expiration
	// and LRU quota eviction.
	PartitionCache Partition = "cache"

	// PartitionTemporary holds scratch artifacts with no durability
	// expectations.
	PartitionTemporary Partition = "temporary"
)

// Partitions returns all partitions in a stable order.
func Partitions() []Partition {
	return []Partition{PartitionDatasets, PartitionCache, PartitionTemporary}
}

// ParsePartition converts a string into a Partition.
func ParsePartition(s string) (Partition, error) {
	switch Partition(strings.ToLower(strings.TrimSpace(s))) {
	case PartitionDatasets:
		return PartitionDatasets, nil
	case PartitionCache:
		return PartitionCache, nil
	case PartitionTemporary:
		return PartitionTemporary, nil
	default:
		return "", fmt.Errorf("unknown partition: %q", s)
	}
}

// String returns the partition name.
func (p Partition) String() string {
	return string(p)
}

// EntryInfo describes one file-kind entry in a partition listing.
type EntryInfo struct {
	// Name is the entry's path within its partition.
	Name string

	// Size is the byte length of the persisted payload.
	Size int64

	// ModTime is the entry's last modification time.
	ModTime time.Time
}

var (
	// ErrUnsupported is returned when the host environment does not expose
	// the storage capability the backend requires. Fatal for the whole
	// subsystem; surfaced once at initialization.
	ErrUnsupported = errors.New("storage capability not supported in this environment")

	// ErrNotInitialized is returned when an operation runs before a
	// successful Initialize. Initialization is explicit; there is no lazy
	// init on first use.
	ErrNotInitialized = errors.New("storage backend not initialized")

	// ErrNotFound is returned when a read targets an absent entry. Higher
	// layers map it to a miss, never to a hard failure.
	ErrNotFound = errors.New("entry not found")

	// ErrClosed is returned when operations are attempted on a closed
	// backend.
	ErrClosed = errors.New("storage backend is closed")

	// ErrInvalidPath is returned for empty keys and keys that escape the
	// partition (absolute paths, ".." traversal).
	ErrInvalidPath = errors.New("invalid entry path")
)

// Backend is the storage contract implemented by the filesystem store and
// the in-memory test double.
//
// Implementations must be safe for concurrent use. Write must be atomic
// with respect to readers: a concurrent Read never observes a partially
// written entry.
type Backend interface {
	// Supported reports whether the host environment exposes the
	// hierarchical storage capability this backend requires.
	Supported() bool

	// Initialize acquires the root storage handle and ensures the three
	// partitions exist. Idempotent; subsequent calls are no-ops. Fails with
	// ErrUnsupported when the capability is absent.
	Initialize(ctx context.Context) error

	// Write persists the full payload under (partition, path), creating the
	// partition directory if missing and replacing any previous entry.
	Write(ctx context.Context, partition Partition, path string, payload []byte) error

	// Read returns the persisted payload. Returns ErrNotFound when the
	// entry does not exist; any other failure propagates.
	Read(ctx context.Context, partition Partition, path string) ([]byte, error)

	// Exists reports whether the entry is present. Absence is not an error.
	Exists(ctx context.Context, partition Partition, path string) (bool, error)

	// Remove deletes the entry. Returns false with a nil error when the
	// entry was already absent, true on successful deletion.
	Remove(ctx context.Context, partition Partition, path string) (bool, error)

	// List enumerates the file-kind entries of a partition, skipping nested
	// directories. Returns an empty slice when the partition directory does
	// not exist.
	List(ctx context.Context, partition Partition) ([]EntryInfo, error)

	// Close releases the backend. Further operations fail with ErrClosed.
	Close() error
}

// ValidatePath rejects keys that are empty or escape their partition.
// Forward slashes are allowed; entries may live in sub-paths even though
// List only reports top-level files.
func ValidatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	if strings.HasPrefix(path, "/") {
		return ErrInvalidPath
	}
	for _, part := range strings.Split(path, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidPath
		}
	}
	return nil
}
