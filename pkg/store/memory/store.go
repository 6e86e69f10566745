// Package memory provides an in-memory storage backend.
// It is the capability test double for unit tests: the probe result is
// injectable, so the capability-absent path can be exercised without a
// broken filesystem.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/datastash/datastash/pkg/store"
)

type entry struct {
	payload []byte
	modTime time.Time
}

// Store is an in-memory implementation of store.Backend.
type Store struct {
	mu          sync.RWMutex
	partitions  map[store.Partition]map[string]entry
	supported   bool
	initialized bool
	closed      bool

	// now is injectable for expiration tests.
	now func() time.Time
}

// New creates a supported in-memory backend.
func New() *Store {
	return &Store{
		partitions: make(map[store.Partition]map[string]entry),
		supported:  true,
		now:        time.Now,
	}
}

// NewUnsupported creates a backend whose capability probe fails, for
// exercising the ErrUnsupported path.
func NewUnsupported() *Store {
	s := New()
	s.supported = false
	return s
}

// SetClock overrides the time source used for entry modification times.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Supported reports the injected capability probe result.
func (s *Store) Supported() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supported
}

// Initialize creates the three partitions. Idempotent.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return store.ErrClosed
	}
	if s.initialized {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.supported {
		return store.ErrUnsupported
	}

	for _, p := range store.Partitions() {
		if s.partitions[p] == nil {
			s.partitions[p] = make(map[string]entry)
		}
	}

	s.initialized = true
	return nil
}

func (s *Store) checkReady() error {
	if s.closed {
		return store.ErrClosed
	}
	if !s.initialized {
		return store.ErrNotInitialized
	}
	return nil
}

// Write stores a copy of the payload.
func (s *Store) Write(ctx context.Context, partition store.Partition, path string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady(); err != nil {
		return err
	}
	if err := store.ValidatePath(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := make([]byte, len(payload))
	copy(buf, payload)
	s.partitions[partition][path] = entry{payload: buf, modTime: s.now()}
	return nil
}

// Read returns a copy of the stored payload.
func (s *Store) Read(ctx context.Context, partition store.Partition, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}

	e, ok := s.partitions[partition][path]
	if !ok {
		return nil, store.ErrNotFound
	}

	buf := make([]byte, len(e.payload))
	copy(buf, e.payload)
	return buf, nil
}

// Exists reports whether the entry is present.
func (s *Store) Exists(ctx context.Context, partition store.Partition, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return false, err
	}
	if err := store.ValidatePath(path); err != nil {
		return false, err
	}

	_, ok := s.partitions[partition][path]
	return ok, nil
}

// Remove deletes the entry, reporting whether it was present.
func (s *Store) Remove(ctx context.Context, partition store.Partition, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady(); err != nil {
		return false, err
	}
	if err := store.ValidatePath(path); err != nil {
		return false, err
	}

	if _, ok := s.partitions[partition][path]; !ok {
		return false, nil
	}
	delete(s.partitions[partition], path)
	return true, nil
}

// List enumerates the partition's entries sorted by name.
func (s *Store) List(ctx context.Context, partition store.Partition) ([]store.EntryInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return nil, err
	}

	part := s.partitions[partition]
	entries := make([]store.EntryInfo, 0, len(part))
	for name, e := range part {
		entries = append(entries, store.EntryInfo{
			Name:    name,
			Size:    int64(len(e.payload)),
			ModTime: e.modTime,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Close marks the backend as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Ensure Store implements store.Backend.
var _ store.Backend = (*Store)(nil)
