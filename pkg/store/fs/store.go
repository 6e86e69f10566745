// Package fs provides a filesystem-backed storage backend.
// Entries are stored as files under a partition directory inside a private
// root; writes go through a temp file and an atomic rename.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/datastash/datastash/pkg/store"
)

// tmpSuffix marks in-flight writes. Entries with this suffix are invisible
// to Read/List and swept on Initialize.
const tmpSuffix = ".tmp"

// Store is a filesystem-backed implementation of store.Backend.
type Store struct {
	mu          sync.RWMutex
	root        string
	dirMode     os.FileMode
	fileMode    os.FileMode
	initialized bool
	closed      bool
}

// Config holds configuration for the filesystem backend.
type Config struct {
	// Root is the private directory holding the three partitions.
	Root string

	// DirMode is the permission mode for created directories.
	// Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0644
	FileMode os.FileMode
}

// DefaultConfig returns the default configuration for a root path.
func DefaultConfig(root string) Config {
	return Config{
		Root:     root,
		DirMode:  0755,
		FileMode: 0644,
	}
}

// New creates a filesystem backend. The root is probed and the partitions
// created by Initialize, not here.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("root path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	return &Store{
		root:     cfg.Root,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}, nil
}

// NewWithRoot creates a filesystem backend with default configuration.
func NewWithRoot(root string) (*Store, error) {
	return New(DefaultConfig(root))
}

// Supported probes whether the root is usable: the directory can be created
// and a file written inside it. The probe file is removed afterwards.
func (s *Store) Supported() bool {
	if err := os.MkdirAll(s.root, s.dirMode); err != nil {
		return false
	}

	probe := filepath.Join(s.root, ".probe"+tmpSuffix)
	if err := os.WriteFile(probe, nil, s.fileMode); err != nil {
		return false
	}
	os.Remove(probe)
	return true
}

// Initialize acquires the root and ensures the three partitions exist.
// Idempotent: once initialized, subsequent calls are no-ops. Leftover temp
// files from interrupted writes are swept here.
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

	if !s.Supported() {
		return store.ErrUnsupported
	}

	for _, p := range store.Partitions() {
		dir := filepath.Join(s.root, p.String())
		if err := os.MkdirAll(dir, s.dirMode); err != nil {
			return fmt.Errorf("create partition %s: %w", p, err)
		}
		s.sweepTempFiles(dir)
	}

	s.initialized = true
	return nil
}

// sweepTempFiles removes temp files left behind by interrupted writes.
func (s *Store) sweepTempFiles(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), tmpSuffix) {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

// entryPath returns the filesystem path for an entry.
func (s *Store) entryPath(partition store.Partition, path string) string {
	return filepath.Join(s.root, partition.String(), filepath.FromSlash(path))
}

// checkReady verifies the backend is initialized and open.
// Callers must hold at least a read lock.
func (s *Store) checkReady() error {
	if s.closed {
		return store.ErrClosed
	}
	if !s.initialized {
		return store.ErrNotInitialized
	}
	return nil
}

// Write persists the payload atomically: the bytes land in a temp file that
// is renamed over the target, so a concurrent reader never observes a
// partial entry.
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

	target := s.entryPath(partition, path)
	if err := os.MkdirAll(filepath.Dir(target), s.dirMode); err != nil {
		return fmt.Errorf("create entry directory: %w", err)
	}

	tmp := target + tmpSuffix
	if err := os.WriteFile(tmp, payload, s.fileMode); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit entry: %w", err)
	}

	return nil
}

// Read returns the full payload of an entry.
func (s *Store) Read(ctx context.Context, partition store.Partition, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if err := store.ValidatePath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.entryPath(partition, path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return data, nil
}

// Exists reports whether an entry is present. Absence is not an error.
func (s *Store) Exists(ctx context.Context, partition store.Partition, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return false, err
	}
	if err := store.ValidatePath(path); err != nil {
		return false, err
	}

	info, err := os.Stat(s.entryPath(partition, path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat entry: %w", err)
	}
	return !info.IsDir(), nil
}

// Remove deletes an entry. Removing an absent entry returns false, nil.
func (s *Store) Remove(ctx context.Context, partition store.Partition, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkReady(); err != nil {
		return false, err
	}
	if err := store.ValidatePath(path); err != nil {
		return false, err
	}

	err := os.Remove(s.entryPath(partition, path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("remove entry: %w", err)
	}
	return true, nil
}

// List enumerates the file-kind entries at the top level of a partition.
// Nested directories and temp files are skipped. A missing partition
// directory yields an empty slice.
func (s *Store) List(ctx context.Context, partition store.Partition) ([]store.EntryInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, partition.String())
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []store.EntryInfo{}, nil
		}
		return nil, fmt.Errorf("list partition %s: %w", partition, err)
	}

	entries := make([]store.EntryInfo, 0, len(dirEntries))
	for _, e := range dirEntries {
		if e.IsDir() || strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if os.IsNotExist(err) {
				// Deleted between ReadDir and Info.
				continue
			}
			return nil, fmt.Errorf("stat entry %s: %w", e.Name(), err)
		}
		entries = append(entries, store.EntryInfo{
			Name:    e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
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

// Root returns the backend's root directory (for testing).
func (s *Store) Root() string {
	return s.root
}

// Ensure Store implements store.Backend.
var _ store.Backend = (*Store)(nil)
