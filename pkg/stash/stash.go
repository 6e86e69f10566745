// Package stash assembles the storage backend, metadata index, cache
// controller and sync coordinator into one handle with a shared
// lifecycle.
package stash

import (
	"context"
	"fmt"
	"time"

	"github.com/datastash/datastash/internal/logger"
	"github.com/datastash/datastash/pkg/cache"
	"github.com/datastash/datastash/pkg/config"
	"github.com/datastash/datastash/pkg/index"
	"github.com/datastash/datastash/pkg/metrics"
	"github.com/datastash/datastash/pkg/origin"
	s3origin "github.com/datastash/datastash/pkg/origin/s3"
	"github.com/datastash/datastash/pkg/query"
	"github.com/datastash/datastash/pkg/store"
	"github.com/datastash/datastash/pkg/store/fs"
	"github.com/datastash/datastash/pkg/syncer"
)

// Stash is the assembled storage subsystem. All components share its
// lifecycle: Open initializes them together, Close tears them down in
// reverse order.
type Stash struct {
	backend store.Backend
	idx     *index.Index
	cache   *cache.Controller
	syncer  *syncer.Coordinator
	journal *syncer.Journal
	origin  origin.Origin
}

// Options controls Open. Zero-value fields fall back to sensible
// defaults; Backend and Origin allow tests to inject fakes.
type Options struct {
	// Backend overrides the filesystem backend built from the config.
	Backend store.Backend

	// Origin overrides the S3 origin built from the config.
	Origin origin.Origin

	// Clock overrides the time source for cache and syncer.
	Clock func() time.Time
}

// Open builds and initializes the full subsystem from configuration.
//
// The backend must report itself supported; an unsupported environment
// is a fatal construction error, not a degraded mode. The index is
// rebuilt from the backend contents on every open.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Stash, error) {
	backend := opts.Backend
	if backend == nil {
		b, err := fs.NewWithRoot(cfg.Storage.Root)
		if err != nil {
			return nil, fmt.Errorf("create storage backend: %w", err)
		}
		backend = b
	}

	if !backend.Supported() {
		return nil, fmt.Errorf("storage backend: %w", store.ErrUnsupported)
	}
	if err := backend.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize storage backend: %w", err)
	}

	idx := index.New()
	if err := idx.ReconcileAll(ctx, backend); err != nil {
		backend.Close()
		return nil, fmt.Errorf("rebuild metadata index: %w", err)
	}

	var cacheMetrics *metrics.CacheMetrics
	var syncMetrics *metrics.SyncMetrics
	if metrics.IsEnabled() {
		cacheMetrics = metrics.NewCacheMetrics()
		syncMetrics = metrics.NewSyncMetrics()
	}

	controller, err := cache.New(cache.Config{
		Backend:         backend,
		Index:           idx,
		Metrics:         cacheMetrics,
		CacheQuotaBytes: cfg.Storage.CacheQuota.Int64(),
		DefaultTTL:      cfg.Storage.DefaultTTL,
		Clock:           opts.Clock,
	})
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("create cache controller: %w", err)
	}

	src := opts.Origin
	if src == nil && cfg.Origin.Enabled {
		o, err := s3origin.NewFromConfig(ctx, cfg.Origin.S3)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("create dataset origin: %w", err)
		}
		src = o
	}

	var journal *syncer.Journal
	if cfg.Sync.JournalDir != "" {
		j, err := syncer.OpenJournal(cfg.Sync.JournalDir)
		if err != nil {
			backend.Close()
			return nil, fmt.Errorf("open task journal: %w", err)
		}
		journal = j
	}

	coordinator, err := syncer.New(syncer.Config{
		Cache:            controller,
		Origin:           src,
		Journal:          journal,
		Metrics:          syncMetrics,
		QueueSize:        cfg.Sync.QueueSize,
		CompletedLogSize: cfg.Sync.CompletedLogSize,
		Clock:            opts.Clock,
	})
	if err != nil {
		if journal != nil {
			journal.Close()
		}
		backend.Close()
		return nil, fmt.Errorf("create sync coordinator: %w", err)
	}
	coordinator.Start()

	logger.Info("stash opened",
		"root", cfg.Storage.Root,
		"indexedEntries", indexedEntries(idx),
		"originEnabled", src != nil)

	return &Stash{
		backend: backend,
		idx:     idx,
		cache:   controller,
		syncer:  coordinator,
		journal: journal,
		origin:  src,
	}, nil
}

func indexedEntries(idx *index.Index) int {
	total := 0
	for _, p := range store.Partitions() {
		total += idx.Stats(p).Entries
	}
	return total
}

// Cache returns the cache controller.
func (s *Stash) Cache() *cache.Controller {
	return s.cache
}

// Index returns the in-memory metadata index.
func (s *Stash) Index() *index.Index {
	return s.idx
}

// Backend returns the storage backend.
func (s *Stash) Backend() store.Backend {
	return s.backend
}

// Syncer returns the sync coordinator.
func (s *Stash) Syncer() *syncer.Coordinator {
	return s.syncer
}

// Origin returns the dataset origin, or nil when sync is local-only.
func (s *Stash) Origin() origin.Origin {
	return s.origin
}

// NewQueryExecutor wraps an execution engine with result caching backed
// by this stash.
func (s *Stash) NewQueryExecutor(engine query.Executor, ttl time.Duration) *query.CachedExecutor {
	return query.NewCachedExecutor(engine, s.cache, ttl)
}

// Close stops the coordinator, closes the journal and releases the
// backend. Safe to call once; components are shut down in reverse
// dependency order.
func (s *Stash) Close() error {
	s.syncer.Stop()

	var firstErr error
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			firstErr = fmt.Errorf("close task journal: %w", err)
		}
	}
	if err := s.backend.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close storage backend: %w", err)
	}
	return firstErr
}
