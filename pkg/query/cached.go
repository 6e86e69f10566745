package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/datastash/datastash/internal/logger"
	"github.com/datastash/datastash/pkg/cache"
)

// Source tells a caller where a query result came from. The UI maps it to
// its status indicator.
type Source string

const (
	// SourceFresh marks a result produced by the engine on this call.
	SourceFresh Source = "fresh"

	// SourceCache marks a result served from the cache partition.
	SourceCache Source = "cached"
)

// CachedResult pairs a result with its provenance.
type CachedResult struct {
	*Result
	Source Source `json:"source"`
}

// CachedExecutor is a read-through caching wrapper around an Executor:
// results are keyed by query fingerprint in the cache partition and reused
// until they expire or are invalidated.
type CachedExecutor struct {
	executor Executor
	cache    *cache.Controller
	ttl      time.Duration
}

// NewCachedExecutor wraps an executor with fingerprint-keyed caching.
// ttl bounds cached results; zero defers to the cache controller default.
func NewCachedExecutor(executor Executor, controller *cache.Controller, ttl time.Duration) *CachedExecutor {
	return &CachedExecutor{
		executor: executor,
		cache:    controller,
		ttl:      ttl,
	}
}

// Execute serves the query from cache when possible, otherwise runs it
// through the engine and stores the encoded result.
//
// A corrupt cached payload is treated as a miss, not a failure: the entry
// is invalidated and the query re-executed.
func (e *CachedExecutor) Execute(ctx context.Context, sql string) (*CachedResult, error) {
	key := Fingerprint(sql)

	payload, err := e.cache.Get(ctx, key, cache.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("query cache get: %w", err)
	}
	if payload != nil {
		var result Result
		if err := json.Unmarshal(payload, &result); err == nil {
			return &CachedResult{Result: &result, Source: SourceCache}, nil
		}
		logger.Warn("dropping undecodable cached query result", "fingerprint", key)
		if _, err := e.cache.Invalidate(ctx, key, cache.GetOptions{}); err != nil {
			return nil, fmt.Errorf("drop corrupt cache entry: %w", err)
		}
	}

	result, err := e.executor.Execute(ctx, sql)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode query result: %w", err)
	}

	err = e.cache.Put(ctx, key, encoded, cache.PutOptions{
		TTL: e.ttl,
		Metadata: map[string]string{
			"sql":      Normalize(sql),
			"rowCount": fmt.Sprintf("%d", result.RowCount),
		},
	})
	if err != nil {
		// The result is good even if persisting it is not; log and serve.
		logger.Warn("failed to cache query result", "fingerprint", key, "error", err)
	}

	return &CachedResult{Result: result, Source: SourceFresh}, nil
}

// InvalidateQuery drops the cached result for a SQL text, if any.
func (e *CachedExecutor) InvalidateQuery(ctx context.Context, sql string) (bool, error) {
	return e.cache.Invalidate(ctx, Fingerprint(sql), cache.GetOptions{})
}
