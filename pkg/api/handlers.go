package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/datastash/datastash/internal/bytesize"
	"github.com/datastash/datastash/pkg/stash"
	"github.com/datastash/datastash/pkg/store"
	"github.com/datastash/datastash/pkg/syncer"
)

// handlers serves the control API against one stash instance.
type handlers struct {
	stash *stash.Stash
}

// PartitionStatsResponse is the per-partition slice of the stats view.
type PartitionStatsResponse struct {
	Entries        int    `json:"entries"`
	TotalBytes     int64  `json:"totalBytes"`
	TotalFormatted string `json:"totalFormatted"`
}

// StatsResponse is the body of GET /api/v1/stats. Derived on demand
// from the in-memory index.
type StatsResponse struct {
	TotalBytes     int64                             `json:"totalBytes"`
	TotalFormatted string                            `json:"totalFormatted"`
	Partitions     map[string]PartitionStatsResponse `json:"partitions"`
	CacheHits      int64                             `json:"cacheHits"`
	CacheMisses    int64                             `json:"cacheMisses"`
}

// Stats handles GET /api/v1/stats.
func (h *handlers) Stats(w http.ResponseWriter, r *http.Request) {
	s := h.stash.Cache().Stats()

	resp := StatsResponse{
		TotalBytes:     s.TotalBytes,
		TotalFormatted: bytesize.Format(uint64(s.TotalBytes)),
		Partitions:     make(map[string]PartitionStatsResponse, len(s.PerPartition)),
		CacheHits:      s.Hits,
		CacheMisses:    s.Misses,
	}
	for partition, stats := range s.PerPartition {
		resp.Partitions[partition.String()] = PartitionStatsResponse{
			Entries:        stats.Entries,
			TotalBytes:     stats.TotalBytes,
			TotalFormatted: bytesize.Format(uint64(stats.TotalBytes)),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SyncStatusResponse is the body of GET /api/v1/sync/status.
type SyncStatusResponse struct {
	Online    bool          `json:"online"`
	Pending   int           `json:"pending"`
	Running   int           `json:"running"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Tasks     []syncer.Task `json:"tasks"`
}

// SyncStatus handles GET /api/v1/sync/status.
func (h *handlers) SyncStatus(w http.ResponseWriter, r *http.Request) {
	coordinator := h.stash.Syncer()
	counts := coordinator.Status()

	writeJSON(w, http.StatusOK, SyncStatusResponse{
		Online:    coordinator.Online(),
		Pending:   counts.Pending,
		Running:   counts.Running,
		Completed: counts.Completed,
		Failed:    counts.Failed,
		Tasks:     coordinator.Tasks(),
	})
}

// SyncNow handles POST /api/v1/sync/now.
func (h *handlers) SyncNow(w http.ResponseWriter, r *http.Request) {
	task, err := h.stash.Syncer().SyncNow()
	if err != nil {
		if errors.Is(err, syncer.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "sync queue is full")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// SetOnlineRequest is the body of POST /api/v1/sync/online.
type SetOnlineRequest struct {
	Online bool `json:"online"`
}

// SetOnline handles POST /api/v1/sync/online. Switching from offline to
// online enqueues a cache revalidation automatically.
func (h *handlers) SetOnline(w http.ResponseWriter, r *http.Request) {
	var req SetOnlineRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	h.stash.Syncer().SetOnline(req.Online)
	writeJSON(w, http.StatusOK, map[string]bool{"online": req.Online})
}

// ClearCompleted handles DELETE /api/v1/sync/tasks/completed.
func (h *handlers) ClearCompleted(w http.ResponseWriter, r *http.Request) {
	removed := h.stash.Syncer().ClearCompleted()
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// RefreshDatasetRequest is the body of POST /api/v1/datasets/refresh.
type RefreshDatasetRequest struct {
	Name string `json:"name"`
}

// RefreshDataset handles POST /api/v1/datasets/refresh.
func (h *handlers) RefreshDataset(w http.ResponseWriter, r *http.Request) {
	var req RefreshDatasetRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "dataset name is required")
		return
	}

	task, err := h.stash.Syncer().Enqueue(syncer.KindRefreshDataset, req.Name)
	if err != nil {
		if errors.Is(err, syncer.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "sync queue is full")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

// ClearExpired handles POST /api/v1/cache/clear-expired.
func (h *handlers) ClearExpired(w http.ResponseWriter, r *http.Request) {
	removed, err := h.stash.Cache().ClearExpired(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// ClearCache handles POST /api/v1/cache/clear. It empties the cache
// partition only; datasets and temporary files are untouched.
func (h *handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.stash.Cache().ClearAll(r.Context(), store.PartitionCache); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.stash.Cache().ResetCounters()
	writeJSON(w, http.StatusOK, map[string]string{"cleared": store.PartitionCache.String()})
}

// ClearStorageRequest is the body of POST /api/v1/storage/clear.
type ClearStorageRequest struct {
	Partition string `json:"partition"`
	Confirm   bool   `json:"confirm"`
}

// ClearStorage handles POST /api/v1/storage/clear. Destructive; the
// request must carry confirm=true.
func (h *handlers) ClearStorage(w http.ResponseWriter, r *http.Request) {
	var req ClearStorageRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !req.Confirm {
		writeError(w, http.StatusBadRequest, "confirm must be true to clear storage")
		return
	}

	partitions := store.Partitions()
	if req.Partition != "" {
		p, err := store.ParsePartition(req.Partition)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		partitions = []store.Partition{p}
	}

	cleared := make([]string, 0, len(partitions))
	for _, p := range partitions {
		if err := h.stash.Cache().ClearAll(r.Context(), p); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		cleared = append(cleared, p.String())
	}
	h.stash.Cache().ResetCounters()
	writeJSON(w, http.StatusOK, map[string][]string{"cleared": cleared})
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /healthz.
func (h *handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}
