package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/datastash/datastash/internal/logger"
	"github.com/datastash/datastash/pkg/metrics"
	"github.com/datastash/datastash/pkg/stash"
)

// NewRouter builds the control API router.
//
// Routes:
//   - GET  /healthz - liveness probe
//   - GET  /metrics - Prometheus metrics (when enabled)
//   - GET  /api/v1/stats - storage and cache statistics
//   - GET  /api/v1/sync/status - connectivity and task queue state
//   - POST /api/v1/sync/now - enqueue a cache revalidation
//   - POST /api/v1/sync/online - set connectivity state
//   - DELETE /api/v1/sync/tasks/completed - drop terminal task history
//   - POST /api/v1/datasets/refresh - enqueue a dataset refresh
//   - POST /api/v1/cache/clear-expired - remove expired entries
//   - POST /api/v1/cache/clear - empty the cache partition
//   - POST /api/v1/storage/clear - empty partitions (requires confirm)
func NewRouter(s *stash.Stash) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	h := &handlers{stash: s}

	r.Get("/healthz", h.Health)
	if metrics.IsEnabled() {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", h.Stats)

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", h.SyncStatus)
			r.Post("/now", h.SyncNow)
			r.Post("/online", h.SetOnline)
			r.Delete("/tasks/completed", h.ClearCompleted)
		})

		r.Post("/datasets/refresh", h.RefreshDataset)

		r.Route("/cache", func(r chi.Router) {
			r.Post("/clear-expired", h.ClearExpired)
			r.Post("/clear", h.ClearCache)
		})

		r.Post("/storage/clear", h.ClearStorage)
	})

	return r
}

// requestLogger logs requests through the internal logger. Probe and
// metrics endpoints log at DEBUG to reduce noise.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logFn := logger.Info
		if strings.HasPrefix(r.URL.Path, "/healthz") || strings.HasPrefix(r.URL.Path, "/metrics") {
			logFn = logger.Debug
		}
		logFn("API request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
