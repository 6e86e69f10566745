package syncer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/datastash/datastash/internal/logger"
	"github.com/datastash/datastash/pkg/cache"
	"github.com/datastash/datastash/pkg/metrics"
	"github.com/datastash/datastash/pkg/origin"
)

var (
	// ErrQueueFull is returned when the pending queue is at capacity.
	// Enqueue never blocks.
	ErrQueueFull = errors.New("sync queue is full")

	// ErrNotStarted is returned for operations that need the runner.
	ErrNotStarted = errors.New("sync coordinator not started")
)

// Config holds coordinator construction parameters.
type Config struct {
	// Cache is the controller tasks operate on. Required.
	Cache *cache.Controller

	// Origin supplies datasets for refresh and revalidation. Optional;
	// without it refresh-dataset tasks fail and revalidation only sweeps
	// expired entries.
	Origin origin.Origin

	// Journal persists pending tasks across restarts. Optional.
	Journal *Journal

	// Metrics receives instrumentation. Optional; nil records nothing.
	Metrics *metrics.SyncMetrics

	// QueueSize bounds the pending queue. Default: 256.
	QueueSize int

	// CompletedLogSize bounds the terminal-task log. Default: 128.
	CompletedLogSize int

	// Clock overrides the time source (for tests). Defaults to time.Now.
	Clock func() time.Time
}

// Coordinator owns the task queue and its single background runner.
//
// Enqueue is non-blocking; the runner processes tasks strictly in creation
// order and isolates per-task failures. Connectivity transitions from
// offline to online enqueue a revalidate-cache task automatically.
type Coordinator struct {
	cache   *cache.Controller
	origin  origin.Origin
	journal *Journal
	metrics *metrics.SyncMetrics

	queueSize int
	logSize   int
	now       func() time.Time

	mu      sync.Mutex
	queue   []*Task
	running *Task
	log     []*Task
	nextID  uint64
	online  bool

	notify    chan struct{}
	stopCh    chan struct{}
	stoppedCh chan struct{}
	started   bool
}

// New creates a coordinator. Call Start to launch the runner.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Cache == nil {
		return nil, errors.New("cache controller is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.CompletedLogSize <= 0 {
		cfg.CompletedLogSize = 128
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	c := &Coordinator{
		cache:     cfg.Cache,
		origin:    cfg.Origin,
		journal:   cfg.Journal,
		metrics:   cfg.Metrics,
		queueSize: cfg.QueueSize,
		logSize:   cfg.CompletedLogSize,
		now:       cfg.Clock,
		nextID:    1,
		online:    true,
		notify:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	if cfg.Journal != nil {
		if err := c.recoverJournal(); err != nil {
			return nil, fmt.Errorf("recover task journal: %w", err)
		}
	}

	return c, nil
}

// recoverJournal re-enqueues pending tasks persisted by a previous session.
func (c *Coordinator) recoverJournal() error {
	pending, err := c.journal.Pending()
	if err != nil {
		return err
	}
	for i := range pending {
		task := pending[i]
		task.Status = StatusPending
		c.queue = append(c.queue, &task)
		if task.ID >= c.nextID {
			c.nextID = task.ID + 1
		}
	}
	if len(pending) > 0 {
		logger.Info("recovered pending sync tasks from journal", "count", len(pending))
	}
	return nil
}

// Start launches the background runner. Idempotent.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return
	}
	c.started = true
	go c.run()

	if len(c.queue) > 0 {
		c.wake()
	}
}

// Stop shuts the runner down, waiting for a task in flight to finish.
// There is no mid-task cancellation.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.mu.Unlock()

	close(c.stopCh)
	<-c.stoppedCh
}

// Enqueue appends a task of the given kind. Non-blocking; returns
// ErrQueueFull at capacity. dataset is only meaningful for
// refresh-dataset tasks.
func (c *Coordinator) Enqueue(kind Kind, dataset string) (Task, error) {
	c.mu.Lock()

	if len(c.queue) >= c.queueSize {
		c.mu.Unlock()
		return Task{}, ErrQueueFull
	}

	task := &Task{
		ID:        c.nextID,
		Kind:      kind,
		Dataset:   dataset,
		Status:    StatusPending,
		CreatedAt: c.now(),
	}
	c.nextID++
	c.queue = append(c.queue, task)
	depth := len(c.queue)
	snapshot := *task
	c.mu.Unlock()

	if c.journal != nil {
		if err := c.journal.Append(snapshot); err != nil {
			// The task still runs this session; it just won't survive a
			// restart.
			logger.Warn("failed to journal sync task", "id", snapshot.ID, "error", err)
		}
	}

	c.metrics.SetQueueDepth(depth)
	c.wake()
	return snapshot, nil
}

// SyncNow enqueues a revalidate-cache task on demand.
func (c *Coordinator) SyncNow() (Task, error) {
	return c.Enqueue(KindRevalidateCache, "")
}

// SetOnline records connectivity. The offline→online transition enqueues a
// revalidate-cache task; every other transition only updates state.
func (c *Coordinator) SetOnline(online bool) {
	c.mu.Lock()
	wasOnline := c.online
	c.online = online
	c.mu.Unlock()

	if online && !wasOnline {
		logger.Info("connectivity restored, scheduling cache revalidation")
		if _, err := c.Enqueue(KindRevalidateCache, ""); err != nil {
			logger.Warn("failed to enqueue revalidation", "error", err)
		}
	}
}

// Online reports the recorded connectivity state.
func (c *Coordinator) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// ClearCompleted drops terminal tasks from the log, returning how many
// were removed. Pending and running tasks are untouched.
func (c *Coordinator) ClearCompleted() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := len(c.log)
	c.log = nil
	return removed
}

// Status returns task counts by state.
func (c *Coordinator) Status() Counts {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := Counts{Pending: len(c.queue)}
	if c.running != nil {
		counts.Running = 1
	}
	for _, task := range c.log {
		switch task.Status {
		case StatusCompleted:
			counts.Completed++
		case StatusFailed:
			counts.Failed++
		}
	}
	return counts
}

// Tasks returns a snapshot of all retained tasks: the terminal log in
// completion order, then the running task, then the pending queue.
func (c *Coordinator) Tasks() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Task, 0, len(c.log)+1+len(c.queue))
	for _, task := range c.log {
		out = append(out, *task)
	}
	if c.running != nil {
		out = append(out, *c.running)
	}
	for _, task := range c.queue {
		out = append(out, *task)
	}
	return out
}

// wake nudges the runner without blocking.
func (c *Coordinator) wake() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}
