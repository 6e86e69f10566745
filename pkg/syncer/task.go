// Package syncer implements the background sync coordinator.
//
// The coordinator reconciles cache state with the outside world: it queues
// reconciliation tasks (dataset refresh, cache revalidation, expiration
// sweeps), runs them one at a time in strict creation order, and reacts to
// connectivity transitions. A failed task is recorded and skipped past;
// nothing retries implicitly.
package syncer

import "time"

// Kind identifies what a task reconciles.
type Kind string

const (
	// KindRefreshDataset re-downloads one dataset from the origin.
	KindRefreshDataset Kind = "refresh-dataset"

	// KindRevalidateCache sweeps expired entries and compares datasets
	// against origin freshness metadata.
	KindRevalidateCache Kind = "revalidate-cache"

	// KindEvictExpired runs the TTL expiration sweep only.
	KindEvictExpired Kind = "evict-expired"
)

// Status is a task's lifecycle state. Transitions run strictly
// pending → running → completed | failed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one queued reconciliation unit.
type Task struct {
	// ID orders tasks; assigned at enqueue time, strictly increasing.
	ID uint64 `json:"id"`

	// Kind selects the work.
	Kind Kind `json:"kind"`

	// Dataset names the target for refresh-dataset tasks; empty otherwise.
	Dataset string `json:"dataset,omitempty"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Error holds the failure message for failed tasks.
	Error string `json:"error,omitempty"`

	CreatedAt  time.Time `json:"createdAt"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// Counts aggregates tasks by state for the observability surface.
type Counts struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
