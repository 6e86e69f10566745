package syncer

import (
	"context"
	"fmt"

	"github.com/datastash/datastash/internal/logger"
	"github.com/datastash/datastash/pkg/cache"
	"github.com/datastash/datastash/pkg/store"
)

// run is the single task runner. It drains the queue strictly in order,
// one task at a time, and isolates failures: a failed task is logged as
// failed and the runner moves on.
func (c *Coordinator) run() {
	defer close(c.stoppedCh)

	for {
		task := c.dequeue()
		if task == nil {
			select {
			case <-c.notify:
				continue
			case <-c.stopCh:
				return
			}
		}

		c.execute(task)

		select {
		case <-c.stopCh:
			return
		default:
		}
	}
}

// dequeue pops the head of the queue and marks it running.
func (c *Coordinator) dequeue() *Task {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return nil
	}
	task := c.queue[0]
	c.queue = c.queue[1:]
	task.Status = StatusRunning
	task.StartedAt = c.now()
	c.running = task
	return task
}

// execute runs one task to its terminal state. Task execution is not
// bound to a caller context: there is no mid-task cancellation, and Stop
// waits for the task in flight.
func (c *Coordinator) execute(task *Task) {
	ctx := context.Background()

	err := c.perform(ctx, task)

	c.mu.Lock()
	task.FinishedAt = c.now()
	if err != nil {
		task.Status = StatusFailed
		task.Error = err.Error()
	} else {
		task.Status = StatusCompleted
	}
	c.running = nil
	c.log = append(c.log, task)
	if len(c.log) > c.logSize {
		c.log = c.log[len(c.log)-c.logSize:]
	}
	depth := len(c.queue)
	c.mu.Unlock()

	if err != nil {
		logger.Warn("sync task failed", "id", task.ID, "kind", task.Kind, "error", err)
	} else {
		logger.Debug("sync task completed", "id", task.ID, "kind", task.Kind)
	}

	if c.journal != nil {
		if jerr := c.journal.Remove(task.ID); jerr != nil {
			logger.Warn("failed to remove journaled task", "id", task.ID, "error", jerr)
		}
	}

	outcome := string(task.Status)
	c.metrics.ObserveTask(string(task.Kind), outcome, task.FinishedAt.Sub(task.StartedAt))
	c.metrics.SetQueueDepth(depth)
}

// perform dispatches one task by kind.
func (c *Coordinator) perform(ctx context.Context, task *Task) error {
	switch task.Kind {
	case KindRefreshDataset:
		return c.refreshDataset(ctx, task.Dataset)
	case KindRevalidateCache:
		return c.revalidateCache(ctx)
	case KindEvictExpired:
		_, err := c.cache.ClearExpired(ctx)
		return err
	default:
		return fmt.Errorf("unknown task kind: %q", task.Kind)
	}
}

// refreshDataset downloads one dataset from the origin into the datasets
// partition, recording the origin's version tag as entry metadata.
func (c *Coordinator) refreshDataset(ctx context.Context, name string) error {
	if c.origin == nil {
		return fmt.Errorf("refresh %s: no origin configured", name)
	}
	if name == "" {
		return fmt.Errorf("refresh: dataset name is empty")
	}

	payload, info, err := c.origin.Fetch(ctx, name)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, err)
	}

	err = c.cache.Put(ctx, name, payload, cache.PutOptions{
		Partition: store.PartitionDatasets,
		Metadata: map[string]string{
			"etag":               info.ETag,
			"originLastModified": info.LastModified.UTC().Format("2006-01-02T15:04:05Z07:00"),
		},
	})
	if err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}

	logger.Info("refreshed dataset", "name", name, "size", info.Size)
	return nil
}

// revalidateCache sweeps expired entries, then compares indexed datasets
// against origin metadata and enqueues refreshes for the stale ones.
func (c *Coordinator) revalidateCache(ctx context.Context) error {
	removed, err := c.cache.ClearExpired(ctx)
	if err != nil {
		return fmt.Errorf("clear expired: %w", err)
	}
	if removed > 0 {
		logger.Debug("revalidation swept expired entries", "count", removed)
	}

	if c.origin == nil {
		return nil
	}

	available, err := c.origin.List(ctx)
	if err != nil {
		return fmt.Errorf("list origin datasets: %w", err)
	}

	idx := c.cache.Index()
	for _, remote := range available {
		local, ok := idx.Get(store.PartitionDatasets, remote.Name)
		if ok && !c.datasetStale(local.Metadata, remote.ETag) {
			continue
		}

		if _, err := c.Enqueue(KindRefreshDataset, remote.Name); err != nil {
			return fmt.Errorf("enqueue refresh of %s: %w", remote.Name, err)
		}
	}
	return nil
}

// datasetStale compares a local entry's recorded origin tag with the
// current one. Entries without a recorded tag count as stale.
func (c *Coordinator) datasetStale(metadata map[string]string, remoteETag string) bool {
	if remoteETag == "" {
		return false
	}
	return metadata["etag"] != remoteETag
}
