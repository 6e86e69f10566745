package syncer

import (
	"testing"
	"time"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := OpenJournal(t.TempDir())
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_AppendPendingRemove(t *testing.T) {
	j := newTestJournal(t)

	created := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: 1, Kind: KindRevalidateCache, Status: StatusPending, CreatedAt: created},
		{ID: 2, Kind: KindRefreshDataset, Dataset: "sales.bin", Status: StatusPending, CreatedAt: created.Add(time.Second)},
		{ID: 3, Kind: KindEvictExpired, Status: StatusPending, CreatedAt: created.Add(2 * time.Second)},
	}
	for _, task := range tasks {
		if err := j.Append(task); err != nil {
			t.Fatalf("Append(%d) failed: %v", task.ID, err)
		}
	}

	pending, err := j.Pending()
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("Pending returned %d tasks, want 3", len(pending))
	}
	for i, task := range pending {
		if task.ID != uint64(i+1) {
			t.Errorf("pending[%d].ID = %d, want %d (creation order)", i, task.ID, i+1)
		}
	}
	if pending[1].Dataset != "sales.bin" {
		t.Errorf("dataset lost in round-trip: %+v", pending[1])
	}
	if !pending[0].CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", pending[0].CreatedAt, created)
	}

	if err := j.Remove(2); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	// Removing an absent record is fine.
	if err := j.Remove(99); err != nil {
		t.Fatalf("Remove of absent record errored: %v", err)
	}

	pending, err = j.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ID != 1 || pending[1].ID != 3 {
		t.Errorf("pending after remove = %+v", pending)
	}
}

func TestCoordinator_RecoversJournaledTasks(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenJournal(dir)
	if err != nil {
		t.Fatal(err)
	}
	for id := uint64(5); id <= 7; id++ {
		if err := j.Append(Task{ID: id, Kind: KindRevalidateCache, Status: StatusPending}); err != nil {
			t.Fatal(err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	// Next session: the coordinator picks the tasks back up.
	j, err = OpenJournal(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { j.Close() })

	c := newTestCoordinator(t, Config{Journal: j})

	if s := c.Status(); s.Pending != 3 {
		t.Fatalf("recovered %d pending tasks, want 3", s.Pending)
	}

	// New IDs continue after the recovered ones.
	task, err := c.SyncNow()
	if err != nil {
		t.Fatal(err)
	}
	if task.ID != 8 {
		t.Errorf("next task ID = %d, want 8", task.ID)
	}
}
