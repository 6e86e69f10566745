package index

import (
	"context"
	"testing"
	"time"

	"github.com/datastash/datastash/pkg/store"
	"github.com/datastash/datastash/pkg/store/memory"
)

func TestPutGetDelete(t *testing.T) {
	idx := New()

	entry := Entry{
		Partition:    store.PartitionCache,
		Path:         "q1",
		Size:         42,
		LastModified: time.Now(),
		Metadata:     map[string]string{"source": "editor"},
	}
	idx.Put(entry)

	got, ok := idx.Get(store.PartitionCache, "q1")
	if !ok {
		t.Fatal("Get missed a just-put entry")
	}
	if got.Size != 42 || got.Metadata["source"] != "editor" {
		t.Errorf("Get returned %+v", got)
	}

	// Lookups are scoped by partition.
	if _, ok := idx.Get(store.PartitionDatasets, "q1"); ok {
		t.Error("entry visible in wrong partition")
	}

	if !idx.Delete(store.PartitionCache, "q1") {
		t.Error("Delete returned false for present entry")
	}
	if idx.Delete(store.PartitionCache, "q1") {
		t.Error("Delete returned true for absent entry")
	}
	if _, ok := idx.Get(store.PartitionCache, "q1"); ok {
		t.Error("entry visible after Delete")
	}
}

func TestSizeAccounting(t *testing.T) {
	idx := New()

	idx.Put(Entry{Partition: store.PartitionCache, Path: "a", Size: 10})
	idx.Put(Entry{Partition: store.PartitionCache, Path: "b", Size: 20})
	idx.Put(Entry{Partition: store.PartitionDatasets, Path: "d", Size: 100})

	if s := idx.Stats(store.PartitionCache); s.Entries != 2 || s.TotalBytes != 30 {
		t.Errorf("cache stats = %+v, want 2 entries / 30 bytes", s)
	}
	if got := idx.TotalBytes(); got != 130 {
		t.Errorf("TotalBytes = %d, want 130", got)
	}

	// Overwrite replaces, not accumulates.
	idx.Put(Entry{Partition: store.PartitionCache, Path: "a", Size: 5})
	if s := idx.Stats(store.PartitionCache); s.Entries != 2 || s.TotalBytes != 25 {
		t.Errorf("cache stats after overwrite = %+v, want 2 entries / 25 bytes", s)
	}

	idx.Delete(store.PartitionCache, "b")
	if s := idx.Stats(store.PartitionCache); s.TotalBytes != 5 {
		t.Errorf("cache bytes after delete = %d, want 5", s.TotalBytes)
	}

	idx.ClearPartition(store.PartitionCache)
	if s := idx.Stats(store.PartitionCache); s.Entries != 0 || s.TotalBytes != 0 {
		t.Errorf("cache stats after clear = %+v, want zeroes", s)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		entry Entry
		want  bool
	}{
		{"no ttl never expires", Entry{}, false},
		{"future deadline", Entry{ExpiresAt: now.Add(time.Hour)}, false},
		{"past deadline", Entry{ExpiresAt: now.Add(-time.Second)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.Expired(now); got != tt.want {
				t.Errorf("Expired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTouch(t *testing.T) {
	idx := New()
	idx.Put(Entry{Partition: store.PartitionCache, Path: "a", Size: 1})

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	idx.Touch(store.PartitionCache, "a", at)

	got, _ := idx.Get(store.PartitionCache, "a")
	if !got.LastAccess.Equal(at) {
		t.Errorf("LastAccess = %v, want %v", got.LastAccess, at)
	}

	// Touching an unindexed key must not create it.
	idx.Touch(store.PartitionCache, "ghost", at)
	if _, ok := idx.Get(store.PartitionCache, "ghost"); ok {
		t.Error("Touch created an entry")
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	if err := backend.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	// Artifacts "from a previous session": on the backend, not in the index.
	if err := backend.Write(ctx, store.PartitionDatasets, "old.bin", []byte("abcd")); err != nil {
		t.Fatal(err)
	}

	idx := New()

	// In-session entry with metadata that the listing cannot carry.
	deadline := time.Now().Add(time.Hour)
	if err := backend.Write(ctx, store.PartitionDatasets, "fresh.bin", []byte("xy")); err != nil {
		t.Fatal(err)
	}
	idx.Put(Entry{
		Partition: store.PartitionDatasets,
		Path:      "fresh.bin",
		Size:      2,
		ExpiresAt: deadline,
		Metadata:  map[string]string{"etag": "v1"},
	})

	// Stale index entry whose file is gone (host quota eviction).
	idx.Put(Entry{Partition: store.PartitionDatasets, Path: "gone.bin", Size: 9})

	if err := idx.Reconcile(ctx, backend, store.PartitionDatasets); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if _, ok := idx.Get(store.PartitionDatasets, "gone.bin"); ok {
		t.Error("stale entry survived reconciliation")
	}

	old, ok := idx.Get(store.PartitionDatasets, "old.bin")
	if !ok {
		t.Fatal("previous-session artifact not picked up")
	}
	if old.Size != 4 {
		t.Errorf("reconciled size = %d, want 4", old.Size)
	}

	fresh, ok := idx.Get(store.PartitionDatasets, "fresh.bin")
	if !ok {
		t.Fatal("in-session entry dropped")
	}
	if !fresh.ExpiresAt.Equal(deadline) || fresh.Metadata["etag"] != "v1" {
		t.Errorf("in-session metadata lost: %+v", fresh)
	}

	if s := idx.Stats(store.PartitionDatasets); s.Entries != 2 || s.TotalBytes != 6 {
		t.Errorf("stats after reconcile = %+v, want 2 entries / 6 bytes", s)
	}
}
