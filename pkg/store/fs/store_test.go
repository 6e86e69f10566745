package fs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/datastash/datastash/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewWithRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewWithRoot failed: %v", err)
	}

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitialize_CreatesPartitions(t *testing.T) {
	s := newTestStore(t)

	for _, p := range store.Partitions() {
		info, err := os.Stat(filepath.Join(s.Root(), p.String()))
		if err != nil {
			t.Fatalf("partition %s missing: %v", p, err)
		}
		if !info.IsDir() {
			t.Errorf("partition %s is not a directory", p)
		}
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
}

func TestInitialize_SweepsTempFiles(t *testing.T) {
	root := t.TempDir()

	// Simulate a crash mid-write from a previous session.
	dir := filepath.Join(root, "cache")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	leftover := filepath.Join(dir, "orphan.tmp")
	if err := os.WriteFile(leftover, []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewWithRoot(root)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Errorf("temp file survived Initialize: %v", err)
	}
}

func TestOperations_BeforeInitialize(t *testing.T) {
	s, err := NewWithRoot(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := s.Write(ctx, store.PartitionCache, "k", nil); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Write before Initialize = %v, want ErrNotInitialized", err)
	}
	if _, err := s.Read(ctx, store.PartitionCache, "k"); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Read before Initialize = %v, want ErrNotInitialized", err)
	}
	if _, err := s.List(ctx, store.PartitionCache); !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("List before Initialize = %v, want ErrNotInitialized", err)
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	data := []byte("select * from sales")
	if err := s.Write(ctx, store.PartitionDatasets, "dataset1.bin", data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := s.Read(ctx, store.PartitionDatasets, "dataset1.bin")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read returned %q, want %q", got, data)
	}

	// No temp file must remain after a committed write.
	if _, err := os.Stat(filepath.Join(s.Root(), "datasets", "dataset1.bin.tmp")); !os.IsNotExist(err) {
		t.Errorf("temp file left behind after write")
	}
}

func TestWrite_Overwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Write(ctx, store.PartitionCache, "k", []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, store.PartitionCache, "k", []byte("new")); err != nil {
		t.Fatal(err)
	}

	got, err := s.Read(ctx, store.PartitionCache, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("Read after overwrite = %q, want %q", got, "new")
	}
}

func TestRead_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Read(context.Background(), store.PartitionCache, "nonexistent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Read returned %v, want ErrNotFound", err)
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.Exists(ctx, store.PartitionCache, "missing")
	if err != nil {
		t.Fatalf("Exists on absent entry errored: %v", err)
	}
	if ok {
		t.Error("Exists reported true for absent entry")
	}

	if err := s.Write(ctx, store.PartitionCache, "present", []byte("x")); err != nil {
		t.Fatal(err)
	}
	ok, err = s.Exists(ctx, store.PartitionCache, "present")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("Exists reported false for present entry")
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Write(ctx, store.PartitionCache, "k", []byte("x")); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Remove(ctx, store.PartitionCache, "k")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Error("Remove returned false for present entry")
	}

	ok, err := s.Exists(ctx, store.PartitionCache, "k")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("entry exists after successful Remove")
	}

	removed, err = s.Remove(ctx, store.PartitionCache, "k")
	if err != nil {
		t.Fatalf("Remove of absent entry errored: %v", err)
	}
	if removed {
		t.Error("Remove of absent entry returned true")
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Write(ctx, store.PartitionDatasets, "b.bin", []byte("bb")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, store.PartitionDatasets, "a.bin", []byte("aaa")); err != nil {
		t.Fatal(err)
	}

	// Nested directories are ignored at this level.
	if err := os.MkdirAll(filepath.Join(s.Root(), "datasets", "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List(ctx, store.PartitionDatasets)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("List returned %d entries, want 2", len(entries))
	}
	if entries[0].Name != "a.bin" || entries[1].Name != "b.bin" {
		t.Errorf("List order = [%s %s], want [a.bin b.bin]", entries[0].Name, entries[1].Name)
	}
	if entries[0].Size != 3 || entries[1].Size != 2 {
		t.Errorf("List sizes = [%d %d], want [3 2]", entries[0].Size, entries[1].Size)
	}
	if entries[0].ModTime.IsZero() {
		t.Error("List returned zero ModTime")
	}
}

func TestList_MissingPartitionDir(t *testing.T) {
	s := newTestStore(t)

	if err := os.RemoveAll(filepath.Join(s.Root(), "temporary")); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List(context.Background(), store.PartitionTemporary)
	if err != nil {
		t.Fatalf("List on missing partition dir errored: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List on missing partition dir returned %d entries", len(entries))
	}
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, path := range []string{"", "/abs", "../escape", "a/../../b", "a//b"} {
		if err := s.Write(ctx, store.PartitionCache, path, nil); !errors.Is(err, store.ErrInvalidPath) {
			t.Errorf("Write(%q) = %v, want ErrInvalidPath", path, err)
		}
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if err := s.Write(ctx, store.PartitionCache, "k", nil); !errors.Is(err, store.ErrClosed) {
		t.Errorf("Write after Close = %v, want ErrClosed", err)
	}
}
