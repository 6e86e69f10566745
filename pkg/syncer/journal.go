package syncer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// journalPrefix namespaces task records inside the badger keyspace.
var journalPrefix = []byte("task/")

// Journal persists pending sync tasks so that reconciliation work queued
// while offline survives a restart. Terminal tasks are removed; only the
// pending set is ever on disk.
type Journal struct {
	db *badgerdb.DB
}

// OpenJournal opens (or creates) the journal at dir.
func OpenJournal(dir string) (*Journal, error) {
	opts := badgerdb.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open task journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// taskKey builds the badger key for a task ID. Big-endian so key order
// matches creation order.
func taskKey(id uint64) []byte {
	key := make([]byte, len(journalPrefix)+8)
	copy(key, journalPrefix)
	binary.BigEndian.PutUint64(key[len(journalPrefix):], id)
	return key
}

// Append persists one pending task.
func (j *Journal) Append(task Task) error {
	encoded, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task %d: %w", task.ID, err)
	}

	return j.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(taskKey(task.ID), encoded)
	})
}

// Remove drops a task record. Removing an absent record is not an error.
func (j *Journal) Remove(id uint64) error {
	return j.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(taskKey(id))
	})
}

// Pending returns the journaled tasks in creation order.
func (j *Journal) Pending() ([]Task, error) {
	var tasks []Task

	err := j.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = journalPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(journalPrefix); it.ValidForPrefix(journalPrefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var task Task
				if err := json.Unmarshal(val, &task); err != nil {
					return fmt.Errorf("decode journaled task: %w", err)
				}
				tasks = append(tasks, task)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Big-endian keys already iterate in ID order; sorting keeps the
	// contract explicit.
	sort.Slice(tasks, func(i, k int) bool { return tasks[i].ID < tasks[k].ID })
	return tasks, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
