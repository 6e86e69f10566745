package cache

import (
	"sync"

	"github.com/datastash/datastash/pkg/store"
)

// keyOf builds the guard key for a (partition, path) pair.
func keyOf(partition store.Partition, path string) string {
	return partition.String() + "/" + path
}

// keyLock is one refcounted per-key mutex.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// keyedMutex serializes operations per key while letting distinct keys
// proceed concurrently. Locks are created on demand and dropped when the
// last holder releases, so the map stays proportional to in-flight keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
