package stash

import "sync"

// The package default is a convenience for command wiring. It is set
// explicitly during startup; nothing is constructed lazily, so an
// unconfigured default is a programming error surfaced by the nil
// return, not a hidden fallback.
var (
	defaultMu    sync.RWMutex
	defaultStash *Stash
)

// Default returns the process-wide stash, or nil when none is set.
func Default() *Stash {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultStash
}

// SetDefault installs the process-wide stash and returns the previous
// one, if any.
func SetDefault(s *Stash) *Stash {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultStash
	defaultStash = s
	return prev
}

// ResetDefault clears the process-wide stash. Tests use this to restore
// a clean slate between cases.
func ResetDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultStash = nil
}
