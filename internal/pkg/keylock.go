package pkg

import (
	"context"
	"sync"
)

// KeyLock is a set of mutexes addressed by key. Entries live only while someone holds or waits on them.
type KeyLock struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyLock() *KeyLock {
	return &KeyLock{
		entries: make(map[string]*lockEntry),
	}
}

// Lock blocks until the key is free or ctx is done. The returned func releases the key and must be called exactly once.
func (that *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	entry := that.acquire(key)

	select {
	case entry.ch <- struct{}{}:
		return func() {
			<-entry.ch
			that.release(key, entry)
		}, nil
	case <-ctx.Done():
		that.release(key, entry)
		return nil, ctx.Err()
	}
}

func (that *KeyLock) acquire(key string) *lockEntry {
	that.mu.Lock()
	defer that.mu.Unlock()

	entry, ok := that.entries[key]
	if !ok {
		entry = &lockEntry{ch: make(chan struct{}, 1)}
		that.entries[key] = entry
	}
	entry.refs++

	return entry
}

func (that *KeyLock) release(key string, entry *lockEntry) {
	that.mu.Lock()
	defer that.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(that.entries, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (that *KeyLock) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.entries)
}
