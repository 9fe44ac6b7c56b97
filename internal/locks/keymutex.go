// Package locks provides per-key serialization for the reconciliation
// engine: unbounded concurrency across different payment ids, strict
// ordering for the same id.
package locks

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed hands out one mutex per key and releases the slot once no caller
// holds or waits on it.
type Keyed struct {
	mu sync.Mutex
	m  map[string]*entry
}

func NewKeyed() *Keyed {
	return &Keyed{m: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is held and returns the release func.
func (k *Keyed) Acquire(key string) func() {
	k.mu.Lock()
	e, ok := k.m[key]
	if !ok {
		e = &entry{}
		k.m[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
