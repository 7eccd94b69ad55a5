// Package lock serializes read-modify-write cycles on a single post.
package lock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to one post id at a time.
// The returned unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, postID uint) (unlock func(), err error)
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are dropped once no caller holds
// or waits on them, so memory stays proportional to contended ids.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[uint]*keyedEntry
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[uint]*keyedEntry)}
}

// Lock blocks until postID is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, postID uint) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[postID]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.entries[postID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(postID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.release(postID, e)
		})
	}, nil
}

func (k *KeyedMutex) release(postID uint, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, postID)
	}
}

// size reports tracked ids; used by tests.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
