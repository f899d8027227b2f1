package storage

import (
	"context"
	"sync"
)

// KeyedLocker provides one exclusive section per key. Waiters for the same
// key are granted the section in arrival order. Entries are dropped once no
// holder or waiter remains, so idle keys cost nothing.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	waiters []chan struct{}
}

// NewKeyedLocker creates an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{entries: make(map[string]*lockEntry)}
}

// Lock blocks until the section for key is held or ctx is done.
// The returned function releases the section and must be called exactly once.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, held := l.entries[key]
	if !held {
		l.entries[key] = &lockEntry{}
		l.mu.Unlock()
		return l.releaser(key), nil
	}

	ch := make(chan struct{})
	e.waiters = append(e.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return l.releaser(key), nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, w := range e.waiters {
			if w == ch {
				e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
				l.mu.Unlock()
				return nil, ctx.Err()
			}
		}
		l.mu.Unlock()
		// The section was handed to us while we were cancelling.
		l.release(key)
		return nil, ctx.Err()
	}
}

// WithLock runs fn inside the section for key.
func (l *KeyedLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	unlock, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

// held reports whether the section for key is currently held.
func (l *KeyedLocker) held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[key]
	return ok
}

func (l *KeyedLocker) releaser(key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { l.release(key) })
	}
}

func (l *KeyedLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return
	}
	if len(e.waiters) == 0 {
		delete(l.entries, key)
		return
	}
	next := e.waiters[0]
	e.waiters = e.waiters[1:]
	close(next)
}
