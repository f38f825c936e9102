// Package lockservice implements a named exclusive mutex: the single
// synchronization point every claim round and every commit cycle passes
// through before touching shared index state. A deployment chooses one
// backend, in-process or networked; worker code depends only on the
// LockService interface, never on which.
package lockservice

import (
	"context"
	"sync"

	"github.com/edmiester777/search-engine/internal/metadata"
)

// LockService grants exclusive ownership of a named key. InProcess's
// Acquire blocks until ownership is granted or ctx is cancelled;
// NetworkedClient's Acquire does not wait: it returns an error at once
// when the key is held elsewhere. The returned ReleaseFunc gives the key
// back; callers should still prefer defer release() immediately after a
// successful acquire so a panic or an early return cannot leak the lock.
type LockService interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

// ReleaseFunc releases one previously-acquired key. Calling it more than
// once is safe and has no effect after the first call.
type ReleaseFunc func()

// InProcess backs LockService with a registry of 1-buffered channels, one
// per key, for single-host deployments where the frontier, the crawler
// pool, and the indexer all run in the same process. A channel holding a
// token means the key is free; acquiring drains the token, releasing puts
// it back. This (rather than sync.Mutex) lets Acquire honor ctx
// cancellation without leaking ownership to an abandoned waiter.
type InProcess struct {
	metadataSink metadata.Sink
	holderName   string

	registryMu sync.Mutex
	locks      map[string]chan struct{}
}

func NewInProcess(metadataSink metadata.Sink, holderName string) *InProcess {
	return &InProcess{
		metadataSink: metadataSink,
		holderName:   holderName,
		locks:        make(map[string]chan struct{}),
	}
}

func (l *InProcess) tokenFor(key string) chan struct{} {
	l.registryMu.Lock()
	defer l.registryMu.Unlock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		ch <- struct{}{}
		l.locks[key] = ch
	}
	return ch
}

func (l *InProcess) Acquire(ctx context.Context, key string) (ReleaseFunc, error) {
	ch := l.tokenFor(key)

	select {
	case <-ch:
		l.metadataSink.RecordLock(metadata.LockEvent{Key: key, Holder: l.holderName})
		var once sync.Once
		return func() {
			once.Do(func() {
				ch <- struct{}{}
			})
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ LockService = (*InProcess)(nil)
