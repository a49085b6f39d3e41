package locks

import (
	"context"
	"fmt"
	"sync"
)

// TrackLocker serializes destructive work on one key (a track slug). Lock
// blocks until the key is free or ctx is done; the returned func releases it.
type TrackLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed mutex for single-process deployments.
type Local struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func NewLocal() *Local {
	return &Local{locks: map[string]*keyedLock{}}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, fmt.Errorf("lock key required")
	}
	l.mu.Lock()
	kl := l.locks[key]
	if kl == nil {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, kl, true) })
	}, nil
}

func (l *Local) release(key string, kl *keyedLock, held bool) {
	if held {
		<-kl.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
