package engine

import (
	"context"
	"sync"
)

// assetLocks serializes executions per asset. Each lock is a one-slot
// channel so waiting respects context cancellation.
type assetLocks struct {
	mu sync.Mutex
	m  map[string]chan struct{}
}

func newAssetLocks() *assetLocks {
	return &assetLocks{m: make(map[string]chan struct{})}
}

func (l *assetLocks) slot(asset string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.m[asset]
	if !ok {
		ch = make(chan struct{}, 1)
		l.m[asset] = ch
	}
	return ch
}

// lock blocks until asset is free or ctx is done. The returned func
// releases it.
func (l *assetLocks) lock(ctx context.Context, asset string) (func(), error) {
	ch := l.slot(asset)
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
