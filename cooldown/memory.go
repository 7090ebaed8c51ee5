package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/rustyeddy/tradegate/pkg/clock"
)

// Memory is an in-process Registry.
type Memory struct {
	mu       sync.RWMutex
	expiries map[string]time.Time
	clock    clock.Clock
}

func NewMemory(c clock.Clock) *Memory {
	if c == nil {
		c = clock.Real{}
	}
	return &Memory{expiries: make(map[string]time.Time), clock: c}
}

func (m *Memory) Set(ctx context.Context, asset string, d time.Duration) (Status, error) {
	if d <= 0 {
		return m.Status(ctx, asset)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	expiry := now.Add(d)
	if cur, ok := m.expiries[asset]; ok && cur.After(expiry) {
		expiry = cur
	}
	m.expiries[asset] = expiry
	return statusAt(asset, expiry, now), nil
}

func (m *Memory) Status(_ context.Context, asset string) (Status, error) {
	m.mu.RLock()
	expiry, ok := m.expiries[asset]
	m.mu.RUnlock()

	if !ok {
		return Status{Asset: asset}, nil
	}
	return statusAt(asset, expiry, m.clock.Now()), nil
}

func (m *Memory) Clear(_ context.Context, asset string) error {
	m.mu.Lock()
	delete(m.expiries, asset)
	m.mu.Unlock()
	return nil
}
