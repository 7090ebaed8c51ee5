package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory keeps trades in process. Used for paper runs and tests.
type Memory struct {
	mu     sync.RWMutex
	trades []Trade
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(_ context.Context, t Trade) (Trade, error) {
	t, err := prepare(t)
	if err != nil {
		return Trade{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.trades {
		if have.ID == t.ID {
			return Trade{}, fmt.Errorf("record trade: duplicate id %q", t.ID)
		}
	}
	t.CorrelationCluster = append([]string(nil), t.CorrelationCluster...)
	m.trades = append(m.trades, t)
	sort.SliceStable(m.trades, func(i, j int) bool {
		return m.trades[i].Timestamp.Before(m.trades[j].Timestamp)
	})
	return t, nil
}

func (m *Memory) Get(_ context.Context, tradeID string) (Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.trades {
		if t.ID == tradeID {
			return t, nil
		}
	}
	return Trade{}, fmt.Errorf("trade %q: %w", tradeID, ErrNotFound)
}

func (m *Memory) List(_ context.Context, f Filter) ([]Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Trade
	for _, t := range m.trades {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
