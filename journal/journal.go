package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/tradegate/pkg/id"
)

var ErrNotFound = errors.New("trade not found")

// Store is an append-only trade journal. List returns trades ascending by
// timestamp.
type Store interface {
	Record(ctx context.Context, t Trade) (Trade, error)
	Get(ctx context.Context, id string) (Trade, error)
	List(ctx context.Context, f Filter) ([]Trade, error)
	Close() error
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Asset  string
	Action string // case-insensitive substring
	Mode   string
	Regime string
	Source string
	From   time.Time // inclusive
	To     time.Time // inclusive
	Search string    // asset, ai_reason or notes substring
	Limit  int       // most recent N, 0 for all
}

// Match applies the filter to one trade.
func (f Filter) Match(t Trade) bool {
	if f.Asset != "" && t.Asset != f.Asset {
		return false
	}
	if f.Action != "" && !containsFold(string(t.Action), f.Action) {
		return false
	}
	if f.Mode != "" && string(t.Mode) != f.Mode {
		return false
	}
	if f.Regime != "" && string(t.Regime) != f.Regime {
		return false
	}
	if f.Source != "" && string(t.Source) != f.Source {
		return false
	}
	if !f.From.IsZero() && t.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Timestamp.After(f.To) {
		return false
	}
	if f.Search != "" &&
		!containsFold(t.Asset, f.Search) &&
		!containsFold(t.AIReason, f.Search) &&
		!containsFold(t.Notes, f.Search) {
		return false
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// prepare fills the fields a store owns before insert.
func prepare(t Trade) (Trade, error) {
	if t.Asset == "" {
		return Trade{}, fmt.Errorf("record trade: asset is required")
	}
	if t.Timestamp.IsZero() {
		return Trade{}, fmt.Errorf("record trade: timestamp is required")
	}
	t.Timestamp = t.Timestamp.UTC()
	if t.ID == "" {
		v, err := id.At(t.Timestamp)
		if err != nil {
			return Trade{}, fmt.Errorf("record trade: %w", err)
		}
		t.ID = v
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = t.Timestamp
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

// Open returns the store named by kind: "sqlite" (path), "postgres" (dsn)
// or "memory".
func Open(ctx context.Context, kind, path, dsn string) (Store, error) {
	switch kind {
	case "sqlite":
		return NewSQLite(path)
	case "postgres":
		return NewPostgres(ctx, dsn)
	case "memory", "":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown journal type %q", kind)
}
