// Package cooldown tracks per-asset quiet periods after an execution.
package cooldown

import (
	"context"
	"encoding/json"
	"time"
)

// Status is the cooldown state of one asset.
type Status struct {
	Asset      string        `json:"asset"`
	InCooldown bool          `json:"in_cooldown"`
	Remaining  time.Duration `json:"-"`
	Expiry     time.Time     `json:"expiry,omitempty"`
}

// RemainingMs reports Remaining in milliseconds.
func (s Status) RemainingMs() int64 { return s.Remaining.Milliseconds() }

func (s Status) MarshalJSON() ([]byte, error) {
	type plain Status
	return json.Marshal(struct {
		plain
		RemainingMs int64 `json:"remaining_ms"`
	}{plain(s), s.RemainingMs()})
}

// Registry maps assets to cooldown expiries. Set never shortens an active
// cooldown: the stored expiry is max(current expiry, now+d). A
// non-positive d starts nothing and reports the current status.
type Registry interface {
	Set(ctx context.Context, asset string, d time.Duration) (Status, error)
	Status(ctx context.Context, asset string) (Status, error)
	Clear(ctx context.Context, asset string) error
}

func statusAt(asset string, expiry, now time.Time) Status {
	remaining := expiry.Sub(now)
	if remaining <= 0 {
		return Status{Asset: asset}
	}
	return Status{Asset: asset, InCooldown: true, Remaining: remaining, Expiry: expiry}
}
