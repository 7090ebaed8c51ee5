package advisor

import (
	"context"
	"fmt"
	"math"

	"github.com/rustyeddy/tradegate/indicators"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/pkg/clock"
)

type EMACrossOptions struct {
	FastPeriod int     `json:"fast_period" yaml:"fast_period" default:"9"`
	SlowPeriod int     `json:"slow_period" yaml:"slow_period" default:"21"`
	MinSpread  float64 `json:"min_spread" yaml:"min_spread"`
	Confidence float64 `json:"confidence" yaml:"confidence" default:"80"`
}

func (o EMACrossOptions) Validate() error {
	if o.FastPeriod <= 0 || o.SlowPeriod <= 0 {
		return fmt.Errorf("ema periods must be > 0")
	}
	if o.FastPeriod >= o.SlowPeriod {
		return fmt.Errorf("ema fast_period (%d) must be below slow_period (%d)", o.FastPeriod, o.SlowPeriod)
	}
	if o.Confidence < 0 || o.Confidence > 100 {
		return fmt.Errorf("ema confidence must be in [0,100], got %v", o.Confidence)
	}
	return nil
}

// EMACross recommends BUY when the fast EMA crosses above the slow EMA on
// the latest sample and SELL on the opposite cross. It is stateless: each
// call replays the whole window, so a signal fires only on the sample where
// the cross happens.
type EMACross struct {
	opts  EMACrossOptions
	clock clock.Clock
	name  string
}

func NewEMACross(opts EMACrossOptions, c clock.Clock) (*EMACross, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		c = clock.Real{}
	}
	return &EMACross{
		opts:  opts,
		clock: c,
		name:  fmt.Sprintf("EMA_CROSS(%d,%d)", opts.FastPeriod, opts.SlowPeriod),
	}, nil
}

func (x *EMACross) Recommend(ctx context.Context, asset market.Asset, prices []market.PriceSample) (market.Recommendation, error) {
	rec := market.Recommendation{
		Asset:  asset.Symbol,
		Action: market.Hold,
		Model:  x.name,
		Time:   x.clock.Now(),
	}

	closes := market.Closes(prices)
	if len(closes) < x.opts.SlowPeriod+1 {
		rec.Reasoning = "warming up"
		return rec, nil
	}

	fast := indicators.NewEMA(x.opts.FastPeriod)
	slow := indicators.NewEMA(x.opts.SlowPeriod)
	prevRel := 0
	for i, c := range closes {
		fast.Update(c)
		slow.Update(c)
		if i == len(closes)-2 {
			prevRel = relation(fast.Value() - slow.Value())
		}
	}

	diff := fast.Value() - slow.Value()
	if x.opts.MinSpread > 0 && math.Abs(diff) < x.opts.MinSpread {
		rec.Reasoning = "min-spread filter"
		return rec, nil
	}

	switch rel := relation(diff); {
	case prevRel == -1 && rel == +1:
		rec.Action = market.Buy
		rec.Confidence = x.opts.Confidence
		rec.Reasoning = fmt.Sprintf("fast EMA crossed above slow EMA (%.4f > %.4f)", fast.Value(), slow.Value())
	case prevRel == +1 && rel == -1:
		rec.Action = market.Sell
		rec.Confidence = x.opts.Confidence
		rec.Reasoning = fmt.Sprintf("fast EMA crossed below slow EMA (%.4f < %.4f)", fast.Value(), slow.Value())
	default:
		rec.Reasoning = "no cross"
	}
	return rec, nil
}

func relation(diff float64) int {
	switch {
	case diff > 0:
		return +1
	case diff < 0:
		return -1
	}
	return 0
}
