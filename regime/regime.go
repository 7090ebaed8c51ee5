// Package regime classifies a price window into a discrete market regime.
package regime

import (
	"math"
	"time"

	"github.com/rustyeddy/tradegate/indicators"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/pkg/clock"
)

type Regime string

const (
	Bullish       Regime = "BULLISH"
	Bearish       Regime = "BEARISH"
	Volatile      Regime = "VOLATILE"
	Neutral       Regime = "NEUTRAL"
	CrashImminent Regime = "CRASH_IMMINENT"
)

// Halts reports whether the regime forbids new trades.
func (r Regime) Halts() bool {
	return r == Bearish || r == CrashImminent
}

// Snapshot is the classification of one price window.
type Snapshot struct {
	Regime       Regime    `json:"regime"`
	Confidence   float64   `json:"confidence"`
	Momentum     float64   `json:"momentum"`
	Volatility   float64   `json:"volatility"`
	Trend        float64   `json:"trend"`
	Volume       float64   `json:"volume"`
	Samples      int       `json:"samples"`
	Sufficient   bool      `json:"sufficient"`
	AllowTrading bool      `json:"allow_trading"`
	Timestamp    time.Time `json:"timestamp"`
}

// Classifier turns price windows into snapshots.
type Classifier struct {
	policy Policy
	clock  clock.Clock
}

func NewClassifier(p Policy, c clock.Clock) *Classifier {
	if c == nil {
		c = clock.Real{}
	}
	return &Classifier{policy: p, clock: c}
}

func (c *Classifier) Policy() Policy { return c.policy }

// Classify evaluates samples (ascending by time). Windows that are too short
// or carry an invalid price come back NEUTRAL with Sufficient=false.
func (c *Classifier) Classify(samples []market.PriceSample) Snapshot {
	snap := Evaluate(market.Closes(samples), c.policy)
	snap.Samples = len(samples)
	snap.Timestamp = c.clock.Now()
	if last, ok := market.Last(samples); ok {
		snap.Volume = last.Volume
	}
	if !market.Valid(samples) {
		snap = insufficient(snap.Samples, snap.Timestamp)
	}
	return snap
}

// Evaluate is the pure classification over a close series.
func Evaluate(prices []float64, p Policy) Snapshot {
	if len(prices) < p.MinSamples || len(prices) < 2 {
		return insufficient(len(prices), time.Time{})
	}
	for _, px := range prices {
		if math.IsNaN(px) || math.IsInf(px, 0) || px <= 0 {
			return insufficient(len(prices), time.Time{})
		}
	}

	returns := indicators.Returns(prices)
	momentum := indicators.Mean(indicators.Tail(returns, p.MomentumWindow))
	volatility := indicators.StdDev(returns)
	trend := trendOf(prices, p.TrendWindow)
	last := returns[len(returns)-1]

	r := classify(last, momentum, volatility, trend, p)
	return Snapshot{
		Regime:       r,
		Confidence:   confidence(len(returns), p.ConfidenceWindow),
		Momentum:     momentum,
		Volatility:   volatility,
		Trend:        trend,
		Samples:      len(prices),
		Sufficient:   true,
		AllowTrading: !r.Halts(),
	}
}

func classify(lastReturn, momentum, volatility, trend float64, p Policy) Regime {
	switch {
	case lastReturn < p.CrashReturn || volatility > p.CrashVolatility:
		return CrashImminent
	case momentum < p.BearMomentum && trend < p.BearTrend:
		return Bearish
	case momentum > p.BullMomentum && trend > p.BullTrend && volatility < p.BullMaxVolatility:
		return Bullish
	case volatility > p.VolatileVolatility:
		return Volatile
	}
	return Neutral
}

// trendOf compares the mean of the last window prices with the window before it.
func trendOf(prices []float64, window int) float64 {
	n := len(prices)
	if window <= 0 || n < 2*window {
		return 0
	}
	recent := indicators.Mean(prices[n-window:])
	prior := indicators.Mean(prices[n-2*window : n-window])
	if prior == 0 {
		return 0
	}
	return (recent - prior) / prior
}

func confidence(returns, full int) float64 {
	if full <= 0 {
		return 100
	}
	return 100 * math.Min(1, float64(returns)/float64(full))
}

func insufficient(n int, ts time.Time) Snapshot {
	return Snapshot{
		Regime:       Neutral,
		Samples:      n,
		AllowTrading: true,
		Timestamp:    ts,
	}
}
