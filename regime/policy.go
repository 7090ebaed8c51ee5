package regime

import (
	"fmt"
	"math"
)

// Policy holds the classifier windows and cut-offs.
type Policy struct {
	MinSamples       int `json:"min_samples" yaml:"min_samples" default:"20"`
	MomentumWindow   int `json:"momentum_window" yaml:"momentum_window" default:"5"`
	TrendWindow      int `json:"trend_window" yaml:"trend_window" default:"10"`
	ConfidenceWindow int `json:"confidence_window" yaml:"confidence_window" default:"49"` // returns for full confidence

	CrashReturn     float64 `json:"crash_return" yaml:"crash_return" default:"-0.05"`
	CrashVolatility float64 `json:"crash_volatility" yaml:"crash_volatility" default:"0.06"`

	BearMomentum float64 `json:"bear_momentum" yaml:"bear_momentum" default:"-0.02"`
	BearTrend    float64 `json:"bear_trend" yaml:"bear_trend" default:"-0.01"`

	BullMomentum      float64 `json:"bull_momentum" yaml:"bull_momentum" default:"0.02"`
	BullTrend         float64 `json:"bull_trend" yaml:"bull_trend" default:"0.01"`
	BullMaxVolatility float64 `json:"bull_max_volatility" yaml:"bull_max_volatility" default:"0.03"`

	VolatileVolatility float64 `json:"volatile_volatility" yaml:"volatile_volatility" default:"0.03"`
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{
		MinSamples:         20,
		MomentumWindow:     5,
		TrendWindow:        10,
		ConfidenceWindow:   49,
		CrashReturn:        -0.05,
		CrashVolatility:    0.06,
		BearMomentum:       -0.02,
		BearTrend:          -0.01,
		BullMomentum:       0.02,
		BullTrend:          0.01,
		BullMaxVolatility:  0.03,
		VolatileVolatility: 0.03,
	}
}

func (p Policy) Validate() error {
	for name, v := range map[string]float64{
		"crash_return":        p.CrashReturn,
		"crash_volatility":    p.CrashVolatility,
		"bear_momentum":       p.BearMomentum,
		"bear_trend":          p.BearTrend,
		"bull_momentum":       p.BullMomentum,
		"bull_trend":          p.BullTrend,
		"bull_max_volatility": p.BullMaxVolatility,
		"volatile_volatility": p.VolatileVolatility,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("regime.%s must be finite", name)
		}
	}
	if p.MomentumWindow <= 0 || p.TrendWindow <= 0 {
		return fmt.Errorf("regime windows must be positive")
	}
	if p.MinSamples < 2*p.TrendWindow {
		return fmt.Errorf("regime.min_samples %d must cover two trend windows (%d)", p.MinSamples, 2*p.TrendWindow)
	}
	if p.MomentumWindow > p.MinSamples-1 {
		return fmt.Errorf("regime.momentum_window %d exceeds available returns %d", p.MomentumWindow, p.MinSamples-1)
	}
	if p.ConfidenceWindow <= 0 {
		return fmt.Errorf("regime.confidence_window must be positive")
	}
	return nil
}
