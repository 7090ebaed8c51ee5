package risk

import "fmt"

type Policy struct {
	// Compared against PortfolioDrawdown, which is on a percent scale.
	// The stock value trips on almost any drawdown; raise it (e.g. 10 for
	// ten percent) to get a conventional limit.
	MaxDrawdownThreshold float64 `json:"max_drawdown_threshold" yaml:"max_drawdown_threshold" default:"0.00001"`

	TargetVolatility float64 `json:"target_volatility" yaml:"target_volatility" default:"0.02"`
	RecentTrades     int     `json:"recent_trades" yaml:"recent_trades" default:"10"`

	// Sizing
	BaseRiskFraction  float64 `json:"base_risk_fraction" yaml:"base_risk_fraction" default:"0.02"`
	VolatilityEpsilon float64 `json:"volatility_epsilon" yaml:"volatility_epsilon" default:"0.001"`

	// Stops
	StopMultiplier float64 `json:"stop_multiplier" yaml:"stop_multiplier" default:"2"`
	RewardRatio    float64 `json:"reward_ratio" yaml:"reward_ratio" default:"2"`
	ATRPeriod      int     `json:"atr_period" yaml:"atr_period" default:"14"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxDrawdownThreshold: 0.00001,
		TargetVolatility:     0.02,
		RecentTrades:         10,
		BaseRiskFraction:     0.02,
		VolatilityEpsilon:    0.001,
		StopMultiplier:       2,
		RewardRatio:          2,
		ATRPeriod:            14,
	}
}

func (p Policy) Validate() error {
	for name, v := range map[string]float64{
		"max_drawdown_threshold": p.MaxDrawdownThreshold,
		"target_volatility":      p.TargetVolatility,
		"base_risk_fraction":     p.BaseRiskFraction,
		"volatility_epsilon":     p.VolatilityEpsilon,
		"stop_multiplier":        p.StopMultiplier,
		"reward_ratio":           p.RewardRatio,
	} {
		if !finite(v) {
			return fmt.Errorf("risk.%s must be finite", name)
		}
	}
	if p.MaxDrawdownThreshold < 0 {
		return fmt.Errorf("risk.max_drawdown_threshold must not be negative")
	}
	if p.TargetVolatility <= 0 {
		return fmt.Errorf("risk.target_volatility must be positive")
	}
	if p.RecentTrades <= 0 {
		return fmt.Errorf("risk.recent_trades must be positive")
	}
	if p.BaseRiskFraction <= 0 || p.BaseRiskFraction > 1 {
		return fmt.Errorf("risk.base_risk_fraction must be between 0 and 1")
	}
	if p.VolatilityEpsilon <= 0 {
		return fmt.Errorf("risk.volatility_epsilon must be positive")
	}
	if p.StopMultiplier <= 0 || p.RewardRatio <= 0 {
		return fmt.Errorf("risk stop multiplier and reward ratio must be positive")
	}
	if p.ATRPeriod <= 0 {
		return fmt.Errorf("risk.atr_period must be positive")
	}
	return nil
}
