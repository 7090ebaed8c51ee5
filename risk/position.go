package risk

import "math"

// Sizing holds the inputs for PositionSize.
type Sizing struct {
	BaseRiskFraction float64
	Confidence       float64 // 0-100
	TargetVolatility float64
	AssetVolatility  float64
	MaxRiskPerTrade  float64
}

// PositionSize returns the fraction of capital to commit, always within
// [0, min(MaxRiskPerTrade, 1)]. Asset volatility is floored at epsilon and
// any non-finite input sizes to zero.
func PositionSize(in Sizing, epsilon float64) float64 {
	for _, v := range []float64{in.BaseRiskFraction, in.Confidence, in.TargetVolatility, in.AssetVolatility, in.MaxRiskPerTrade, epsilon} {
		if !finite(v) {
			return 0
		}
	}
	if epsilon <= 0 {
		epsilon = DefaultPolicy().VolatilityEpsilon
	}

	confidenceFactor := in.Confidence / 100
	volatilityFactor := in.TargetVolatility / math.Max(in.AssetVolatility, epsilon)
	raw := in.BaseRiskFraction * confidenceFactor * volatilityFactor

	f := math.Max(0, math.Min(raw, in.MaxRiskPerTrade))
	return math.Max(0, math.Min(f, 1))
}

// Units converts a NAV fraction into asset units at price.
func Units(nav, fraction, price float64) float64 {
	if price <= 0 || !finite(price) {
		return 0
	}
	return nav * fraction / price
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
