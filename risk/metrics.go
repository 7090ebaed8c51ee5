package risk

import "github.com/rustyeddy/tradegate/indicators"

// TradeOutcome is the slice of a journaled trade the risk calculator needs.
type TradeOutcome struct {
	Asset     string
	NavBefore float64
	NavAfter  float64
}

// Return is the trade's NAV return, 0 when NavBefore is 0.
func (o TradeOutcome) Return() float64 {
	if o.NavBefore == 0 {
		return 0
	}
	return (o.NavAfter - o.NavBefore) / o.NavBefore
}

type Snapshot struct {
	PortfolioDrawdown    float64 `json:"portfolio_drawdown"` // percent, negative is a gain
	MaxDrawdownThreshold float64 `json:"max_drawdown_threshold"`
	CurrentVolatility    float64 `json:"current_volatility"`
	TargetVolatility     float64 `json:"target_volatility"`
	CorrelationRisk      float64 `json:"correlation_risk"`
	PauseTrading         bool    `json:"pause_trading"`
	Trades               int     `json:"trades"`
}

// NAVReturn is the portfolio return as a fraction (-0.05 is a 5% loss).
func (s Snapshot) NAVReturn() float64 {
	return -s.PortfolioDrawdown / 100
}

// Calculate derives a snapshot from trades (ascending by time) and the
// current NAV.
func Calculate(trades []TradeOutcome, currentNAV float64, p Policy) Snapshot {
	initialNAV := currentNAV
	if len(trades) > 0 {
		initialNAV = trades[0].NavBefore
	}

	drawdown := 0.0
	if initialNAV != 0 {
		drawdown = (initialNAV - currentNAV) / initialNAV * 100
	}

	window := p.RecentTrades
	if window <= 0 || window > len(trades) {
		window = len(trades)
	}
	recent := trades[len(trades)-window:]

	vol := 0.0
	if len(recent) >= 2 {
		rets := make([]float64, len(recent))
		for i, t := range recent {
			rets[i] = t.Return()
		}
		vol = indicators.StdDev(rets)
	}

	return Snapshot{
		PortfolioDrawdown:    drawdown,
		MaxDrawdownThreshold: p.MaxDrawdownThreshold,
		CurrentVolatility:    vol,
		TargetVolatility:     p.TargetVolatility,
		CorrelationRisk:      concentration(recent),
		PauseTrading:         !(drawdown <= p.MaxDrawdownThreshold),
		Trades:               len(trades),
	}
}

// concentration is the largest single-asset share of the trades.
func concentration(trades []TradeOutcome) float64 {
	if len(trades) == 0 {
		return 0
	}
	counts := make(map[string]int)
	top := 0
	for _, t := range trades {
		counts[t.Asset]++
		if counts[t.Asset] > top {
			top = counts[t.Asset]
		}
	}
	return float64(top) / float64(len(trades))
}
