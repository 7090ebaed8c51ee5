package risk

import (
	"errors"
	"math"

	"github.com/rustyeddy/tradegate/market"
)

var ErrNonFinite = errors.New("stop levels: non-finite input")

type Side int

const (
	Long Side = iota
	Short
)

func (s Side) String() string {
	if s == Short {
		return "short"
	}
	return "long"
}

// SideOf maps a recommendation to a direction. SELL is short; everything
// else is long.
func SideOf(a market.Action) Side {
	if a == market.Sell {
		return Short
	}
	return Long
}

// StopParams zero values fall back to a multiplier of 2 and a 1:2 reward.
type StopParams struct {
	Multiplier  float64
	RewardRatio float64
}

type Levels struct {
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	RiskAmount float64 `json:"risk_amount"`
}

// StopLevels places an ATR stop and a reward-ratio target around entry.
func StopLevels(entry, atr float64, side Side, p StopParams) (Levels, error) {
	if p.Multiplier <= 0 {
		p.Multiplier = 2
	}
	if p.RewardRatio <= 0 {
		p.RewardRatio = 2
	}
	if !finite(entry) || !finite(atr) || !finite(p.Multiplier) || !finite(p.RewardRatio) {
		return Levels{}, ErrNonFinite
	}

	offset := math.Abs(atr) * p.Multiplier
	var stop float64
	if side == Short {
		stop = entry + offset
	} else {
		stop = entry - offset
	}

	riskAmt := math.Abs(entry - stop)
	tp := entry + riskAmt*p.RewardRatio
	if side == Short {
		tp = entry - riskAmt*p.RewardRatio
	}

	return Levels{StopLoss: stop, TakeProfit: tp, RiskAmount: riskAmt}, nil
}
