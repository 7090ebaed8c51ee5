// Package journal records executed trades and answers history queries.
package journal

import (
	"time"

	"github.com/rustyeddy/tradegate/gate"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/regime"
	"github.com/rustyeddy/tradegate/risk"
)

type Action string

const (
	AutoBuy    Action = "AUTO_BUY"
	AutoSell   Action = "AUTO_SELL"
	ManualBuy  Action = "MANUAL_BUY"
	ManualSell Action = "MANUAL_SELL"
	NoAction   Action = "HOLD"
)

// ActionFor maps a recommendation direction to a journal action.
func ActionFor(a market.Action, automatic bool) Action {
	switch {
	case a == market.Buy && automatic:
		return AutoBuy
	case a == market.Sell && automatic:
		return AutoSell
	case a == market.Buy:
		return ManualBuy
	case a == market.Sell:
		return ManualSell
	}
	return NoAction
}

// Direction is the market side of the action; HOLD for NoAction.
func (a Action) Direction() market.Action {
	switch a {
	case AutoBuy, ManualBuy:
		return market.Buy
	case AutoSell, ManualSell:
		return market.Sell
	}
	return market.Hold
}

type Source string

const (
	SourceAI     Source = "AI"
	SourceManual Source = "MANUAL"
	SourceSystem Source = "SYSTEM"
)

// Trade is an immutable journal entry.
type Trade struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp_utc"`
	Asset     string    `json:"asset"`
	Action    Action    `json:"action"`

	Quantity             float64 `json:"quantity"`
	Price                float64 `json:"price"`
	NavBefore            float64 `json:"nav_before"`
	NavAfter             float64 `json:"nav_after"`
	PositionSizeFraction float64 `json:"position_size_fraction"`

	AIRecommendation market.Action `json:"ai_recommendation"`
	AIConfidence     float64       `json:"ai_confidence"`
	AIReason         string        `json:"ai_reason"`
	ModelVersion     string        `json:"model_version"`
	Regime           regime.Regime `json:"regime"`

	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`

	Source             Source    `json:"source"`
	Mode               gate.Mode `json:"mode"`
	TradeRef           string    `json:"trade_id,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CorrelationCluster []string  `json:"correlation_cluster,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// PnL is the NAV change booked by the trade.
func (t Trade) PnL() float64 {
	return t.NavAfter - t.NavBefore
}

func (t Trade) Outcome() risk.TradeOutcome {
	return risk.TradeOutcome{Asset: t.Asset, NavBefore: t.NavBefore, NavAfter: t.NavAfter}
}

// Outcomes converts trades for risk.Calculate.
func Outcomes(trades []Trade) []risk.TradeOutcome {
	out := make([]risk.TradeOutcome, len(trades))
	for i, t := range trades {
		out[i] = t.Outcome()
	}
	return out
}
