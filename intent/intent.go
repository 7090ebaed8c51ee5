// Package intent publishes approved trade executions to downstream
// consumers (an order router, a paper ledger, dashboards).
package intent

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Intent describes one journaled execution.
type Intent struct {
	TradeID    string    `json:"trade_id"`
	Asset      string    `json:"asset"`
	Action     string    `json:"action"`
	Side       string    `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Fraction   float64   `json:"fraction"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	RewardRisk float64   `json:"reward_risk,omitempty"`
	Mode       string    `json:"mode"`
	Source     string    `json:"source"`
	Paper      bool      `json:"paper"`
	Time       time.Time `json:"time"`
}

type Publisher interface {
	Publish(ctx context.Context, in Intent) error
	Close() error
}

// Log writes intents to a logger. It is the default when no broker is
// configured.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "intents").Logger()}
}

func (l *Log) Publish(ctx context.Context, in Intent) error {
	l.logger.Info().
		Str("trade_id", in.TradeID).
		Str("asset", in.Asset).
		Str("action", in.Action).
		Float64("quantity", in.Quantity).
		Float64("price", in.Price).
		Float64("reward_risk", in.RewardRisk).
		Bool("paper", in.Paper).
		Msg("trade intent")
	return nil
}

func (l *Log) Close() error { return nil }
