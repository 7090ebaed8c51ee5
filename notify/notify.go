// Package notify tells a human about executions and halts.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/tradegate/journal"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Log writes notifications to a logger.
type Log struct {
	logger zerolog.Logger
}

func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "notify").Logger()}
}

func (l *Log) Notify(ctx context.Context, text string) error {
	l.logger.Info().Msg(text)
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, text string) error {
	var errs []string
	for _, n := range m {
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FormatTrade renders a journaled trade as a short chat message.
func FormatTrade(t journal.Trade) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s @ %s\n", t.Mode, t.Action, t.Asset, trim(t.Price))
	fmt.Fprintf(&b, "qty %s (%.2f%% of NAV)\n", trim(t.Quantity), t.PositionSizeFraction*100)
	if t.StopLoss != nil {
		fmt.Fprintf(&b, "SL %s", trim(*t.StopLoss))
		if t.TakeProfit != nil {
			b.WriteString(" ")
		} else {
			b.WriteString("\n")
		}
	}
	if t.TakeProfit != nil {
		fmt.Fprintf(&b, "TP %s\n", trim(*t.TakeProfit))
	}
	fmt.Fprintf(&b, "AI %s %.0f%%, regime %s\n", t.AIRecommendation, t.AIConfidence, t.Regime)
	fmt.Fprintf(&b, "NAV %.2f -> %.2f", t.NavBefore, t.NavAfter)
	return b.String()
}

// FormatHalt renders a blocked cycle.
func FormatHalt(asset, reason string) string {
	return fmt.Sprintf("%s trading halted: %s", asset, reason)
}

func trim(v float64) string {
	s := fmt.Sprintf("%.5f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
