// Package advisor produces BUY/SELL/HOLD recommendations for an asset from
// its recent prices.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/pkg/clock"
)

// ModelVersion is recorded on every journaled trade.
const ModelVersion = "v2.3-ensemble-2025"

type Advisor interface {
	Recommend(ctx context.Context, asset market.Asset, prices []market.PriceSample) (market.Recommendation, error)
}

// Noop always holds. It is used when no model is configured.
type Noop struct {
	Clock clock.Clock
}

func (n Noop) Recommend(ctx context.Context, asset market.Asset, prices []market.PriceSample) (market.Recommendation, error) {
	c := n.Clock
	if c == nil {
		c = clock.Real{}
	}
	return market.Recommendation{
		Asset:     asset.Symbol,
		Action:    market.Hold,
		Reasoning: "no advisor configured",
		Model:     "noop",
		Time:      c.Now(),
	}, nil
}

type answer struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ParseAnswer decodes a model reply of the form
// {"action": ..., "confidence": ..., "reasoning": ...}. Markdown code fences
// and text around the object are tolerated. Confidence is clamped to
// [0, 100].
func ParseAnswer(reply string) (market.Recommendation, error) {
	s := strings.TrimSpace(reply)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return market.Recommendation{}, fmt.Errorf("no JSON object in reply %q", reply)
	}

	var a answer
	if err := json.Unmarshal([]byte(s[start:end+1]), &a); err != nil {
		return market.Recommendation{}, fmt.Errorf("parsing reply: %w", err)
	}
	act, err := market.ParseAction(a.Action)
	if err != nil {
		return market.Recommendation{}, err
	}
	if math.IsNaN(a.Confidence) {
		return market.Recommendation{}, fmt.Errorf("confidence is NaN")
	}
	return market.Recommendation{
		Action:     act,
		Confidence: math.Max(0, math.Min(100, a.Confidence)),
		Reasoning:  strings.TrimSpace(a.Reasoning),
	}, nil
}

// Prompt builds the request for asset from its last 10 prices.
func Prompt(asset market.Asset, prices []market.PriceSample) string {
	closes := market.Closes(prices)
	if len(closes) > 10 {
		closes = closes[len(closes)-10:]
	}
	parts := make([]string, len(closes))
	for i, p := range closes {
		parts[i] = fmt.Sprintf("%.2f", p)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following price data for %s (%s) - %s:\n\n", asset.Name, asset.Symbol, asset.Type)
	fmt.Fprintf(&b, "Recent prices: %s\n\n", strings.Join(parts, ", "))
	b.WriteString("Based on this data, provide a trading recommendation in JSON format:\n")
	b.WriteString(`{"action": "BUY|SELL|HOLD", "confidence": number (60-100), "reasoning": "brief explanation"}`)
	fmt.Fprintf(&b, "\n\nConsider technical analysis patterns, trends, and market conditions for %s assets. Reply with the JSON object only.", asset.Type)
	return b.String()
}
