package journal

import (
	"fmt"
	"strings"
	"time"
)

// FormatTradeOrg renders a Trade as an Org-mode block with the structured
// facts in a PROPERTIES drawer and a Review heading for notes.
func FormatTradeOrg(t Trade) string {
	heading := fmt.Sprintf("** Trade: %s %s (%s)", t.Asset, t.Action, shortID(t.ID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":ID: %s\n", t.ID))
	if t.TradeRef != "" {
		b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.TradeRef))
	}
	b.WriteString(fmt.Sprintf(":TIME: %s\n", t.Timestamp.UTC().Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf(":ASSET: %s\n", t.Asset))
	b.WriteString(fmt.Sprintf(":MODE: %s\n", t.Mode))
	b.WriteString(fmt.Sprintf(":SOURCE: %s\n", t.Source))
	b.WriteString(fmt.Sprintf(":QUANTITY: %s\n", f(t.Quantity)))
	b.WriteString(fmt.Sprintf(":PRICE: %.5f\n", t.Price))
	b.WriteString(fmt.Sprintf(":SIZE_PCT: %.2f\n", t.PositionSizeFraction*100))
	b.WriteString(fmt.Sprintf(":NAV_BEFORE: %.2f\n", t.NavBefore))
	b.WriteString(fmt.Sprintf(":NAV_AFTER: %.2f\n", t.NavAfter))
	b.WriteString(fmt.Sprintf(":PNL: %.2f\n", t.PnL()))
	if t.StopLoss != nil {
		b.WriteString(fmt.Sprintf(":STOP_LOSS: %.5f\n", *t.StopLoss))
	}
	if t.TakeProfit != nil {
		b.WriteString(fmt.Sprintf(":TAKE_PROFIT: %.5f\n", *t.TakeProfit))
	}
	b.WriteString(fmt.Sprintf(":REGIME: %s\n", t.Regime))
	b.WriteString(fmt.Sprintf(":AI: %s %.0f%% (%s)\n", t.AIRecommendation, t.AIConfidence, t.ModelVersion))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Reasoning\n")
	b.WriteString(fmt.Sprintf("- %s\n\n", t.AIReason))
	b.WriteString("*** Review\n- ")
	if t.Notes != "" {
		b.WriteString(t.Notes)
	}
	b.WriteString("\n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
