package journal

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{
	"Timestamp", "Asset", "Action", "Quantity", "Price", "NAV Before", "NAV After", "P&L",
	"Position Size %", "AI Recommendation", "AI Confidence", "AI Reason", "Model Version",
	"Market Regime", "Stop Loss", "Take Profit", "Source", "Mode", "Trade ID", "Notes",
}

// ExportFilename names an export taken on day.
func ExportFilename(day time.Time) string {
	return "trade_history_" + day.Format("2006-01-02") + ".csv"
}

// WriteCSV writes trades in export column order. AI Reason and Notes are
// always quoted; other text fields are quoted when they hold a comma, quote
// or line break.
func WriteCSV(w io.Writer, trades []Trade) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(csvHeader, ",")); err != nil {
		return err
	}
	for _, t := range trades {
		if _, err := bw.WriteString("\n" + strings.Join(csvRow(t), ",")); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}

func csvRow(t Trade) []string {
	return []string{
		t.Timestamp.UTC().Format(time.RFC3339),
		escape(t.Asset),
		string(t.Action),
		f(t.Quantity),
		f(t.Price),
		f(t.NavBefore),
		f(t.NavAfter),
		fmt.Sprintf("%.2f", t.PnL()),
		fmt.Sprintf("%.2f%%", t.PositionSizeFraction*100),
		string(t.AIRecommendation),
		f(t.AIConfidence) + "%",
		quote(t.AIReason),
		escape(t.ModelVersion),
		string(t.Regime),
		optional(t.StopLoss),
		optional(t.TakeProfit),
		string(t.Source),
		string(t.Mode),
		escape(t.TradeRef),
		quote(t.Notes),
	}
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func optional(p *float64) string {
	if p == nil {
		return ""
	}
	return f(*p)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func escape(s string) string {
	if strings.ContainsAny(s, ",\"\r\n") {
		return quote(s)
	}
	return s
}
