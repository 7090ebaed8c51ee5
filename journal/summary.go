package journal

import (
	"bytes"
	"context"
	"text/template"
	"time"
)

// Summary aggregates one day of trades.
type Summary struct {
	Date             time.Time      `json:"date"`
	TotalTrades      int            `json:"total_trades"`
	ProfitableTrades int            `json:"profitable_trades"`
	TotalPnL         float64        `json:"total_pnl"`
	Best             *Trade         `json:"best_trade,omitempty"`
	Worst            *Trade         `json:"worst_trade,omitempty"`
	ByMode           map[string]int `json:"mode_breakdown"`
	ByRegime         map[string]int `json:"regime_breakdown"`
}

// WinRate is the share of profitable trades.
func (s Summary) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.ProfitableTrades) / float64(s.TotalTrades)
}

// DayBounds returns [start, end] of the calendar day containing day in loc.
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// Summarize aggregates trades; callers pass one day's worth.
func Summarize(day time.Time, trades []Trade) Summary {
	s := Summary{
		Date:     day,
		ByMode:   map[string]int{},
		ByRegime: map[string]int{},
	}
	for i := range trades {
		t := trades[i]
		pnl := t.PnL()
		s.TotalTrades++
		s.TotalPnL += pnl
		if pnl > 0 {
			s.ProfitableTrades++
		}
		if s.Best == nil || pnl > s.Best.PnL() {
			s.Best = &trades[i]
		}
		if s.Worst == nil || pnl < s.Worst.PnL() {
			s.Worst = &trades[i]
		}
		s.ByMode[string(t.Mode)]++
		s.ByRegime[string(t.Regime)]++
	}
	return s
}

// DailySummary loads and summarizes the trades of day in loc.
func DailySummary(ctx context.Context, st Store, day time.Time, loc *time.Location) (Summary, error) {
	start, end := DayBounds(day, loc)
	trades, err := st.List(ctx, Filter{From: start, To: end})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(start, trades), nil
}

var summaryFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
}

// FormatSummaryOrg renders a summary as an Org-mode section.
func FormatSummaryOrg(s Summary) (string, error) {
	t, err := template.New("summary").Funcs(summaryFuncs).Parse(summaryOrgTemplate)
	if err != nil {
		return "", err
	}
	buf := new(bytes.Buffer)
	if err := t.Execute(buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const summaryOrgTemplate = `* DAILY SUMMARY {{.Date.Format "2006-01-02"}}
:PROPERTIES:
:TRADES:      {{.TotalTrades}}
:PROFITABLE:  {{.ProfitableTrades}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:TOTAL_PNL:   {{printf "%.2f" .TotalPnL}}
:END:
{{- with .Best }}

** Best Trade
- {{.Asset}} {{.Action}} {{printf "%.2f" .PnL}}
{{- end }}
{{- with .Worst }}

** Worst Trade
- {{.Asset}} {{.Action}} {{printf "%.2f" .PnL}}
{{- end }}
{{- if .ByMode }}

** By Mode
| Mode | Trades |
|------+--------|
{{- range $k, $v := .ByMode }}
| {{$k}} | {{$v}} |
{{- end }}
{{- end }}
{{- if .ByRegime }}

** By Regime
| Regime | Trades |
|--------+--------|
{{- range $k, $v := .ByRegime }}
| {{$k}} | {{$v}} |
{{- end }}
{{- end }}
`
