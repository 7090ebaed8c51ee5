package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/tradegate/gate"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/regime"
)

const tradeColumns = `id, ts_ms, asset, action, quantity, price, nav_before, nav_after,
	position_size_fraction, ai_recommendation, ai_confidence, ai_reason, model_version,
	regime, stop_loss, take_profit, source, mode, trade_ref, notes, correlation_cluster, created_ms`

const tradeColumnCount = 22

// tradeRow is the storage shape shared by the SQL stores.
type tradeRow struct {
	ID                   string          `db:"id"`
	TsMs                 int64           `db:"ts_ms"`
	Asset                string          `db:"asset"`
	Action               string          `db:"action"`
	Quantity             float64         `db:"quantity"`
	Price                float64         `db:"price"`
	NavBefore            float64         `db:"nav_before"`
	NavAfter             float64         `db:"nav_after"`
	PositionSizeFraction float64         `db:"position_size_fraction"`
	AIRecommendation     string          `db:"ai_recommendation"`
	AIConfidence         float64         `db:"ai_confidence"`
	AIReason             string          `db:"ai_reason"`
	ModelVersion         string          `db:"model_version"`
	Regime               string          `db:"regime"`
	StopLoss             sql.NullFloat64 `db:"stop_loss"`
	TakeProfit           sql.NullFloat64 `db:"take_profit"`
	Source               string          `db:"source"`
	Mode                 string          `db:"mode"`
	TradeRef             string          `db:"trade_ref"`
	Notes                string          `db:"notes"`
	Cluster              string          `db:"correlation_cluster"`
	CreatedMs            int64           `db:"created_ms"`
}

func toRow(t Trade) (tradeRow, error) {
	cluster := t.CorrelationCluster
	if cluster == nil {
		cluster = []string{}
	}
	cj, err := json.Marshal(cluster)
	if err != nil {
		return tradeRow{}, err
	}
	return tradeRow{
		ID:                   t.ID,
		TsMs:                 t.Timestamp.UnixMilli(),
		Asset:                t.Asset,
		Action:               string(t.Action),
		Quantity:             t.Quantity,
		Price:                t.Price,
		NavBefore:            t.NavBefore,
		NavAfter:             t.NavAfter,
		PositionSizeFraction: t.PositionSizeFraction,
		AIRecommendation:     string(t.AIRecommendation),
		AIConfidence:         t.AIConfidence,
		AIReason:             t.AIReason,
		ModelVersion:         t.ModelVersion,
		Regime:               string(t.Regime),
		StopLoss:             nullFloat(t.StopLoss),
		TakeProfit:           nullFloat(t.TakeProfit),
		Source:               string(t.Source),
		Mode:                 string(t.Mode),
		TradeRef:             t.TradeRef,
		Notes:                t.Notes,
		Cluster:              string(cj),
		CreatedMs:            t.CreatedAt.UnixMilli(),
	}, nil
}

func (r tradeRow) trade() (Trade, error) {
	var cluster []string
	if r.Cluster != "" {
		if err := json.Unmarshal([]byte(r.Cluster), &cluster); err != nil {
			return Trade{}, fmt.Errorf("trade %q: correlation_cluster: %w", r.ID, err)
		}
	}
	if len(cluster) == 0 {
		cluster = nil
	}
	return Trade{
		ID:                   r.ID,
		Timestamp:            time.UnixMilli(r.TsMs).UTC(),
		Asset:                r.Asset,
		Action:               Action(r.Action),
		Quantity:             r.Quantity,
		Price:                r.Price,
		NavBefore:            r.NavBefore,
		NavAfter:             r.NavAfter,
		PositionSizeFraction: r.PositionSizeFraction,
		AIRecommendation:     market.Action(r.AIRecommendation),
		AIConfidence:         r.AIConfidence,
		AIReason:             r.AIReason,
		ModelVersion:         r.ModelVersion,
		Regime:               regime.Regime(r.Regime),
		StopLoss:             floatPtr(r.StopLoss),
		TakeProfit:           floatPtr(r.TakeProfit),
		Source:               Source(r.Source),
		Mode:                 gate.Mode(r.Mode),
		TradeRef:             r.TradeRef,
		Notes:                r.Notes,
		CorrelationCluster:   cluster,
		CreatedAt:            time.UnixMilli(r.CreatedMs).UTC(),
	}, nil
}

// args lists the row values in tradeColumns order.
func (r tradeRow) args() []any {
	return []any{
		r.ID, r.TsMs, r.Asset, r.Action, r.Quantity, r.Price, r.NavBefore, r.NavAfter,
		r.PositionSizeFraction, r.AIRecommendation, r.AIConfidence, r.AIReason, r.ModelVersion,
		r.Regime, r.StopLoss, r.TakeProfit, r.Source, r.Mode, r.TradeRef, r.Notes, r.Cluster, r.CreatedMs,
	}
}

// dest lists scan targets in tradeColumns order.
func (r *tradeRow) dest() []any {
	return []any{
		&r.ID, &r.TsMs, &r.Asset, &r.Action, &r.Quantity, &r.Price, &r.NavBefore, &r.NavAfter,
		&r.PositionSizeFraction, &r.AIRecommendation, &r.AIConfidence, &r.AIReason, &r.ModelVersion,
		&r.Regime, &r.StopLoss, &r.TakeProfit, &r.Source, &r.Mode, &r.TradeRef, &r.Notes, &r.Cluster, &r.CreatedMs,
	}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// dialect abstracts the placeholder style and case-insensitive match.
type dialect struct {
	placeholder func(n int) string
	like        string
}

var (
	sqliteDialect   = dialect{placeholder: func(int) string { return "?" }, like: "LIKE"}
	postgresDialect = dialect{placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }, like: "ILIKE"}
)

func (d dialect) insertSQL() string {
	ph := make([]string, tradeColumnCount)
	for i := range ph {
		ph[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO trades (%s) VALUES (%s)", tradeColumns, strings.Join(ph, ", "))
}

func (d dialect) getSQL() string {
	return fmt.Sprintf("SELECT %s FROM trades WHERE id = %s", tradeColumns, d.placeholder(1))
}

// listSQL renders a filtered, ascending query. A limit selects the most
// recent rows first and re-sorts them.
func (d dialect) listSQL(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(expr string, vals ...any) {
		for _, v := range vals {
			expr = strings.Replace(expr, "?", d.placeholder(len(args)+1), 1)
			args = append(args, v)
		}
		where = append(where, expr)
	}

	if f.Asset != "" {
		add("asset = ?", f.Asset)
	}
	if f.Action != "" {
		add("action "+d.like+" ?", "%"+f.Action+"%")
	}
	if f.Mode != "" {
		add("mode = ?", f.Mode)
	}
	if f.Regime != "" {
		add("regime = ?", f.Regime)
	}
	if f.Source != "" {
		add("source = ?", f.Source)
	}
	if !f.From.IsZero() {
		add("ts_ms >= ?", f.From.UnixMilli())
	}
	if !f.To.IsZero() {
		add("ts_ms <= ?", f.To.UnixMilli())
	}
	if f.Search != "" {
		p := "%" + f.Search + "%"
		add("(asset "+d.like+" ? OR ai_reason "+d.like+" ? OR notes "+d.like+" ?)", p, p, p)
	}

	q := "SELECT " + tradeColumns + " FROM trades"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Limit > 0 {
		q = fmt.Sprintf("SELECT * FROM (%s ORDER BY ts_ms DESC, id DESC LIMIT %d) recent", q, f.Limit)
	}
	return q + " ORDER BY ts_ms ASC, id ASC", args
}
