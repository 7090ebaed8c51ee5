package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/tradegate/cooldown"
	"github.com/rustyeddy/tradegate/gate"
	"github.com/rustyeddy/tradegate/indicators"
	"github.com/rustyeddy/tradegate/intent"
	"github.com/rustyeddy/tradegate/journal"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/notify"
	"github.com/rustyeddy/tradegate/regime"
	"github.com/rustyeddy/tradegate/risk"
)

const (
	ReasonInsufficient = "insufficient price data"
	ReasonZeroSize     = "position size is zero"
	ReasonNoPrice      = "no price available"
)

// Result describes one evaluation or manual execution.
type Result struct {
	Asset          string                `json:"asset"`
	Recommendation market.Recommendation `json:"recommendation"`
	Regime         regime.Snapshot       `json:"regime"`
	Risk           risk.Snapshot         `json:"risk"`
	Decision       gate.Decision         `json:"decision"`
	Verdict        gate.Verdict          `json:"verdict"`
	Executed       bool                  `json:"executed"`
	Reason         string                `json:"reason"`
	Fraction       float64               `json:"fraction"`
	Trade          *journal.Trade        `json:"trade,omitempty"`
	Cooldown       *cooldown.Status      `json:"cooldown,omitempty"`
}

func (e *Engine) observe(stage string, start time.Time) {
	e.metrics.RecordDuration(stage, time.Since(start).Seconds())
}

// RefreshPrice fetches and caches the latest quote for symbol.
func (e *Engine) RefreshPrice(ctx context.Context, symbol string) (market.Quote, error) {
	defer e.observe("quote", time.Now())

	asset, err := market.LookupAsset(symbol)
	if err != nil {
		return market.Quote{}, err
	}
	q, err := e.prices.Quote(ctx, asset)
	if err != nil {
		e.metrics.RecordError("quote")
		return market.Quote{}, err
	}
	if q.Time.IsZero() {
		q.Time = e.clock.Now()
	}
	e.quotes.Set(q)
	return q, nil
}

// Classify fetches the price window for symbol and caches its regime
// snapshot. A provider failure yields an insufficient snapshot rather than
// an error.
func (e *Engine) Classify(ctx context.Context, symbol string) (regime.Snapshot, []market.PriceSample, error) {
	defer e.observe("classify", time.Now())

	asset, err := market.LookupAsset(symbol)
	if err != nil {
		return regime.Snapshot{}, nil, err
	}

	samples, err := e.prices.History(ctx, asset, e.opts.HistoryLimit)
	if err != nil {
		e.metrics.RecordError("prices")
		e.logger.Warn().Err(err).Str("asset", symbol).Msg("price history unavailable")
		samples = nil
	}

	snap := e.classifier.Classify(samples)
	e.setState(asset.Symbol, func(st *assetState) {
		st.samples = samples
		st.snap = snap
	})
	e.metrics.RecordRegime(asset.Symbol, string(snap.Regime), snap.Volatility)
	return snap, samples, nil
}

// Evaluate runs one automatic cycle for symbol: classify, ask the advisor,
// then under the asset lock compute risk, decide, size, journal, publish
// and start the cooldown. Any failure before the journal write leaves no
// trade behind.
func (e *Engine) Evaluate(ctx context.Context, symbol string) (Result, error) {
	defer e.observe("evaluate", time.Now())

	snap, samples, err := e.Classify(ctx, symbol)
	if err != nil {
		return Result{}, err
	}
	asset, _ := market.LookupAsset(symbol)
	res := Result{Asset: asset.Symbol, Regime: snap}

	if !snap.Sufficient {
		res.Reason = ReasonInsufficient
		e.metrics.RecordDecision(asset.Symbol, string(e.gate.Settings().Get().Mode), false, res.Reason)
		return res, nil
	}

	rec, err := e.advisor.Recommend(ctx, asset, samples)
	if err != nil {
		e.metrics.RecordError("advisor")
		return res, fmt.Errorf("advisor: %w", err)
	}
	if rec.Asset == "" {
		rec.Asset = asset.Symbol
	}
	res.Recommendation = rec
	e.setState(asset.Symbol, func(st *assetState) { st.rec = &rec })

	unlock, err := e.locks.lock(ctx, asset.Symbol)
	if err != nil {
		return res, err
	}
	defer unlock()

	rs, err := e.Risk(ctx)
	if err != nil {
		e.metrics.RecordError("journal")
		return res, err
	}
	res.Risk = rs

	d := e.gate.Decide(ctx, rec, snap, asset.Symbol)
	res.Decision = d
	res.Reason = d.Reason
	e.metrics.RecordDecision(asset.Symbol, string(d.Mode), d.Execute, d.Reason)
	if !d.Execute {
		e.logger.Debug().Str("asset", asset.Symbol).Str("reason", d.Reason).Msg("not executing")
		return res, nil
	}

	res.Verdict = gate.AllowAny(snap, rs, d.Settings, false)
	if !res.Verdict.Allowed {
		res.Reason = res.Verdict.Reason()
		for _, v := range res.Verdict.Violations {
			e.metrics.RecordBlocked(asset.Symbol, v.Code)
		}
		e.logger.Warn().Str("asset", asset.Symbol).Str("reason", res.Reason).Msg("trade blocked")
		e.notifyf(ctx, notify.FormatHalt(asset.Symbol, res.Reason))
		return res, nil
	}

	if rec.Action == market.Hold {
		res.Reason = gate.ReasonHold
		return res, nil
	}

	fraction := risk.PositionSize(risk.Sizing{
		BaseRiskFraction: e.riskPolicy.BaseRiskFraction,
		Confidence:       rec.Confidence,
		TargetVolatility: e.riskPolicy.TargetVolatility,
		AssetVolatility:  snap.Volatility,
		MaxRiskPerTrade:  d.Settings.MaxRiskPerTrade,
	}, e.riskPolicy.VolatilityEpsilon)
	res.Fraction = fraction
	if fraction <= 0 {
		res.Reason = ReasonZeroSize
		return res, nil
	}

	price, ok := e.lastPrice(asset.Symbol)
	if !ok {
		res.Reason = ReasonNoPrice
		return res, nil
	}

	now := e.clock.Now()
	tr := journal.Trade{
		Timestamp:            now,
		Asset:                asset.Symbol,
		Action:               journal.ActionFor(rec.Action, true),
		Price:                price,
		PositionSizeFraction: fraction,
		AIRecommendation:     rec.Action,
		AIConfidence:         rec.Confidence,
		AIReason:             rec.Reasoning,
		ModelVersion:         e.modelVersion(rec),
		Regime:               snap.Regime,
		Source:               journal.SourceAI,
		Mode:                 d.Mode,
		TradeRef:             fmt.Sprintf("auto-%d", now.UnixMilli()),
		Notes:                fmt.Sprintf("Automatic execution: %.0f%% confidence", rec.Confidence),
		CorrelationCluster:   []string{asset.Symbol},
	}
	e.applyStops(&tr, market.Closes(samples), d.Settings)

	recorded, err := e.record(ctx, tr)
	if err != nil {
		e.metrics.RecordError("journal")
		return res, err
	}
	res.Trade = &recorded
	res.Executed = true
	e.metrics.RecordExecution(asset.Symbol, string(d.Mode), string(recorded.Action))

	e.publish(ctx, recorded)

	st, err := e.gate.StartCooldown(ctx, asset.Symbol, d.Settings)
	if err != nil {
		e.metrics.RecordError("cooldown")
		return res, fmt.Errorf("trade %s journaled but cooldown not set: %w", recorded.ID, err)
	}
	res.Cooldown = &st

	e.logger.Info().
		Str("asset", asset.Symbol).
		Str("action", string(recorded.Action)).
		Str("mode", string(d.Mode)).
		Float64("fraction", fraction).
		Float64("nav", recorded.NavAfter).
		Msg("executed")
	e.notifyf(ctx, notify.FormatTrade(recorded))
	return res, nil
}

// ExecuteManual books an operator-confirmed trade at the fixed manual
// fraction. It still passes AllowAny unless override is set, and it does
// not start a cooldown.
func (e *Engine) ExecuteManual(ctx context.Context, symbol string, action market.Action, override bool) (Result, error) {
	defer e.observe("manual", time.Now())

	asset, err := market.LookupAsset(symbol)
	if err != nil {
		return Result{}, err
	}
	if action != market.Buy && action != market.Sell {
		return Result{}, fmt.Errorf("manual trades must BUY or SELL, got %q", action)
	}
	snap, err := e.Snapshot(asset.Symbol)
	if err != nil {
		return Result{}, err
	}
	rec, _ := e.Recommendation(asset.Symbol)

	unlock, err := e.locks.lock(ctx, asset.Symbol)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	s := e.gate.Settings().Get()
	res := Result{Asset: asset.Symbol, Regime: snap, Recommendation: rec, Fraction: s.ManualFraction}

	rs, err := e.Risk(ctx)
	if err != nil {
		return res, err
	}
	res.Risk = rs

	res.Verdict = gate.AllowAny(snap, rs, s, override)
	if !res.Verdict.Allowed {
		res.Reason = res.Verdict.Reason()
		for _, v := range res.Verdict.Violations {
			e.metrics.RecordBlocked(asset.Symbol, v.Code)
		}
		return res, fmt.Errorf("%w: %s", ErrBlocked, res.Reason)
	}

	price, ok := e.lastPrice(asset.Symbol)
	if !ok {
		return res, errors.New(ReasonNoPrice)
	}

	now := e.clock.Now()
	tr := journal.Trade{
		Timestamp:            now,
		Asset:                asset.Symbol,
		Action:               journal.ActionFor(action, false),
		Price:                price,
		PositionSizeFraction: s.ManualFraction,
		AIRecommendation:     rec.Action,
		AIConfidence:         rec.Confidence,
		AIReason:             rec.Reasoning,
		ModelVersion:         e.modelVersion(rec),
		Regime:               snap.Regime,
		Source:               journal.SourceManual,
		Mode:                 s.Mode,
		TradeRef:             fmt.Sprintf("manual-%d", now.UnixMilli()),
		Notes:                "Manual execution by user",
		CorrelationCluster:   []string{asset.Symbol},
	}
	if override {
		tr.Notes += " (risk override)"
	}
	e.mu.RLock()
	closes := market.Closes(e.state[asset.Symbol].samples)
	e.mu.RUnlock()
	e.applyStops(&tr, closes, s)

	recorded, err := e.record(ctx, tr)
	if err != nil {
		e.metrics.RecordError("journal")
		return res, err
	}
	res.Trade = &recorded
	res.Executed = true
	res.Reason = "manual execution"
	e.metrics.RecordExecution(asset.Symbol, string(s.Mode), string(recorded.Action))

	e.publish(ctx, recorded)
	e.notifyf(ctx, notify.FormatTrade(recorded))
	return res, nil
}

// record sizes tr against the NAV book, journals it, and commits the new
// NAV only when the journal write succeeds.
func (e *Engine) record(ctx context.Context, tr journal.Trade) (journal.Trade, error) {
	var recorded journal.Trade
	err := e.book.apply(func(nav float64) (float64, error) {
		side := risk.SideOf(tr.Action.Direction())
		tr.NavBefore = nav
		tr.NavAfter = risk.NextNAV(nav, tr.PositionSizeFraction, side)
		tr.Quantity = risk.Units(nav, tr.PositionSizeFraction, tr.Price)

		var err error
		recorded, err = e.store.Record(ctx, tr)
		if err != nil {
			return nav, fmt.Errorf("journal trade: %w", err)
		}
		return tr.NavAfter, nil
	})
	return recorded, err
}

// applyStops fills the ATR stop and target the settings ask for. A window
// too short for the ATR leaves both unset.
func (e *Engine) applyStops(tr *journal.Trade, closes []float64, s gate.Settings) {
	if !s.EnableStopLoss && !s.EnableTakeProfit {
		return
	}
	atr, err := indicators.ATRFunc(closes, e.riskPolicy.ATRPeriod)
	if err != nil || atr <= 0 {
		return
	}
	lv, err := risk.StopLevels(tr.Price, atr, risk.SideOf(tr.Action.Direction()), risk.StopParams{
		Multiplier:  e.riskPolicy.StopMultiplier,
		RewardRatio: e.riskPolicy.RewardRatio,
	})
	if err != nil {
		return
	}
	if s.EnableStopLoss {
		tr.StopLoss = &lv.StopLoss
	}
	if s.EnableTakeProfit {
		tr.TakeProfit = &lv.TakeProfit
	}
}

func (e *Engine) modelVersion(rec market.Recommendation) string {
	if rec.Model != "" && rec.Model != "noop" {
		return rec.Model
	}
	return e.opts.ModelVersion
}

func (e *Engine) publish(ctx context.Context, t journal.Trade) {
	in := intent.Intent{
		TradeID:    t.ID,
		Asset:      t.Asset,
		Action:     string(t.Action),
		Side:       risk.SideOf(t.Action.Direction()).String(),
		Quantity:   t.Quantity,
		Price:      t.Price,
		Fraction:   t.PositionSizeFraction,
		StopLoss:   t.StopLoss,
		TakeProfit: t.TakeProfit,
		Mode:       string(t.Mode),
		Source:     string(t.Source),
		Paper:      t.Mode == gate.Paper,
		Time:       t.Timestamp,
	}
	if t.StopLoss != nil && t.TakeProfit != nil {
		in.RewardRisk = risk.RR(t.Price, *t.StopLoss, *t.TakeProfit)
	}
	if err := e.publisher.Publish(ctx, in); err != nil {
		e.metrics.RecordError("publish")
		e.logger.Error().Err(err).Str("trade", t.ID).Msg("intent not published")
	}
}

func (e *Engine) notifyf(ctx context.Context, text string) {
	if err := e.notifier.Notify(ctx, text); err != nil {
		e.logger.Warn().Err(err).Msg("notification failed")
	}
}
