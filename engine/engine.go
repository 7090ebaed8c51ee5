// Package engine runs the decide -> size -> journal -> publish -> cooldown
// cycle for each asset.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/tradegate/advisor"
	"github.com/rustyeddy/tradegate/gate"
	"github.com/rustyeddy/tradegate/intent"
	"github.com/rustyeddy/tradegate/journal"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/metrics"
	"github.com/rustyeddy/tradegate/notify"
	"github.com/rustyeddy/tradegate/pkg/clock"
	"github.com/rustyeddy/tradegate/provider"
	"github.com/rustyeddy/tradegate/regime"
	"github.com/rustyeddy/tradegate/risk"
)

var (
	ErrNoSnapshot = errors.New("no regime snapshot for asset yet")
	ErrBlocked    = errors.New("trade blocked by risk controls")
)

// Options are the engine's own knobs.
type Options struct {
	StartingNAV  float64 `json:"starting_nav" yaml:"starting_nav" default:"10000"`
	HistoryLimit int     `json:"history_limit" yaml:"history_limit" default:"50"`
	ModelVersion string  `json:"model_version" yaml:"model_version" default:"v2.3-ensemble-2025"`
}

// Deps are the collaborators the engine drives. Publisher, Notifier and
// Metrics are optional.
type Deps struct {
	Classifier *regime.Classifier
	RiskPolicy risk.Policy
	Gate       *gate.Gate
	Prices     provider.PriceSource
	Advisor    advisor.Advisor
	Store      journal.Store
	Publisher  intent.Publisher
	Notifier   notify.Notifier
	Metrics    *metrics.Recorder
	Clock      clock.Clock
	Logger     zerolog.Logger
}

type Engine struct {
	classifier *regime.Classifier
	riskPolicy risk.Policy
	gate       *gate.Gate
	prices     provider.PriceSource
	advisor    advisor.Advisor
	store      journal.Store
	publisher  intent.Publisher
	notifier   notify.Notifier
	metrics    *metrics.Recorder
	clock      clock.Clock
	logger     zerolog.Logger

	opts   Options
	locks  *assetLocks
	book   *navBook
	quotes *market.QuoteStore

	mu    sync.RWMutex
	state map[string]assetState
}

// assetState is the latest evaluation input cached per asset.
type assetState struct {
	samples []market.PriceSample
	snap    regime.Snapshot
	rec     *market.Recommendation
}

func New(d Deps, opts Options) (*Engine, error) {
	switch {
	case d.Classifier == nil:
		return nil, fmt.Errorf("engine: classifier is required")
	case d.Gate == nil:
		return nil, fmt.Errorf("engine: gate is required")
	case d.Prices == nil:
		return nil, fmt.Errorf("engine: price source is required")
	case d.Advisor == nil:
		return nil, fmt.Errorf("engine: advisor is required")
	case d.Store == nil:
		return nil, fmt.Errorf("engine: journal store is required")
	}
	if err := d.RiskPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Publisher == nil {
		d.Publisher = intent.NewLog(d.Logger)
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLog(d.Logger)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New("tradegate")
	}
	if opts.StartingNAV <= 0 {
		opts.StartingNAV = 10000
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.ModelVersion == "" {
		opts.ModelVersion = advisor.ModelVersion
	}

	return &Engine{
		classifier: d.Classifier,
		riskPolicy: d.RiskPolicy,
		gate:       d.Gate,
		prices:     d.Prices,
		advisor:    d.Advisor,
		store:      d.Store,
		publisher:  d.Publisher,
		notifier:   d.Notifier,
		metrics:    d.Metrics,
		clock:      d.Clock,
		logger:     d.Logger.With().Str("component", "engine").Logger(),
		opts:       opts,
		locks:      newAssetLocks(),
		book:       newNAVBook(opts.StartingNAV),
		quotes:     market.NewQuoteStore(),
		state:      make(map[string]assetState),
	}, nil
}

// Restore resumes the NAV from the last journaled trade.
func (e *Engine) Restore(ctx context.Context) error {
	trades, err := e.store.List(ctx, journal.Filter{Limit: 1})
	if err != nil {
		return fmt.Errorf("restore nav: %w", err)
	}
	if len(trades) > 0 {
		e.book.set(trades[0].NavAfter)
		e.logger.Info().Float64("nav", trades[0].NavAfter).Msg("nav restored from journal")
	}
	return nil
}

func (e *Engine) Gate() *gate.Gate           { return e.gate }
func (e *Engine) Store() journal.Store       { return e.store }
func (e *Engine) Metrics() *metrics.Recorder { return e.metrics }
func (e *Engine) Quotes() *market.QuoteStore { return e.quotes }
func (e *Engine) NAV() float64               { return e.book.get() }
func (e *Engine) RiskPolicy() risk.Policy    { return e.riskPolicy }
func (e *Engine) Clock() clock.Clock         { return e.clock }

// Snapshot returns the last regime snapshot computed for symbol.
func (e *Engine) Snapshot(symbol string) (regime.Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.state[symbol]
	if !ok {
		return regime.Snapshot{}, ErrNoSnapshot
	}
	return st.snap, nil
}

// Recommendation returns the last advisor answer for symbol, if any.
func (e *Engine) Recommendation(symbol string) (market.Recommendation, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.state[symbol]
	if !ok || st.rec == nil {
		return market.Recommendation{}, false
	}
	return *st.rec, true
}

// Risk computes the portfolio risk snapshot from the whole journal.
func (e *Engine) Risk(ctx context.Context) (risk.Snapshot, error) {
	trades, err := e.store.List(ctx, journal.Filter{})
	if err != nil {
		return risk.Snapshot{}, fmt.Errorf("loading trades: %w", err)
	}
	rs := risk.Calculate(journal.Outcomes(trades), e.book.get(), e.riskPolicy)
	e.metrics.RecordDrawdown(rs.PortfolioDrawdown)
	return rs, nil
}

func (e *Engine) setState(symbol string, fn func(*assetState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state[symbol]
	fn(&st)
	e.state[symbol] = st
}

func (e *Engine) lastPrice(symbol string) (float64, bool) {
	if q, err := e.quotes.Get(symbol); err == nil && q.Price > 0 {
		return q.Price, true
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if s, ok := market.Last(e.state[symbol].samples); ok && s.Price > 0 {
		return s.Price, true
	}
	return 0, false
}
