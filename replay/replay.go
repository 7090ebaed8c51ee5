// Package replay drives the engine through a recorded price file on a
// simulated clock, with optional scripted events.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/tradegate/engine"
	"github.com/rustyeddy/tradegate/gate"
	"github.com/rustyeddy/tradegate/journal"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/pkg/clock"
)

// Options controls how a replay behaves.
type Options struct {
	Asset string
	// Evaluate every N rows. Zero evaluates only on EVAL events.
	EvalEvery int
}

// Report summarizes a finished replay.
type Report struct {
	Rows        int             `json:"rows"`
	Evaluations int             `json:"evaluations"`
	Executed    int             `json:"executed"`
	Errors      int             `json:"errors"`
	Reasons     map[string]int  `json:"reasons"`
	FinalNAV    float64         `json:"final_nav"`
	Trades      []journal.Trade `json:"trades"`
}

// Session owns the collaborators an engine must be built with for a replay:
// the simulated clock, the growing price feed and the scripted advisor.
type Session struct {
	Clock   *clock.Fake
	Feed    *Feed
	Advisor *Scripted
}

func NewSession(start time.Time) *Session {
	c := clock.NewFake(start)
	return &Session{Clock: c, Feed: &Feed{}, Advisor: &Scripted{clock: c}}
}

// Run replays rows into e, which must have been built from s.
//
// CSV format (header optional, volume may be empty):
//
//	time,price,volume,event,arg1,arg2,arg3
//
// Events (case-insensitive):
//
//	ADVISE:         arg1=BUY|SELL|HOLD  arg2=confidence  arg3=reasoning
//	MODE:           arg1=mode
//	CLEAR_COOLDOWN
//	MANUAL:         arg1=BUY|SELL  arg2=override (optional)
//	EVAL:           evaluate on this row
//
// Each row moves the clock and the feed first, then applies the event, then
// evaluates when due.
func (s *Session) Run(ctx context.Context, e *engine.Engine, rows io.Reader, opts Options) (Report, error) {
	asset, err := market.LookupAsset(opts.Asset)
	if err != nil {
		return Report{}, err
	}
	opts.Asset = asset.Symbol

	r := csv.NewReader(rows)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rep := Report{Reasons: map[string]int{}}
	line := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rep, err
		}
		line++
		if len(row) == 0 || (line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "time")) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.step(ctx, e, row, opts, &rep); err != nil {
			return rep, fmt.Errorf("line %d: %w", line, err)
		}
	}

	rep.FinalNAV = e.NAV()
	trades, err := e.Store().List(ctx, journal.Filter{Asset: opts.Asset})
	if err != nil {
		return rep, err
	}
	rep.Trades = trades
	return rep, nil
}

func (s *Session) step(ctx context.Context, e *engine.Engine, row []string, opts Options, rep *Report) error {
	sample, event, args, err := parseRow(row)
	if err != nil {
		return err
	}
	rep.Rows++

	s.Clock.Set(sample.Time)
	s.Feed.append(opts.Asset, sample)
	if _, err := e.RefreshPrice(ctx, opts.Asset); err != nil {
		return err
	}

	eval := opts.EvalEvery > 0 && rep.Rows%opts.EvalEvery == 0
	switch strings.ToUpper(event) {
	case "":
	case "ADVISE":
		if err := s.Advisor.script(args); err != nil {
			return fmt.Errorf("ADVISE: %w", err)
		}
	case "MODE":
		if len(args) < 1 {
			return fmt.Errorf("MODE: need arg1=mode")
		}
		m, err := gate.ParseMode(args[0])
		if err != nil {
			return fmt.Errorf("MODE: %w", err)
		}
		if _, err := e.Gate().Settings().Update(gate.Patch{Mode: &m}); err != nil {
			return fmt.Errorf("MODE: %w", err)
		}
	case "CLEAR_COOLDOWN":
		if err := e.Gate().Cooldowns().Clear(ctx, opts.Asset); err != nil {
			return fmt.Errorf("CLEAR_COOLDOWN: %w", err)
		}
	case "MANUAL":
		if len(args) < 1 {
			return fmt.Errorf("MANUAL: need arg1=BUY|SELL")
		}
		action, err := market.ParseAction(args[0])
		if err != nil {
			return fmt.Errorf("MANUAL: %w", err)
		}
		override := len(args) > 1 && strings.EqualFold(args[1], "override")
		if _, _, err := e.Classify(ctx, opts.Asset); err != nil {
			return fmt.Errorf("MANUAL: %w", err)
		}
		res, err := e.ExecuteManual(ctx, opts.Asset, action, override)
		switch {
		case errors.Is(err, engine.ErrBlocked):
			rep.Reasons[res.Reason]++
		case err != nil:
			return fmt.Errorf("MANUAL: %w", err)
		default:
			rep.Executed++
		}
	case "EVAL":
		eval = true
	default:
		return fmt.Errorf("unknown event %q", event)
	}

	if !eval {
		return nil
	}
	rep.Evaluations++
	res, err := e.Evaluate(ctx, opts.Asset)
	if err != nil {
		rep.Errors++
		return nil
	}
	rep.Reasons[res.Reason]++
	if res.Executed {
		rep.Executed++
	}
	return nil
}

func parseRow(row []string) (market.PriceSample, string, []string, error) {
	if len(row) < 2 {
		return market.PriceSample{}, "", nil, fmt.Errorf("bad row (need at least time,price): %v", row)
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(row[0]))
	if err != nil {
		return market.PriceSample{}, "", nil, fmt.Errorf("bad time %q: %w", row[0], err)
	}
	if t.Before(time.Unix(0, 0)) {
		return market.PriceSample{}, "", nil, fmt.Errorf("bad time %q: before 1970", row[0])
	}
	px, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
	if err != nil {
		return market.PriceSample{}, "", nil, fmt.Errorf("bad price %q: %w", row[1], err)
	}
	s := market.PriceSample{Time: t.UTC(), Price: px}
	if len(row) > 2 && strings.TrimSpace(row[2]) != "" {
		if s.Volume, err = strconv.ParseFloat(strings.TrimSpace(row[2]), 64); err != nil {
			return market.PriceSample{}, "", nil, fmt.Errorf("bad volume %q: %w", row[2], err)
		}
	}

	event := ""
	var args []string
	if len(row) > 3 {
		event = strings.TrimSpace(row[3])
	}
	if len(row) > 4 {
		for _, a := range row[4:] {
			args = append(args, strings.TrimSpace(a))
		}
	}
	return s, event, args, nil
}

// Feed is a PriceSource that only knows the rows replayed so far.
type Feed struct {
	mu      sync.Mutex
	samples map[string][]market.PriceSample
}

func (f *Feed) append(symbol string, s market.PriceSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.samples == nil {
		f.samples = map[string][]market.PriceSample{}
	}
	f.samples[symbol] = append(f.samples[symbol], s)
}

func (f *Feed) History(ctx context.Context, asset market.Asset, limit int) ([]market.PriceSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.samples[asset.Symbol]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]market.PriceSample(nil), all...), nil
}

func (f *Feed) Quote(ctx context.Context, asset market.Asset) (market.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.samples[asset.Symbol]
	if len(all) == 0 {
		return market.Quote{}, fmt.Errorf("no replayed prices for %s", asset.Symbol)
	}
	last := all[len(all)-1]
	q := market.Quote{Symbol: asset.Symbol, Price: last.Price, Time: last.Time}
	if len(all) > 1 {
		prev := all[len(all)-2].Price
		q.Change24h = last.Price - prev
		if prev != 0 {
			q.ChangePercent = 100 * q.Change24h / prev
		}
	}
	return q, nil
}

// Scripted answers with the last ADVISE event, HOLD until the first one.
type Scripted struct {
	mu    sync.Mutex
	clock clock.Clock
	rec   market.Recommendation
}

func (s *Scripted) script(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("need arg1=action")
	}
	action, err := market.ParseAction(args[0])
	if err != nil {
		return err
	}
	rec := market.Recommendation{Action: action, Confidence: 100, Reasoning: "scripted", Model: "replay"}
	if len(args) > 1 && args[1] != "" {
		if rec.Confidence, err = strconv.ParseFloat(args[1], 64); err != nil {
			return fmt.Errorf("bad confidence %q: %w", args[1], err)
		}
	}
	if len(args) > 2 && args[2] != "" {
		rec.Reasoning = args[2]
	}
	s.mu.Lock()
	s.rec = rec
	s.mu.Unlock()
	return nil
}

func (s *Scripted) Recommend(ctx context.Context, asset market.Asset, prices []market.PriceSample) (market.Recommendation, error) {
	s.mu.Lock()
	rec := s.rec
	s.mu.Unlock()
	if rec.Action == "" {
		rec = market.Recommendation{Action: market.Hold, Reasoning: "no advice scripted", Model: "replay"}
	}
	rec.Asset = asset.Symbol
	rec.Time = s.clock.Now()
	return rec, nil
}
