package gate

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rustyeddy/tradegate/cooldown"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/pkg/clock"
	"github.com/rustyeddy/tradegate/regime"
	"github.com/rustyeddy/tradegate/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 9, 1, 14, 0, 0, 0, time.UTC)

type brokenRegistry struct{}

func (brokenRegistry) Set(context.Context, string, time.Duration) (cooldown.Status, error) {
	return cooldown.Status{}, errors.New("down")
}
func (brokenRegistry) Status(context.Context, string) (cooldown.Status, error) {
	return cooldown.Status{}, errors.New("down")
}
func (brokenRegistry) Clear(context.Context, string) error { return errors.New("down") }

func newTestGate(t *testing.T, mode Mode) (*Gate, *clock.Fake) {
	t.Helper()

	s := DefaultSettings()
	s.Mode = mode
	store, err := NewSettingsStore(s)
	require.NoError(t, err)

	fc := clock.NewFake(t0)
	return New(store, cooldown.NewMemory(fc)), fc
}

func rec(action market.Action, confidence float64) market.Recommendation {
	return market.Recommendation{Asset: "BTCUSDT", Action: action, Confidence: confidence}
}

var (
	tradable = regime.Snapshot{Regime: regime.Bullish, AllowTrading: true, Sufficient: true}
	halted   = regime.Snapshot{Regime: regime.Bearish, AllowTrading: false, Sufficient: true}
)

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    Mode
		rec     market.Recommendation
		snap    regime.Snapshot
		execute bool
		reason  string
	}{
		{"manual never executes", Manual, rec(market.Buy, 99), tradable, false, ReasonManual},
		{"assisted never executes", Assisted, rec(market.Sell, 99), tradable, false, ReasonAssisted},
		{"paper ignores regime", Paper, rec(market.Buy, 10), halted, true, ReasonPaper},
		{"autopilot low confidence", Autopilot, rec(market.Buy, 65), tradable, false, ReasonLowConfidence},
		{"autopilot halted regime", Autopilot, rec(market.Buy, 90), halted, false, ReasonRegime},
		{"autopilot hold", Autopilot, rec(market.Hold, 90), tradable, false, ReasonHold},
		{"autopilot approved", Autopilot, rec(market.Buy, 70), tradable, true, ReasonApproved},
		{"hybrid approved", Hybrid, rec(market.Sell, 85), tradable, true, ReasonApproved},
		{"hybrid confidence checked before regime", Hybrid, rec(market.Sell, 5), halted, false, ReasonLowConfidence},
		{"autopilot NaN confidence", Autopilot, rec(market.Buy, math.NaN()), tradable, false, ReasonLowConfidence},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g, _ := newTestGate(t, tt.mode)
			d := g.Decide(context.Background(), tt.rec, tt.snap, "BTCUSDT")
			assert.Equal(t, tt.execute, d.Execute)
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.mode, d.Mode)
		})
	}
}

func TestDecideManualAndAssistedNeverExecute(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{Manual, Assisted} {
		g, _ := newTestGate(t, mode)
		for _, conf := range []float64{0, 50, 70, 100} {
			for _, snap := range []regime.Snapshot{tradable, halted} {
				for _, a := range []market.Action{market.Buy, market.Sell, market.Hold} {
					d := g.Decide(context.Background(), rec(a, conf), snap, "ETHUSDT")
					assert.False(t, d.Execute)
				}
			}
		}
	}
}

func TestDecideCooldownFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g, fc := newTestGate(t, Paper)

	_, err := g.StartCooldown(ctx, "BTCUSDT", g.Settings().Get())
	require.NoError(t, err)

	d := g.Decide(ctx, rec(market.Buy, 100), tradable, "BTCUSDT")
	assert.False(t, d.Execute)
	assert.Equal(t, ReasonCooldown, d.Reason)

	// other assets are unaffected
	d = g.Decide(ctx, rec(market.Buy, 100), tradable, "ETHUSDT")
	assert.True(t, d.Execute)

	fc.Advance(5*time.Minute + time.Millisecond)
	d = g.Decide(ctx, rec(market.Buy, 100), tradable, "BTCUSDT")
	assert.True(t, d.Execute)
}

func TestDecideCooldownUnavailableFailsClosed(t *testing.T) {
	t.Parallel()

	store, err := NewSettingsStore(DefaultSettings())
	require.NoError(t, err)
	_, err = store.Update(Patch{Mode: ptr(Paper)})
	require.NoError(t, err)

	g := New(store, brokenRegistry{})
	d := g.Decide(context.Background(), rec(market.Buy, 100), tradable, "AAPL")
	assert.False(t, d.Execute)
	assert.Equal(t, ReasonCooldownUnavailable, d.Reason)
}

func TestDecideSeesSettingsUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g, _ := newTestGate(t, Manual)

	d := g.Decide(ctx, rec(market.Buy, 90), tradable, "AAPL")
	assert.False(t, d.Execute)

	_, err := g.Settings().Update(Patch{Mode: ptr(Autopilot)})
	require.NoError(t, err)

	d = g.Decide(ctx, rec(market.Buy, 90), tradable, "AAPL")
	assert.True(t, d.Execute)
	assert.Equal(t, Autopilot, d.Settings.Mode)
}

func TestAllowAny(t *testing.T) {
	t.Parallel()

	calm := risk.Snapshot{PortfolioDrawdown: 0, MaxDrawdownThreshold: 0.00001}
	down := risk.Snapshot{PortfolioDrawdown: 2, MaxDrawdownThreshold: 0.00001, PauseTrading: true}
	crash := regime.Snapshot{Regime: regime.CrashImminent}
	neutral := regime.Snapshot{Regime: regime.Neutral, AllowTrading: true}

	tests := []struct {
		name     string
		snap     regime.Snapshot
		rs       risk.Snapshot
		override bool
		allowed  bool
		codes    []string
	}{
		{"calm neutral", neutral, calm, false, true, nil},
		{"drawdown blocks", neutral, down, false, false, []string{"DRAWDOWN_LIMIT"}},
		{"regime blocks", crash, calm, false, false, []string{"REGIME_HALT"}},
		{"both block", crash, down, false, false, []string{"DRAWDOWN_LIMIT", "REGIME_HALT"}},
		{"override allows", crash, down, true, true, nil},
		{"pause flag alone blocks", neutral, risk.Snapshot{MaxDrawdownThreshold: 10, PauseTrading: true}, false, false, []string{"RISK_PAUSE"}},
		{
			"decline limit with corrected threshold",
			neutral,
			risk.Snapshot{PortfolioDrawdown: 6, MaxDrawdownThreshold: 10},
			false, false, []string{"DECLINE_LIMIT"},
		},
		{"NaN drawdown blocks", neutral, risk.Snapshot{PortfolioDrawdown: math.NaN(), MaxDrawdownThreshold: 10}, false, false, []string{"DRAWDOWN_LIMIT"}},
		{"NaN threshold blocks", neutral, risk.Snapshot{MaxDrawdownThreshold: math.NaN()}, false, false, []string{"DRAWDOWN_LIMIT"}},
		{
			"small decline under corrected threshold",
			neutral,
			risk.Snapshot{PortfolioDrawdown: 3, MaxDrawdownThreshold: 10},
			false, true, nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			v := AllowAny(tt.snap, tt.rs, DefaultSettings(), tt.override)
			assert.Equal(t, tt.allowed, v.Allowed)
			var codes []string
			for _, vi := range v.Violations {
				codes = append(codes, vi.Code)
			}
			assert.Equal(t, tt.codes, codes)
			if tt.allowed {
				assert.Equal(t, "allowed", v.Reason())
			} else {
				assert.NotEqual(t, "allowed", v.Reason())
			}
		})
	}
}

func TestAllowAnyDeclineDisabled(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.PauseOnDecline = false
	v := AllowAny(regime.Snapshot{Regime: regime.Neutral}, risk.Snapshot{PortfolioDrawdown: 6, MaxDrawdownThreshold: 10}, s, false)
	assert.True(t, v.Allowed)
}

func TestSettingsStoreUpdate(t *testing.T) {
	t.Parallel()

	store, err := NewSettingsStore(DefaultSettings())
	require.NoError(t, err)

	got, err := store.Update(Patch{ConfidenceThreshold: ptr(80.0), CooldownPeriod: ptr(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.ConfidenceThreshold)
	assert.Equal(t, time.Minute, store.Get().CooldownPeriod)
	assert.Equal(t, Manual, store.Get().Mode)

	_, err = store.Update(Patch{MaxRiskPerTrade: ptr(3.0)})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, 0.02, store.Get().MaxRiskPerTrade)

	_, err = store.Update(Patch{Mode: ptr(Mode("YOLO"))})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	_, err = NewSettingsStore(Settings{})
	assert.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Settings)
		errMsg string
	}{
		{"defaults", func(*Settings) {}, ""},
		{"zero cooldown", func(s *Settings) { s.CooldownPeriod = 0 }, ""},
		{"negative cooldown", func(s *Settings) { s.CooldownPeriod = -time.Second }, "cooldown_period"},
		{"NaN confidence threshold", func(s *Settings) { s.ConfidenceThreshold = math.NaN() }, "confidence_threshold must be finite"},
		{"NaN max risk", func(s *Settings) { s.MaxRiskPerTrade = math.NaN() }, "max_risk_per_trade must be finite"},
		{"infinite decline threshold", func(s *Settings) { s.DeclineThreshold = math.Inf(-1) }, "decline_threshold must be finite"},
		{"NaN manual fraction", func(s *Settings) { s.ManualFraction = math.NaN() }, "manual_fraction must be finite"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidSettings)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSettingsStoreRejectsNaNThreshold(t *testing.T) {
	t.Parallel()

	g, _ := newTestGate(t, Autopilot)
	_, err := g.Settings().Update(Patch{ConfidenceThreshold: ptr(math.NaN())})
	assert.ErrorIs(t, err, ErrInvalidSettings)

	d := g.Decide(context.Background(), rec(market.Buy, 1), tradable, "BTCUSDT")
	assert.False(t, d.Execute)
	assert.Equal(t, ReasonLowConfidence, d.Reason)
}

func TestStartCooldownZeroPeriod(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	g, _ := newTestGate(t, Autopilot)

	s, err := g.Settings().Update(Patch{CooldownPeriod: ptr(time.Duration(0))})
	require.NoError(t, err)

	st, err := g.StartCooldown(ctx, "BTCUSDT", s)
	require.NoError(t, err)
	assert.False(t, st.InCooldown)

	d := g.Decide(ctx, rec(market.Buy, 90), tradable, "BTCUSDT")
	assert.True(t, d.Execute, d.Reason)

	s, err = g.Settings().Update(Patch{CooldownPeriod: ptr(time.Minute)})
	require.NoError(t, err)
	st, err = g.StartCooldown(ctx, "BTCUSDT", s)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, st.Remaining)
}

func TestSettingsStoreConcurrentUpdates(t *testing.T) {
	t.Parallel()

	store, err := NewSettingsStore(DefaultSettings())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			m := Modes()[i%len(Modes())]
			_, _ = store.Update(Patch{Mode: &m})
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Get().Validate())
		}()
	}
	wg.Wait()
}

func TestModes(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("autopilot")
	require.NoError(t, err)
	assert.Equal(t, Autopilot, m)
	assert.Equal(t, "Autopilot - AI executes automatically", m.Description())
	assert.True(t, m.Automatic())
	assert.False(t, Assisted.Automatic())

	_, err = ParseMode("turbo")
	assert.Error(t, err)
	assert.Len(t, Modes(), 5)
}

func ptr[T any](v T) *T { return &v }
