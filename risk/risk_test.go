package risk

import (
	"math"
	"testing"

	"github.com/rustyeddy/tradegate/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateEmptyHistory(t *testing.T) {
	t.Parallel()

	s := Calculate(nil, 10000, DefaultPolicy())
	assert.Equal(t, 0.0, s.PortfolioDrawdown)
	assert.Equal(t, 0.0, s.CurrentVolatility)
	assert.Equal(t, 0.0, s.CorrelationRisk)
	assert.False(t, s.PauseTrading)
	assert.Equal(t, 0.02, s.TargetVolatility)
	assert.Equal(t, 0.00001, s.MaxDrawdownThreshold)
}

func TestCalculateUnchangedNAV(t *testing.T) {
	t.Parallel()

	trades := []TradeOutcome{
		{Asset: "BTCUSDT", NavBefore: 10000, NavAfter: 9800},
		{Asset: "BTCUSDT", NavBefore: 9800, NavAfter: 10000},
	}
	s := Calculate(trades, 10000, DefaultPolicy())
	assert.Equal(t, 0.0, s.PortfolioDrawdown)
	assert.False(t, s.PauseTrading)
}

func TestCalculateDrawdownPercentScale(t *testing.T) {
	t.Parallel()

	trades := []TradeOutcome{{Asset: "ETHUSDT", NavBefore: 10000, NavAfter: 9500}}
	s := Calculate(trades, 9500, DefaultPolicy())
	assert.InDelta(t, 5.0, s.PortfolioDrawdown, 1e-9)
	assert.InDelta(t, -0.05, s.NAVReturn(), 1e-12)
	assert.True(t, s.PauseTrading)

	// A gain is a negative drawdown and never pauses.
	s = Calculate(trades, 10100, DefaultPolicy())
	assert.InDelta(t, -1.0, s.PortfolioDrawdown, 1e-9)
	assert.False(t, s.PauseTrading)
}

func TestCalculateTinyDrawdownTripsStockThreshold(t *testing.T) {
	t.Parallel()

	trades := []TradeOutcome{{Asset: "AAPL", NavBefore: 10000, NavAfter: 9999.99}}

	// 0.0001% drawdown is above the stock 0.00001 threshold.
	s := Calculate(trades, 9999.99, DefaultPolicy())
	assert.True(t, s.PauseTrading)

	p := DefaultPolicy()
	p.MaxDrawdownThreshold = 10
	s = Calculate(trades, 9999.99, p)
	assert.False(t, s.PauseTrading)
}

func TestCalculateRecentWindow(t *testing.T) {
	t.Parallel()

	var trades []TradeOutcome
	// twelve trades; the first two are outside the window of ten
	for i := 0; i < 2; i++ {
		trades = append(trades, TradeOutcome{Asset: "AAPL", NavBefore: 100, NavAfter: 150})
	}
	for i := 0; i < 10; i++ {
		asset := "BTCUSDT"
		if i >= 7 {
			asset = "ETHUSDT"
		}
		after := 101.0
		if i%2 == 1 {
			after = 99.0
		}
		trades = append(trades, TradeOutcome{Asset: asset, NavBefore: 100, NavAfter: after})
	}

	s := Calculate(trades, 100, DefaultPolicy())
	assert.InDelta(t, 0.7, s.CorrelationRisk, 1e-12)
	// returns alternate +/-1%
	assert.InDelta(t, 0.01, s.CurrentVolatility, 1e-12)
	assert.Equal(t, 12, s.Trades)
}

func TestCalculateSingleTradeHasNoVolatility(t *testing.T) {
	t.Parallel()

	s := Calculate([]TradeOutcome{{Asset: "AAPL", NavBefore: 100, NavAfter: 120}}, 120, DefaultPolicy())
	assert.Equal(t, 0.0, s.CurrentVolatility)
	assert.Equal(t, 1.0, s.CorrelationRisk)
}

func TestPositionSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Sizing
		want float64
	}{
		{
			name: "unclamped",
			in:   Sizing{BaseRiskFraction: 0.02, Confidence: 80, TargetVolatility: 0.02, AssetVolatility: 0.01, MaxRiskPerTrade: 0.05},
			want: 0.032,
		},
		{
			name: "clamped to max risk",
			in:   Sizing{BaseRiskFraction: 0.02, Confidence: 100, TargetVolatility: 0.02, AssetVolatility: 0.001, MaxRiskPerTrade: 0.05},
			want: 0.05,
		},
		{
			name: "zero volatility uses epsilon",
			in:   Sizing{BaseRiskFraction: 0.02, Confidence: 50, TargetVolatility: 0.00002, AssetVolatility: 0, MaxRiskPerTrade: 1},
			want: 0.02 * 0.5 * 0.02,
		},
		{
			name: "max risk above one clamps to one",
			in:   Sizing{BaseRiskFraction: 1, Confidence: 100, TargetVolatility: 1, AssetVolatility: 0.01, MaxRiskPerTrade: 5},
			want: 1,
		},
		{
			name: "negative confidence floors at zero",
			in:   Sizing{BaseRiskFraction: 0.02, Confidence: -10, TargetVolatility: 0.02, AssetVolatility: 0.02, MaxRiskPerTrade: 0.05},
			want: 0,
		},
		{
			name: "non-finite input",
			in:   Sizing{BaseRiskFraction: 0.02, Confidence: math.NaN(), TargetVolatility: 0.02, AssetVolatility: 0.02, MaxRiskPerTrade: 0.05},
			want: 0,
		},
		{
			name: "infinite volatility",
			in:   Sizing{BaseRiskFraction: 0.02, Confidence: 90, TargetVolatility: 0.02, AssetVolatility: math.Inf(1), MaxRiskPerTrade: 0.05},
			want: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, PositionSize(tt.in, 0.001), 1e-12)
		})
	}
}

func TestPositionSizeBounds(t *testing.T) {
	t.Parallel()

	for _, conf := range []float64{0, 10, 55, 100} {
		for _, vol := range []float64{0, 0.0005, 0.01, 0.2, 3} {
			for _, maxRisk := range []float64{0, 0.01, 0.05, 0.5, 2} {
				got := PositionSize(Sizing{
					BaseRiskFraction: 0.02,
					Confidence:       conf,
					TargetVolatility: 0.02,
					AssetVolatility:  vol,
					MaxRiskPerTrade:  maxRisk,
				}, 0.001)
				assert.GreaterOrEqual(t, got, 0.0)
				assert.LessOrEqual(t, got, math.Min(maxRisk, 1))
			}
		}
	}
}

func TestStopLevels(t *testing.T) {
	t.Parallel()

	long, err := StopLevels(100, 1.5, Long, StopParams{})
	require.NoError(t, err)
	assert.InDelta(t, 97, long.StopLoss, 1e-12)
	assert.InDelta(t, 106, long.TakeProfit, 1e-12)
	assert.InDelta(t, 3, long.RiskAmount, 1e-12)
	assert.InDelta(t, 2, RR(100, long.StopLoss, long.TakeProfit), 1e-12)

	short, err := StopLevels(100, 1.5, Short, StopParams{Multiplier: 1, RewardRatio: 3})
	require.NoError(t, err)
	assert.InDelta(t, 101.5, short.StopLoss, 1e-12)
	assert.InDelta(t, 95.5, short.TakeProfit, 1e-12)

	_, err = StopLevels(math.NaN(), 1, Long, StopParams{})
	assert.ErrorIs(t, err, ErrNonFinite)
	_, err = StopLevels(100, math.Inf(1), Short, StopParams{})
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestSideOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Long, SideOf(market.Buy))
	assert.Equal(t, Short, SideOf(market.Sell))
	assert.Equal(t, "short", Short.String())
}

func TestNextNAVAndUnits(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 9800, NextNAV(10000, 0.02, Long), 1e-9)
	assert.InDelta(t, 10200, NextNAV(10000, 0.02, Short), 1e-9)
	assert.InDelta(t, 0.5, Units(10000, 0.01, 200), 1e-12)
	assert.Equal(t, 0.0, Units(10000, 0.01, 0))
	assert.Equal(t, 0.0, RR(1, 1, 2))
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.TargetVolatility = 0
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.BaseRiskFraction = 2
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.MaxDrawdownThreshold = -1
	assert.Error(t, p.Validate())

	for _, mutate := range []func(*Policy){
		func(p *Policy) { p.MaxDrawdownThreshold = math.NaN() },
		func(p *Policy) { p.MaxDrawdownThreshold = math.Inf(1) },
		func(p *Policy) { p.TargetVolatility = math.NaN() },
		func(p *Policy) { p.StopMultiplier = math.Inf(1) },
	} {
		p := DefaultPolicy()
		mutate(&p)
		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be finite")
	}
}

func TestCalculateNaNThresholdPauses(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	p.MaxDrawdownThreshold = math.NaN()
	rs := Calculate(nil, 10000, p)
	assert.True(t, rs.PauseTrading)
}
