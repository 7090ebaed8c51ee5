package indicators

import (
	"fmt"
	"math"
)

// ATRFunc calculates a Wilder-smoothed average true range over a close-only
// series, where the true range of a step is |close - previous close|.
// Returns an error if there aren't enough prices for the period.
func ATRFunc(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("period must be positive, got %d", period)
	}
	if len(closes) < period+1 {
		return 0, fmt.Errorf("not enough prices: need %d, got %d", period+1, len(closes))
	}

	a := NewATR(period)
	for _, c := range closes {
		a.Update(c)
	}
	return a.Value(), nil
}

// ATR is a streaming average true range.
type ATR struct {
	period    int
	atr       float64
	count     int
	warmupSum float64
	prev      float64
	hasPrev   bool
}

// NewATR creates a new Average True Range indicator with the given period.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR(%d)", a.period)
}

// Warmup is period+1 because the first range needs a previous close.
func (a *ATR) Warmup() int {
	return a.period + 1
}

func (a *ATR) Reset() {
	a.atr = 0
	a.count = 0
	a.warmupSum = 0
	a.hasPrev = false
}

func (a *ATR) Update(price float64) {
	if !a.hasPrev {
		a.prev = price
		a.hasPrev = true
		return
	}

	tr := math.Abs(price - a.prev)
	if a.count < a.period {
		a.warmupSum += tr
		a.count++
		if a.count == a.period {
			a.atr = a.warmupSum / float64(a.period)
		}
	} else {
		a.atr = (a.atr*float64(a.period-1) + tr) / float64(a.period)
	}
	a.prev = price
}

func (a *ATR) Ready() bool {
	return a.period > 0 && a.count >= a.period
}

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return 0
	}
	return a.atr
}
