package indicators

import "fmt"

// EMA is a streaming exponential moving average seeded with the first price.
type EMA struct {
	n     int
	alpha float64

	seen  int
	value float64
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		panic("EMA period must be > 0")
	}
	return &EMA{
		n:     period,
		alpha: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string   { return fmt.Sprintf("EMA(%d)", e.n) }
func (e *EMA) Warmup() int    { return e.n }
func (e *EMA) Ready() bool    { return e.seen >= e.n }
func (e *EMA) Value() float64 { return e.value }

func (e *EMA) Reset() {
	e.seen = 0
	e.value = 0
}

func (e *EMA) Update(price float64) {
	e.seen++
	if e.seen == 1 {
		e.value = price
		return
	}
	e.value = e.alpha*price + (1.0-e.alpha)*e.value
}
