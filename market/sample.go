package market

import (
	"math"
	"time"
)

// PriceSample is one observation of an asset price. Volume is zero when the
// source does not report it.
type PriceSample struct {
	Time   time.Time `json:"time"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume,omitempty"`
}

// Quote is the latest ticker for an asset.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change24h     float64   `json:"change_24h"`
	ChangePercent float64   `json:"change_percent"`
	Time          time.Time `json:"time"`
}

// Closes extracts the price series from samples.
func Closes(samples []PriceSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Price
	}
	return out
}

// Valid reports whether every sample has a finite, positive price.
func Valid(samples []PriceSample) bool {
	for _, s := range samples {
		if math.IsNaN(s.Price) || math.IsInf(s.Price, 0) || s.Price <= 0 {
			return false
		}
	}
	return true
}

// Last returns the most recent sample, or false when there is none.
func Last(samples []PriceSample) (PriceSample, bool) {
	if len(samples) == 0 {
		return PriceSample{}, false
	}
	return samples[len(samples)-1], true
}
