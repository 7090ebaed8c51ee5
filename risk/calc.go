package risk

import "math"

// RR is the reward to risk ratio of a planned trade, or 0 when the stop
// sits at the entry.
func RR(entry, stop, takeProfit float64) float64 {
	loss := math.Abs(entry - stop)
	if loss == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / loss
}

// NextNAV books a simulated fill: a buy moves cash out of NAV, a sell moves
// it back in.
func NextNAV(nav, fraction float64, side Side) float64 {
	amount := nav * fraction
	if side == Short {
		return nav + amount
	}
	return nav - amount
}
