package indicators

import "math"

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation (divide by n).
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	v := 0.0
	for _, x := range xs {
		d := x - m
		v += d * d
	}
	return math.Sqrt(v / float64(len(xs)))
}

// Returns computes simple returns r[i] = (p[i]-p[i-1])/p[i-1].
// A zero previous price yields a zero return.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (prices[i]-prev)/prev)
	}
	return out
}

// Tail returns the last n values (all of them when n exceeds the length).
func Tail(xs []float64, n int) []float64 {
	if n >= len(xs) {
		return xs
	}
	if n <= 0 {
		return nil
	}
	return xs[len(xs)-n:]
}
