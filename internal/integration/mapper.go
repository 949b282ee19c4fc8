package integration

import "math"

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// monetary rounds one line total, so per-line rounding matches what the
// receipt shows.
func monetary(qty, unitPrice float64) float64 {
	return round2(qty * unitPrice)
}
