package scoring

import "math"

// Result is the scored outcome of an attempt.
type Result struct {
	IQ         int `json:"iqScore"`
	Percentile int `json:"percentile"`
}

// Band maps a minimum percent-correct to an IQ value.
type Band struct {
	MinPercent int
	IQ         int
}

// bands is the percentage to IQ step table, highest first.
var bands = []Band{
	{96, 145},
	{92, 140},
	{86, 135},
	{80, 130},
	{74, 125},
	{68, 120},
	{62, 115},
	{54, 110},
	{40, 100},
	{32, 95},
	{24, 90},
	{16, 85},
	{8, 80},
	{0, 75},
}

const (
	MinIQ         = 75
	MaxIQ         = 145
	minPercentile = 1
	maxPercentile = 99
)

// Bands returns a copy of the step table.
func Bands() []Band { return append([]Band(nil), bands...) }

// Score maps correct/total to an IQ estimate and percentile. It is
// deterministic. total <= 0 scores as zero out of one; correct is clamped
// into [0,total].
func Score(correct, total int) Result {
	if total <= 0 {
		correct, total = 0, 1
	}
	if correct < 0 {
		correct = 0
	}
	if correct > total {
		correct = total
	}
	iq := bandIQ(correct, total)
	if correct == 0 {
		return Result{IQ: iq, Percentile: minPercentile}
	}
	return Result{IQ: iq, Percentile: Percentile(iq)}
}

// bandIQ compares in integer percent space so 24/25 lands exactly on 96.
func bandIQ(correct, total int) int {
	for _, b := range bands {
		if correct*100 >= b.MinPercent*total {
			return b.IQ
		}
	}
	return MinIQ
}

// Percentile ranks iq on a normal(100, 15) curve, clamped to [1,99].
func Percentile(iq int) int {
	z := float64(iq-100) / 15
	p := int(math.Round(normalCDF(z) * 100))
	if p < minPercentile {
		return minPercentile
	}
	if p > maxPercentile {
		return maxPercentile
	}
	return p
}

// normalCDF is the closed-form approximation
// 0.5 * (1 + sign(z) * sqrt(1 - exp(-2z²/π))).
func normalCDF(z float64) float64 {
	sign := 1.0
	if z < 0 {
		sign = -1
	}
	return 0.5 * (1 + sign*math.Sqrt(1-math.Exp(-2*z*z/math.Pi)))
}

// Classify returns the descriptive label for iq.
func Classify(iq int) string {
	switch {
	case iq >= 130:
		return "Very Superior"
	case iq >= 120:
		return "Superior"
	case iq >= 110:
		return "High Average"
	case iq >= 90:
		return "Average"
	case iq >= 80:
		return "Low Average"
	default:
		return "Below Average"
	}
}
