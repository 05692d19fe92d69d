package regime

import "math"

// Confidence maps strength (0-1) and timeframe completeness to a 0-100 score.
// A zero-strength call on full data still scores 40, and missing timeframes
// scale the score down proportionally.
func Confidence(strength float64, available, expected int) float64 {
	if available <= 0 || expected <= 0 {
		return 0
	}
	completeness := min(float64(available)/float64(expected), 1)
	score := (40 + 60*clamp01(strength)) * completeness
	score = math.Max(0, math.Min(100, score))
	return math.Round(score*10) / 10
}
