package patterns

import (
	"math"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/calculate"
	"github.com/Alias1177/volregime/models"
)

// DetectWhipsaw counts direction reversals over the last lookback+1 closes and
// checks that price oscillates around its own mean instead of trending.
func DetectWhipsaw(candles []models.Candle, th config.Thresholds) models.WhipsawResult {
	n := th.WhipsawLookback + 1
	if len(candles) < n {
		return models.WhipsawResult{}
	}

	closes := make([]float64, n)
	for i, c := range candles[len(candles)-n:] {
		closes[i] = c.Close
	}

	var result models.WhipsawResult

	// Count direction changes, flat steps keep the previous direction
	prevDirection := 0
	var path float64
	for i := 1; i < n; i++ {
		diff := closes[i] - closes[i-1]
		path += math.Abs(diff)

		direction := sign(diff)
		if direction == 0 {
			continue
		}
		if prevDirection != 0 && direction != prevDirection {
			result.Reversals++
		}
		prevDirection = direction
	}

	mean := calculate.Mean(closes)
	prevSide := 0
	for _, c := range closes {
		side := sign(c - mean)
		if side == 0 {
			continue
		}
		if prevSide != 0 && side != prevSide {
			result.MeanCrossings++
		}
		prevSide = side
	}

	if path > 0 {
		result.Efficiency = math.Abs(closes[n-1]-closes[0]) / path
	}
	result.Oscillating = path > 0 &&
		result.MeanCrossings >= th.WhipsawMinMeanCrossings &&
		result.Efficiency < th.WhipsawMaxEfficiency
	result.IsWhipsaw = result.Reversals >= th.WhipsawMinReversals && result.Oscillating

	return result
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
