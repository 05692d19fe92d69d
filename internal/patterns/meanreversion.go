package patterns

import (
	"math"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/calculate"
	"github.com/Alias1177/volregime/models"
)

// DetectMeanReversion derives VWAP and the long EMA from the window and flags
// price that keeps touching and crossing them inside an ATR-scaled band.
func DetectMeanReversion(candles []models.Candle, atr float64, th config.Thresholds) models.MeanReversionPattern {
	var result models.MeanReversionPattern
	if len(candles) < 5 {
		return result
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	result.EMA200 = calculate.EMA(closes, th.EMAPeriod)

	window := candles
	if len(window) > th.MeanReversionLookback {
		window = window[len(window)-th.MeanReversionLookback:]
	}
	result.VWAP = calculate.VWAP(window)

	if atr <= 0 || !calculate.IsFinite(atr) {
		ranges := make([]float64, len(window))
		for i, c := range window {
			ranges[i] = c.Range()
		}
		atr = calculate.Mean(ranges)
	}
	result.Band = atr * th.MeanReversionBandATR
	if result.Band <= 0 {
		return result
	}

	above, below := 0, 0
	prevSide := 0
	for _, c := range window {
		if touches(c, result.VWAP, result.Band) || touches(c, result.EMA200, result.Band) {
			result.TouchCount++
		}

		side := sign(c.Close - result.VWAP)
		switch side {
		case 1:
			above++
		case -1:
			below++
		default:
			continue
		}
		if prevSide != 0 && side != prevSide {
			result.Crossings++
		}
		prevSide = side
	}

	result.Detected = above > 0 && below > 0 &&
		result.TouchCount >= th.MeanReversionMinTouches &&
		result.Crossings >= th.MeanReversionMinCrossings

	crossScore := math.Min(float64(result.Crossings)/float64(2*th.MeanReversionMinCrossings), 1.0)
	touchScore := float64(result.TouchCount) / float64(len(window))
	result.ReversionStrength = math.Max(0, math.Min(0.5*crossScore+0.5*touchScore, 1.0))

	return result
}

// touches reports whether the bar's range reaches within band of level
func touches(c models.Candle, level, band float64) bool {
	return c.Low <= level+band && c.High >= level-band
}
