package regime

import (
	"math"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/models"
)

// Frame is the per-timeframe input to the composite
type Frame struct {
	Timeframe  models.Timeframe
	Indicators models.IndicatorSet
	BBWidth    models.BBWidthTrend
}

// Composite blends per-timeframe indicators with the configured weights,
// renormalized over the frames that are present.
func Composite(frames []Frame, tf config.TimeframeConfig) models.CompositeIndicators {
	result := models.CompositeIndicators{ATRRatio: 1.0, BBWidthRatio: 1.0, Timeframes: len(frames)}
	if len(frames) == 0 {
		return result
	}

	weights := make([]float64, len(frames))
	var total float64
	for i, f := range frames {
		weights[i] = tf.Weight(f.Timeframe)
		total += weights[i]
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(len(frames))
	}

	var atr, bb, adx, volWeight, volYes float64
	for i, f := range frames {
		w := weights[i] / total
		atr += w * f.Indicators.ATRRatio()

		ratio := f.BBWidth.WidthRatio
		if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
			ratio = 1.0
		}
		bb += w * ratio
		// an unusable ADX counts as no trend
		if v := f.Indicators.ADX; v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			adx += w * v
		}

		if f.Indicators.VolumeConfirmed != nil {
			volWeight += w
			if *f.Indicators.VolumeConfirmed {
				volYes += w
			}
		}
	}

	result.ATRRatio = atr
	result.BBWidthRatio = bb
	result.ADX = adx
	result.VolumeConfirmed = volWeight > 0 && volYes/volWeight >= 0.5
	return result
}
