package tracking

import (
	"math"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/calculate"
	"github.com/Alias1177/volregime/models"
)

// Sample is one timestamped tracker value
type Sample struct {
	At    time.Time
	Value float64
}

func values(samples []Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}

// ATRTrend fits a least-squares slope over the newest th.ATRSlopeWindow ATR-14
// samples, with x measured in minutes since the oldest sample of that window.
func ATRTrend(history []Sample, atr14, atr50 float64, tf models.Timeframe, th config.Thresholds) models.ATRTrend {
	trend := models.ATRTrend{
		ATRRatio:  1.0,
		Direction: models.TrendInsufficientData,
		Samples:   len(history),
	}
	if atr50 > 0 && calculate.IsFinite(atr50) && calculate.IsFinite(atr14) {
		trend.ATRRatio = atr14 / atr50
		trend.IsAboveBaseline = trend.ATRRatio > th.ATRBaselineRatio
	}

	n := th.ATRSlopeWindow
	if len(history) < n {
		return trend
	}
	window := history[len(history)-n:]
	oldest := window[0]

	xs := make([]float64, n)
	for i, s := range window {
		xs[i] = s.At.Sub(oldest.At).Minutes()
	}
	trend.Slope = calculate.Slope(xs, values(window))

	if oldest.Value != 0 && !math.IsNaN(oldest.Value) {
		trend.SlopePct = trend.Slope / oldest.Value * 100
	}
	trend.IsDeclining = trend.Slope < 0 && trend.SlopePct <= -th.ATRDeclinePct

	// flatness is judged per bar so the cutoff means the same on every timeframe
	perBar := trend.SlopePct
	if step := tf.Duration(); step > 0 {
		perBar *= step.Minutes()
	}
	switch {
	case math.Abs(perBar) < th.ATRFlatPct:
		trend.Direction = models.TrendFlat
	case trend.Slope > 0:
		trend.Direction = models.TrendUp
	default:
		trend.Direction = models.TrendDown
	}
	return trend
}

// WickVariance compares the variance of the newest th.WickWindow ratios
// against the same-size window shifted back by one sample.
func WickVariance(history []Sample, th config.Thresholds) models.WickVariance {
	vals := values(history)
	w := th.WickWindow
	n := len(vals)

	cur := vals[max(0, n-w):]
	res := models.WickVariance{
		Current: calculate.Variance(cur),
		Samples: len(cur),
	}
	if n >= 2 {
		res.Previous = calculate.Variance(vals[max(0, n-1-w) : n-1])
	}
	res.ChangePct = calculate.PctChange(res.Previous, res.Current)
	res.Sufficient = len(cur) >= th.WickMinSamples
	res.IsIncreasing = res.Sufficient && res.ChangePct > th.WickIncreasePct
	return res
}

// BBWidthTrend ranks the newest width within the tracked window
func BBWidthTrend(history []Sample, th config.Thresholds) models.BBWidthTrend {
	res := models.BBWidthTrend{
		Percentile: 50,
		WidthRatio: 1.0,
		Direction:  models.TrendInsufficientData,
		Samples:    len(history),
	}
	if len(history) == 0 {
		return res
	}
	vals := values(history)
	if len(vals) > th.BBWidthWindow {
		vals = vals[len(vals)-th.BBWidthWindow:]
	}
	cur := vals[len(vals)-1]
	res.Width = cur
	res.Samples = len(vals)
	if len(vals) < 2 {
		return res
	}

	res.Percentile = calculate.PercentileRank(vals, cur)
	res.IsNarrow = res.Percentile < th.BBNarrowPercentile
	if mean := calculate.Mean(vals); mean > 0 {
		res.WidthRatio = cur / mean
	}

	xs := make([]float64, len(vals))
	for i := range xs {
		xs[i] = float64(i)
	}
	slope := calculate.Slope(xs, vals)
	mean := calculate.Mean(vals)
	switch {
	case mean == 0 || math.Abs(slope/mean*100) < th.ATRFlatPct:
		res.Direction = models.TrendFlat
	case slope > 0:
		res.Direction = models.TrendUp
	default:
		res.Direction = models.TrendDown
	}
	return res
}

// IntrabarVolatility compares the mean range/body ratio of the newest
// th.IntrabarWindow bars with the window one bar earlier.
func IntrabarVolatility(history []Sample, th config.Thresholds) models.IntrabarVolatility {
	vals := values(history)
	w := th.IntrabarWindow
	n := len(vals)

	res := models.IntrabarVolatility{Samples: n}
	if n == 0 {
		return res
	}
	res.Current = calculate.Mean(vals[max(0, n-w):])
	if n < w+1 {
		res.Previous = res.Current
		return res
	}
	res.Previous = calculate.Mean(vals[n-1-w : n-1])
	res.IsRising = calculate.PctChange(res.Previous, res.Current) > th.IntrabarRisePct
	return res
}
