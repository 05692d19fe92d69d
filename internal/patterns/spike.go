package patterns

import (
	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/calculate"
	"github.com/Alias1177/volregime/models"
)

// DetectVolatilitySpike compares the current ATR-14 with the median ATR of the
// preceding bars. The spike is temporary while it sits inside a session
// transition window and started no earlier than that window opened.
func DetectVolatilitySpike(snap *models.TimeframeSnapshot, session models.SessionTransition, th config.Thresholds) models.VolatilitySpike {
	var result models.VolatilitySpike
	if snap == nil || len(snap.Candles) < 2 {
		return result
	}

	series := snap.ATRSeries
	if len(series) != len(snap.Candles) {
		series = calculate.ATRSeries(snap.Candles, 14)
	}
	if len(series) == 0 {
		return result
	}

	current := snap.Indicators.ATR14
	if current <= 0 || !calculate.IsFinite(current) {
		current = series[len(series)-1]
	}
	result.CurrentATR = current

	// baseline from the bars before the current one, warm-up zeros skipped
	prior := series[:len(series)-1]
	if len(prior) > th.SpikeBaselineBars {
		prior = prior[len(prior)-th.SpikeBaselineBars:]
	}
	baseline := make([]float64, 0, len(prior))
	for _, v := range prior {
		if v > 0 && calculate.IsFinite(v) {
			baseline = append(baseline, v)
		}
	}
	if len(baseline) < 3 || current <= 0 || !calculate.IsFinite(current) {
		return result
	}
	result.BaselineATR = calculate.Median(baseline)
	if result.BaselineATR <= 0 {
		return result
	}
	result.Ratio = current / result.BaselineATR
	result.IsSpike = result.Ratio >= th.SpikeRatio
	if !result.IsSpike {
		return result
	}

	// walk back while earlier bars were already spiking
	start := len(snap.Candles) - 1
	result.SpikeBars = 1
	for i := len(series) - 2; i >= 0; i-- {
		if series[i] <= 0 || series[i]/result.BaselineATR < th.SpikeRatio {
			break
		}
		start = i
		result.SpikeBars++
	}
	result.SpikeStarted = snap.Candles[start].Timestamp
	result.Duration = snap.BarTime().Sub(result.SpikeStarted) + snap.Timeframe.Duration()

	if session.InWindow {
		opened := session.Boundary.Add(-th.TransitionWindow)
		result.IsTemporary = !result.SpikeStarted.Before(opened)
	}
	return result
}
