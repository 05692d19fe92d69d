package calculate

import (
	"github.com/Alias1177/volregime/models"
	"github.com/markcheno/go-talib"
)

// Periods holds indicator lookbacks used when deriving missing indicators.
// The analyzer replaces VolumeMultiple with the symbol's volume_confirm_multiple.
type Periods struct {
	ATRShort       int
	ATRLong        int
	BBPeriod       int
	BBStdDev       float64
	ADXPeriod      int
	VolumeAvg      int
	VolumeMultiple float64
}

// DefaultPeriods returns ATR 14/50, BB(20, 2), ADX 14 and a 20-bar volume average
func DefaultPeriods() Periods {
	return Periods{
		ATRShort:       14,
		ATRLong:        50,
		BBPeriod:       20,
		BBStdDev:       2.0,
		ADXPeriod:      14,
		VolumeAvg:      20,
		VolumeMultiple: 1.2,
	}
}

// Series splits candles into the parallel slices talib expects
func Series(candles []models.Candle) (highs, lows, closes, volumes []float64) {
	highs = make([]float64, len(candles))
	lows = make([]float64, len(candles))
	closes = make([]float64, len(candles))
	volumes = make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	return highs, lows, closes, volumes
}

// ATRSeries returns ATR values aligned with candles, zero during warm-up.
// Returns nil when the window is too short for the period.
func ATRSeries(candles []models.Candle, period int) []float64 {
	if period < 1 || len(candles) < period+2 {
		return nil
	}
	highs, lows, closes, _ := Series(candles)
	return talib.Atr(highs, lows, closes, period)
}

// ATR returns the latest ATR value, or 0 if it cannot be computed
func ATR(candles []models.Candle, period int) float64 {
	return lastOf(ATRSeries(candles, period))
}

// ADX returns the latest ADX, +DI and -DI
func ADX(candles []models.Candle, period int) (float64, float64, float64) {
	if period < 2 || len(candles) < 2*period+1 {
		return 0, 0, 0
	}
	highs, lows, closes, _ := Series(candles)

	adx := talib.Adx(highs, lows, closes, period)
	plusDI := talib.PlusDI(highs, lows, closes, period)
	minusDI := talib.MinusDI(highs, lows, closes, period)

	return lastOf(adx), lastOf(plusDI), lastOf(minusDI)
}

// BollingerBands returns upper, middle and lower bands for the latest close
func BollingerBands(candles []models.Candle, period int, stdDev float64) (float64, float64, float64) {
	if len(candles) == 0 {
		return 0, 0, 0
	}
	if period < 2 || len(candles) < period {
		last := candles[len(candles)-1].Close
		return last, last, last // Return last close if not enough data
	}
	_, _, closes, _ := Series(candles)
	upper, middle, lower := talib.BBands(closes, period, stdDev, stdDev, talib.SMA)
	return lastOf(upper), lastOf(middle), lastOf(lower)
}

// EMA returns the latest EMA. With fewer bars than the period the
// longest available period is used instead.
func EMA(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if period > len(values) {
		period = len(values)
	}
	if period < 2 {
		return values[len(values)-1]
	}
	return lastOf(talib.Ema(values, period))
}

// VolumeConfirmed reports whether the last bar's volume is at least multiple x
// the average of the preceding `avg` bars. ok is false when volume is absent.
func VolumeConfirmed(candles []models.Candle, avg int, multiple float64) (confirmed bool, ok bool) {
	if len(candles) < 2 || !candles[len(candles)-1].HasVolume {
		return false, false
	}
	prior := candles[:len(candles)-1]
	if avg > 0 && len(prior) > avg {
		prior = prior[len(prior)-avg:]
	}
	vols := make([]float64, 0, len(prior))
	for _, c := range prior {
		if c.HasVolume {
			vols = append(vols, c.Volume)
		}
	}
	if len(vols) == 0 {
		return false, false
	}
	mean := Mean(vols)
	if mean <= 0 {
		return false, false
	}
	return candles[len(candles)-1].Volume >= mean*multiple, true
}

// Enrich fills indicators the caller did not supply from the candle window.
// Supplied finite values always win; zero, NaN and infinite ones are derived.
func Enrich(candles []models.Candle, in models.IndicatorSet, p Periods) models.IndicatorSet {
	out := in
	if len(candles) == 0 {
		return scrub(out)
	}

	if missing(out.ATR14) {
		out.ATR14 = ATR(candles, p.ATRShort)
	}
	if missing(out.ATR50) {
		out.ATR50 = 0
		period := p.ATRLong
		// fall back to the longest period the window allows
		if len(candles) < period+2 {
			period = len(candles) - 2
		}
		if period > p.ATRShort {
			out.ATR50 = ATR(candles, period)
		}
	}
	if (missing(out.BBUpper) && missing(out.BBMiddle) && missing(out.BBLower)) ||
		!IsFinite(out.BBUpper) || !IsFinite(out.BBMiddle) || !IsFinite(out.BBLower) {
		out.BBUpper, out.BBMiddle, out.BBLower = BollingerBands(candles, p.BBPeriod, p.BBStdDev)
	}
	if missing(out.ADX) {
		adx, plusDI, minusDI := ADX(candles, p.ADXPeriod)
		out.ADX = adx
		if missing(out.PlusDI) {
			out.PlusDI = plusDI
		}
		if missing(out.MinusDI) {
			out.MinusDI = minusDI
		}
	}

	last := candles[len(candles)-1]
	if missing(out.Volume) {
		out.Volume = 0
		if last.HasVolume {
			out.Volume = last.Volume
		}
	}
	if out.VolumeConfirmed == nil {
		if confirmed, ok := VolumeConfirmed(candles, p.VolumeAvg, p.VolumeMultiple); ok {
			out.VolumeConfirmed = &confirmed
		}
	}

	return scrub(out)
}

func missing(v float64) bool {
	return v == 0 || !IsFinite(v)
}

// scrub zeroes whatever is still not finite so nothing downstream sees NaN
func scrub(s models.IndicatorSet) models.IndicatorSet {
	for _, v := range []*float64{&s.ATR14, &s.ATR50, &s.BBUpper, &s.BBMiddle, &s.BBLower, &s.ADX, &s.PlusDI, &s.MinusDI, &s.Volume} {
		if !IsFinite(*v) {
			*v = 0
		}
	}
	return s
}

func lastOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	v := values[len(values)-1]
	if !IsFinite(v) {
		return 0
	}
	return v
}

// BBWidthSeries returns (upper-lower)/middle per bar aligned with candles, zero during warm-up
func BBWidthSeries(candles []models.Candle, period int, stdDev float64) []float64 {
	if period < 2 || len(candles) < period {
		return nil
	}
	_, _, closes, _ := Series(candles)
	upper, middle, lower := talib.BBands(closes, period, stdDev, stdDev, talib.SMA)

	widths := make([]float64, len(closes))
	for i := period - 1; i < len(closes); i++ {
		if middle[i] != 0 {
			widths[i] = (upper[i] - lower[i]) / middle[i]
		}
	}
	return widths
}
