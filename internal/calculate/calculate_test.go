package calculate

import (
	"math"
	"testing"
	"time"

	"github.com/Alias1177/volregime/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generateTestCandles creates a sequence of one-minute test candles
func generateTestCandles(count int, generator func(i int) models.Candle) []models.Candle {
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, count)
	for i := 0; i < count; i++ {
		c := generator(i)
		if c.Timestamp.IsZero() {
			c.Timestamp = start.Add(time.Duration(i) * time.Minute)
		}
		candles[i] = c
	}
	return candles
}

func flatCandle(i int) models.Candle {
	return models.Candle{Open: 100, High: 101, Low: 99, Close: 100, Volume: 100, HasVolume: true}
}

func TestATR(t *testing.T) {
	candles := generateTestCandles(40, flatCandle)

	series := ATRSeries(candles, 14)
	require.Len(t, series, len(candles))
	assert.Zero(t, series[0])
	assert.InDelta(t, 2.0, ATR(candles, 14), 1e-9)

	assert.Nil(t, ATRSeries(candles[:10], 14))
	assert.Zero(t, ATR(candles[:10], 14))
}

func TestADXUptrend(t *testing.T) {
	candles := generateTestCandles(60, func(i int) models.Candle {
		c := 100 + float64(i)
		return models.Candle{Open: c - 0.5, High: c + 0.5, Low: c - 0.5, Close: c}
	})

	adx, plusDI, minusDI := ADX(candles, 14)
	assert.Greater(t, adx, 50.0)
	assert.Greater(t, plusDI, minusDI)

	adx, _, _ = ADX(candles[:20], 14)
	assert.Zero(t, adx, "too short for ADX 14")
}

func TestBollingerBands(t *testing.T) {
	candles := generateTestCandles(30, flatCandle)
	upper, middle, lower := BollingerBands(candles, 20, 2)
	assert.InDelta(t, 100.0, upper, 1e-9)
	assert.InDelta(t, 100.0, middle, 1e-9)
	assert.InDelta(t, 100.0, lower, 1e-9)

	wavy := generateTestCandles(30, func(i int) models.Candle {
		c := 100 + float64(i%2)*2
		return models.Candle{Open: c, High: c + 1, Low: c - 1, Close: c}
	})
	upper, middle, lower = BollingerBands(wavy, 20, 2)
	assert.Greater(t, upper, middle)
	assert.Less(t, lower, middle)

	upper, middle, lower = BollingerBands(candles[:5], 20, 2)
	assert.Equal(t, 100.0, upper)
	assert.Equal(t, upper, middle)
	assert.Equal(t, middle, lower)
}

func TestEMA(t *testing.T) {
	assert.InDelta(t, 3.0, EMA([]float64{1, 2, 3, 4, 5}, 200), 1e-9)
	assert.Equal(t, 7.0, EMA([]float64{7}, 200))
	assert.Zero(t, EMA(nil, 10))

	flat := make([]float64, 250)
	for i := range flat {
		flat[i] = 42
	}
	assert.InDelta(t, 42.0, EMA(flat, 200), 1e-9)
}

func TestVolumeConfirmed(t *testing.T) {
	candles := generateTestCandles(25, flatCandle)
	candles[len(candles)-1].Volume = 300

	confirmed, ok := VolumeConfirmed(candles, 20, 2)
	assert.True(t, ok)
	assert.True(t, confirmed)

	candles[len(candles)-1].Volume = 150
	confirmed, ok = VolumeConfirmed(candles, 20, 2)
	assert.True(t, ok)
	assert.False(t, confirmed)

	candles[len(candles)-1].HasVolume = false
	_, ok = VolumeConfirmed(candles, 20, 2)
	assert.False(t, ok)
}

func TestEnrich(t *testing.T) {
	candles := generateTestCandles(60, flatCandle)

	out := Enrich(candles, models.IndicatorSet{ATR14: 5}, DefaultPeriods())
	assert.Equal(t, 5.0, out.ATR14, "supplied values win")
	assert.InDelta(t, 2.0, out.ATR50, 1e-9)
	assert.InDelta(t, 100.0, out.BBMiddle, 1e-9)
	assert.Equal(t, 100.0, out.Volume)
	require.NotNil(t, out.VolumeConfirmed)
	assert.False(t, *out.VolumeConfirmed)

	// 30 bars cannot fit ATR 50; the longest available period is used
	short := Enrich(candles[:30], models.IndicatorSet{}, DefaultPeriods())
	assert.InDelta(t, 2.0, short.ATR50, 1e-9)
	assert.InDelta(t, 2.0, short.ATR14, 1e-9)

	assert.Equal(t, models.IndicatorSet{}, Enrich(nil, models.IndicatorSet{}, DefaultPeriods()))
}

func TestEnrichNonFinite(t *testing.T) {
	candles := generateTestCandles(60, flatCandle)
	nan, inf := math.NaN(), math.Inf(1)

	out := Enrich(candles, models.IndicatorSet{ATR14: nan, ATR50: inf, ADX: nan, BBMiddle: nan, Volume: inf}, DefaultPeriods())
	assert.InDelta(t, 2.0, out.ATR14, 1e-9, "NaN is derived like a missing value")
	assert.InDelta(t, 2.0, out.ATR50, 1e-9)
	assert.InDelta(t, 100.0, out.BBMiddle, 1e-9)
	assert.Equal(t, 100.0, out.Volume)
	assert.False(t, math.IsNaN(out.ADX))
	assert.InDelta(t, 1.0, out.ATRRatio(), 1e-9)

	// too short to derive anything: non-finite values are zeroed, not kept
	tiny := Enrich(candles[:3], models.IndicatorSet{ATR14: nan, ADX: inf, PlusDI: nan}, DefaultPeriods())
	assert.Zero(t, tiny.ATR14)
	assert.Zero(t, tiny.ADX)
	assert.Zero(t, tiny.PlusDI)
	assert.Equal(t, 1.0, tiny.ATRRatio())

	assert.Equal(t, 1.0, models.IndicatorSet{ATR14: nan, ATR50: 2}.ATRRatio())
	assert.Equal(t, 1.0, models.IndicatorSet{ATR14: 2, ATR50: inf}.ATRRatio())
	assert.Zero(t, models.IndicatorSet{BBUpper: nan, BBMiddle: 1, BBLower: 0}.BBWidth())
}

func TestStats(t *testing.T) {
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.Zero(t, Mean(nil))

	assert.InDelta(t, 2.0/3.0, Variance([]float64{1, 2, 3}), 1e-12)
	assert.Zero(t, Variance([]float64{5}))

	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))

	window := []float64{5, 4, 3, 2, 1}
	assert.Equal(t, 0.0, PercentileRank(window, 1))
	assert.Equal(t, 100.0, PercentileRank(window, 5))
	assert.Equal(t, 50.0, PercentileRank(window, 3))
	assert.Equal(t, 50.0, PercentileRank([]float64{1}, 1))

	assert.InDelta(t, -0.5, Slope([]float64{0, 1, 2, 3}, []float64{4, 3.5, 3, 2.5}), 1e-12)
	assert.Zero(t, Slope([]float64{1, 1}, []float64{1, 2}))

	assert.Equal(t, 50.0, PctChange(2, 3))
	assert.Equal(t, 100.0, PctChange(0, 1))
	assert.Zero(t, PctChange(0, 0))
}

func TestCandleRatios(t *testing.T) {
	hammer := models.Candle{Open: 100, Close: 101, High: 103, Low: 97}
	assert.InDelta(t, 5.0, WickRatio(hammer, 1e-8, 50), 1e-12)
	assert.InDelta(t, 6.0, IntrabarRatio(hammer, 1e-8, 50), 1e-12)

	doji := models.Candle{Open: 100, Close: 100, High: 101, Low: 99}
	assert.Equal(t, 50.0, WickRatio(doji, 1e-8, 50))
	assert.Equal(t, 50.0, IntrabarRatio(doji, 1e-8, 50))

	marubozu := models.Candle{Open: 100, Close: 102, High: 102, Low: 100}
	assert.Zero(t, WickRatio(marubozu, 1e-8, 50))
	assert.False(t, math.IsNaN(IntrabarRatio(models.Candle{}, 1e-8, 50)))
}

func TestVWAP(t *testing.T) {
	candles := []models.Candle{
		{High: 11, Low: 9, Close: 10, Volume: 1, HasVolume: true},
		{High: 21, Low: 19, Close: 20, Volume: 3, HasVolume: true},
	}
	assert.InDelta(t, 17.5, VWAP(candles), 1e-12)

	candles[0].HasVolume, candles[1].HasVolume = false, false
	assert.InDelta(t, 15.0, VWAP(candles), 1e-12)
}

func TestBBWidthSeries(t *testing.T) {
	candles := generateTestCandles(30, func(i int) models.Candle {
		c := 100 + float64(i%2)*2
		return models.Candle{Open: c, High: c + 1, Low: c - 1, Close: c}
	})

	widths := BBWidthSeries(candles, 20, 2)
	require.Len(t, widths, 30)
	assert.Zero(t, widths[18])
	assert.Greater(t, widths[19], 0.0)

	upper, middle, lower := BollingerBands(candles, 20, 2)
	assert.InDelta(t, (upper-lower)/middle, widths[29], 1e-9)

	assert.Nil(t, BBWidthSeries(candles[:10], 20, 2))
}
