package patterns

import (
	"math"
	"testing"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/calculate"
	"github.com/Alias1177/volregime/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)

// generateTestCandles creates a sequence of five-minute test candles
func generateTestCandles(count int, generator func(i int) models.Candle) []models.Candle {
	candles := make([]models.Candle, count)
	for i := 0; i < count; i++ {
		c := generator(i)
		c.Timestamp = base.Add(time.Duration(i) * 5 * time.Minute)
		candles[i] = c
	}
	return candles
}

func closeBar(c float64) models.Candle {
	return models.Candle{Open: c, High: c + 0.5, Low: c - 0.5, Close: c}
}

func TestDetectWhipsaw(t *testing.T) {
	th := config.Default().Thresholds

	tests := []struct {
		name      string
		closes    []float64
		whipsaw   bool
		reversals int
	}{
		{name: "alternating", closes: []float64{100, 101, 100, 101, 100, 101}, whipsaw: true, reversals: 4},
		{name: "trend", closes: []float64{100, 101, 102, 103, 104, 105}, whipsaw: false, reversals: 0},
		{name: "trend with pullbacks", closes: []float64{100, 102, 101.5, 103, 102.5, 104}, whipsaw: false, reversals: 4},
		{name: "flat", closes: []float64{100, 100, 100, 100, 100, 100}, whipsaw: false, reversals: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := generateTestCandles(len(tt.closes), func(i int) models.Candle { return closeBar(tt.closes[i]) })
			res := DetectWhipsaw(candles, th)
			assert.Equal(t, tt.whipsaw, res.IsWhipsaw)
			assert.Equal(t, tt.reversals, res.Reversals)
		})
	}

	assert.Equal(t, models.WhipsawResult{}, DetectWhipsaw(generateTestCandles(3, func(i int) models.Candle { return closeBar(100) }), th))
}

func TestDetectMeanReversion(t *testing.T) {
	th := config.Default().Thresholds

	oscillating := generateTestCandles(60, func(i int) models.Candle {
		return closeBar(100 + math.Sin(float64(i)*math.Pi/3))
	})
	res := DetectMeanReversion(oscillating, 1.0, th)
	assert.True(t, res.Detected)
	assert.InDelta(t, 100.0, res.VWAP, 0.2)
	assert.InDelta(t, 100.0, res.EMA200, 0.5)
	assert.GreaterOrEqual(t, res.Crossings, th.MeanReversionMinCrossings)
	assert.GreaterOrEqual(t, res.TouchCount, th.MeanReversionMinTouches)
	assert.Greater(t, res.ReversionStrength, 0.0)
	assert.LessOrEqual(t, res.ReversionStrength, 1.0)

	trending := generateTestCandles(60, func(i int) models.Candle { return closeBar(100 + float64(i)) })
	res = DetectMeanReversion(trending, 1.0, th)
	assert.False(t, res.Detected)

	// without ATR the band falls back to the mean bar range
	res = DetectMeanReversion(oscillating, 0, th)
	assert.InDelta(t, 0.5, res.Band, 1e-9)

	assert.False(t, DetectMeanReversion(oscillating[:3], 1, th).Detected)
}

func spikeSnapshot(series []float64, current float64) *models.TimeframeSnapshot {
	candles := generateTestCandles(len(series), func(i int) models.Candle { return closeBar(100) })
	return &models.TimeframeSnapshot{
		Symbol:     "EURUSD",
		Timeframe:  models.Timeframe5m,
		Candles:    candles,
		Indicators: models.IndicatorSet{ATR14: current},
		ATRSeries:  series,
	}
}

func TestDetectVolatilitySpike(t *testing.T) {
	th := config.Default().Thresholds

	calm := make([]float64, 30)
	for i := range calm {
		calm[i] = 1.0
	}
	snap := spikeSnapshot(calm, 2.0)
	barTime := snap.BarTime()

	inWindow := models.SessionTransition{InWindow: true, Boundary: barTime}
	res := DetectVolatilitySpike(snap, inWindow, th)
	assert.True(t, res.IsSpike)
	assert.True(t, res.IsTemporary)
	assert.InDelta(t, 2.0, res.Ratio, 1e-9)
	assert.Equal(t, 1.0, res.BaselineATR)
	assert.Equal(t, 1, res.SpikeBars)
	assert.Equal(t, barTime, res.SpikeStarted)

	res = DetectVolatilitySpike(snap, models.SessionTransition{}, th)
	assert.True(t, res.IsSpike)
	assert.False(t, res.IsTemporary, "outside a session window")

	res = DetectVolatilitySpike(spikeSnapshot(calm, 1.2), inWindow, th)
	assert.False(t, res.IsSpike)
	assert.False(t, res.IsTemporary)

	// spike running for ten bars started long before the window opened
	sustained := make([]float64, 30)
	for i := range sustained {
		sustained[i] = 1.0
		if i >= 20 {
			sustained[i] = 2.0
		}
	}
	snap = spikeSnapshot(sustained, 2.0)
	res = DetectVolatilitySpike(snap, models.SessionTransition{InWindow: true, Boundary: snap.BarTime()}, th)
	assert.True(t, res.IsSpike)
	assert.Equal(t, 10, res.SpikeBars)
	assert.Equal(t, 50*time.Minute, res.Duration)
	assert.False(t, res.IsTemporary)
}

func TestDetectVolatilitySpikeDerivesSeries(t *testing.T) {
	th := config.Default().Thresholds
	candles := generateTestCandles(40, func(i int) models.Candle { return closeBar(100) })
	snap := &models.TimeframeSnapshot{Timeframe: models.Timeframe5m, Candles: candles, Indicators: models.IndicatorSet{ATR14: 3}}

	res := DetectVolatilitySpike(snap, models.SessionTransition{}, th)
	require.True(t, res.IsSpike)
	assert.InDelta(t, calculate.ATR(candles, 14), res.BaselineATR, 1e-9)

	assert.False(t, DetectVolatilitySpike(nil, models.SessionTransition{}, th).IsSpike)
}

func TestDetectVolatilitySpikeIgnoresNaNCurrent(t *testing.T) {
	th := config.Default().Thresholds
	calm := make([]float64, 30)
	for i := range calm {
		calm[i] = 1.0
	}

	res := DetectVolatilitySpike(spikeSnapshot(calm, math.NaN()), models.SessionTransition{}, th)
	assert.False(t, res.IsSpike)
	assert.Equal(t, 1.0, res.CurrentATR, "falls back to the series")
	assert.InDelta(t, 1.0, res.Ratio, 1e-9)
}

func TestDetectSessionTransition(t *testing.T) {
	sessions := config.DefaultSessions()
	window := 15 * time.Minute
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		at         time.Duration
		inWindow   bool
		transition string
		session    string
		minutes    float64
	}{
		{name: "london open", at: 7 * time.Hour, inWindow: true, transition: "ASIA_TO_LONDON", session: models.SessionLondon, minutes: 0},
		{name: "before london", at: 6*time.Hour + 50*time.Minute, inWindow: true, transition: "ASIA_TO_LONDON", session: models.SessionAsia, minutes: -10},
		{name: "after ny open", at: 12*time.Hour + 15*time.Minute, inWindow: true, transition: "LONDON_TO_NY", session: models.SessionNY, minutes: 15},
		{name: "mid london", at: 9 * time.Hour, inWindow: false, session: models.SessionLondon, minutes: 120},
		{name: "after midnight", at: 10 * time.Minute, inWindow: false, session: models.SessionAsia, minutes: 190},
		{name: "ny close", at: 20*time.Hour + 46*time.Minute, inWindow: true, transition: "NY_TO_ASIA", session: models.SessionNY, minutes: -14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := DetectSessionTransition(day.Add(tt.at), sessions, window)
			assert.Equal(t, tt.inWindow, res.InWindow)
			assert.Equal(t, tt.transition, res.Transition)
			assert.Equal(t, tt.session, res.CurrentSession)
			assert.InDelta(t, tt.minutes, res.MinutesFrom, 1e-9)
		})
	}
}

func TestDetectSessionTransitionWrapsMidnight(t *testing.T) {
	sessions := []config.SessionBoundary{{From: "NY", To: "ASIA", UTC: "23:55"}}
	now := time.Date(2024, 3, 5, 0, 5, 0, 0, time.UTC)

	res := DetectSessionTransition(now, sessions, 15*time.Minute)
	assert.True(t, res.InWindow)
	assert.Equal(t, "NY_TO_ASIA", res.Transition)
	assert.InDelta(t, 10.0, res.MinutesFrom, 1e-9)
	assert.Equal(t, time.Date(2024, 3, 4, 23, 55, 0, 0, time.UTC), res.Boundary)

	assert.False(t, DetectSessionTransition(now, nil, time.Minute).InWindow)
}
