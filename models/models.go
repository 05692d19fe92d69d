package models

import (
	"math"
	"time"
)

// Candle represents a single normalized price candle
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume,omitempty"`
	HasVolume bool      `json:"has_volume"`
}

// Body returns the absolute candle body size
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns high minus low
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Timeframe is a bar interval label such as "5min" or "1h"
type Timeframe string

const (
	Timeframe1m  Timeframe = "1min"
	Timeframe5m  Timeframe = "5min"
	Timeframe15m Timeframe = "15min"
	Timeframe30m Timeframe = "30min"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1day"
)

// IndicatorSet holds the precomputed indicators for the current bar of a window.
// Zero values mean "not supplied" and are derived from the window.
type IndicatorSet struct {
	ATR14           float64 `json:"atr_14"`
	ATR50           float64 `json:"atr_50"`
	BBUpper         float64 `json:"bb_upper"`
	BBMiddle        float64 `json:"bb_middle"`
	BBLower         float64 `json:"bb_lower"`
	ADX             float64 `json:"adx"`
	PlusDI          float64 `json:"plus_di"`
	MinusDI         float64 `json:"minus_di"`
	Volume          float64 `json:"volume"`
	VolumeConfirmed *bool   `json:"volume_confirmed,omitempty"`
}

// BBWidth returns (upper-lower)/middle, or 0 when the bands are unusable
func (s IndicatorSet) BBWidth() float64 {
	if s.BBMiddle == 0 || s.BBUpper < s.BBLower {
		return 0
	}
	w := (s.BBUpper - s.BBLower) / s.BBMiddle
	if !finite(w) {
		return 0
	}
	return w
}

// ATRRatio returns ATR14/ATR50 with a neutral 1.0 when either value is
// missing or not finite
func (s IndicatorSet) ATRRatio() float64 {
	if !finite(s.ATR14) || !finite(s.ATR50) || s.ATR50 <= 0 || s.ATR14 < 0 {
		return 1.0
	}
	return s.ATR14 / s.ATR50
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// TimeframeSnapshot is one symbol, one timeframe, one evaluation instant.
// It is built fresh for every classification and never shared.
type TimeframeSnapshot struct {
	Symbol     string
	Timeframe  Timeframe
	At         time.Time
	Candles    []Candle
	Indicators IndicatorSet
	// ATRSeries is the ATR-14 value per bar aligned with Candles (zero during warm-up).
	ATRSeries []float64
}

// Last returns the newest candle of the snapshot
func (s *TimeframeSnapshot) Last() Candle {
	return s.Candles[len(s.Candles)-1]
}

// BarTime returns the timestamp of the newest candle
func (s *TimeframeSnapshot) BarTime() time.Time {
	if len(s.Candles) == 0 {
		return s.At
	}
	return s.Candles[len(s.Candles)-1].Timestamp
}
