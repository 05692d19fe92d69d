package models

import "time"

// Regime is the single volatility-texture label emitted per classification
type Regime string

const (
	RegimeStable             Regime = "STABLE"
	RegimeTransitional       Regime = "TRANSITIONAL"
	RegimeVolatile           Regime = "VOLATILE"
	RegimePreBreakoutTension Regime = "PRE_BREAKOUT_TENSION"
	RegimePostBreakoutDecay  Regime = "POST_BREAKOUT_DECAY"
	RegimeFragmentedChop     Regime = "FRAGMENTED_CHOP"
	RegimeSessionSwitchFlare Regime = "SESSION_SWITCH_FLARE"
)

// AllRegimes lists every label DetectRegime may emit
var AllRegimes = []Regime{
	RegimeStable,
	RegimeTransitional,
	RegimeVolatile,
	RegimePreBreakoutTension,
	RegimePostBreakoutDecay,
	RegimeFragmentedChop,
	RegimeSessionSwitchFlare,
}

// IsAdvanced reports whether the regime comes from one of the advanced classifiers
func (r Regime) IsAdvanced() bool {
	switch r {
	case RegimePreBreakoutTension, RegimePostBreakoutDecay, RegimeFragmentedChop, RegimeSessionSwitchFlare:
		return true
	}
	return false
}

// Valid reports whether r is one of the known labels
func (r Regime) Valid() bool {
	for _, known := range AllRegimes {
		if r == known {
			return true
		}
	}
	return false
}

// Trend directions reported by the ATR trend tracker
const (
	TrendUp               = "up"
	TrendDown             = "down"
	TrendFlat             = "flat"
	TrendInsufficientData = "insufficient_data"
)

// ATRTrend summarizes the slope of the tracked ATR-14 history
type ATRTrend struct {
	Slope           float64 `json:"slope"`     // ATR units per minute
	SlopePct        float64 `json:"slope_pct"` // slope as % of the oldest value in the regression window
	IsDeclining     bool    `json:"is_declining"`
	IsAboveBaseline bool    `json:"is_above_baseline"`
	ATRRatio        float64 `json:"atr_ratio"`
	Direction       string  `json:"trend_direction"`
	Samples         int     `json:"samples"`
}

// WickVariance summarizes the rolling variance of wick-to-body ratios
type WickVariance struct {
	Current      float64 `json:"current"`
	Previous     float64 `json:"previous"`
	ChangePct    float64 `json:"change_pct"`
	IsIncreasing bool    `json:"is_increasing"`
	Samples      int     `json:"samples"`
	Sufficient   bool    `json:"sufficient"`
}

// BBWidthTrend summarizes Bollinger-band width relative to its tracked window
type BBWidthTrend struct {
	Width      float64 `json:"width"`
	Percentile float64 `json:"percentile"` // 0-100 rank of Width within the window
	WidthRatio float64 `json:"width_ratio"`
	IsNarrow   bool    `json:"is_narrow"`
	Direction  string  `json:"trend_direction"`
	Samples    int     `json:"samples"`
}

// IntrabarVolatility compares the range/body ratio of recent bars with the prior window
type IntrabarVolatility struct {
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	IsRising bool    `json:"is_rising"`
	Samples  int     `json:"samples"`
}

// TrackerReadings bundles the four tracker outputs for one symbol x timeframe
type TrackerReadings struct {
	ATR      ATRTrend           `json:"atr_trend"`
	Wick     WickVariance       `json:"wick_variance"`
	BBWidth  BBWidthTrend       `json:"bb_width"`
	Intrabar IntrabarVolatility `json:"intrabar"`
}

// WhipsawResult is the output of the whipsaw detector
type WhipsawResult struct {
	IsWhipsaw     bool    `json:"is_whipsaw"`
	Reversals     int     `json:"reversals"`
	MeanCrossings int     `json:"mean_crossings"`
	Efficiency    float64 `json:"efficiency"` // |net move| / path length, 0 = pure chop
	Oscillating   bool    `json:"oscillating"`
}

// MeanReversionPattern is the output of the VWAP/EMA oscillation detector
type MeanReversionPattern struct {
	Detected          bool    `json:"detected"`
	VWAP              float64 `json:"vwap"`
	EMA200            float64 `json:"ema_200"`
	Band              float64 `json:"band"`
	TouchCount        int     `json:"touch_count"`
	Crossings         int     `json:"crossings"`
	ReversionStrength float64 `json:"reversion_strength"` // 0-1
}

// VolatilitySpike is the output of the ATR spike detector
type VolatilitySpike struct {
	IsSpike      bool          `json:"is_spike"`
	IsTemporary  bool          `json:"is_temporary"`
	Ratio        float64       `json:"ratio"`
	CurrentATR   float64       `json:"current_atr"`
	BaselineATR  float64       `json:"baseline_atr"`
	SpikeBars    int           `json:"spike_bars"`
	SpikeStarted time.Time     `json:"spike_started,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Session names
const (
	SessionAsia   = "ASIA"
	SessionLondon = "LONDON"
	SessionNY     = "NY"
)

// SessionTransition is the output of the session boundary detector
type SessionTransition struct {
	InWindow       bool      `json:"in_window"`
	Transition     string    `json:"transition,omitempty"` // e.g. ASIA_TO_LONDON
	Boundary       time.Time `json:"boundary,omitempty"`
	MinutesFrom    float64   `json:"minutes_from_boundary"` // negative before the boundary
	CurrentSession string    `json:"current_session"`
}

// Data quality markers carried in RegimeResult
const (
	DataQualityComplete     = "complete"
	DataQualityPartial      = "partial"
	DataQualityInsufficient = "insufficient_data"
)

// CompositeIndicators blends per-timeframe indicators using the timeframe weights
type CompositeIndicators struct {
	ATRRatio        float64 `json:"atr_ratio"`
	BBWidthRatio    float64 `json:"bb_width_ratio"`
	ADX             float64 `json:"adx"`
	VolumeConfirmed bool    `json:"volume_confirmed"`
	Timeframes      int     `json:"timeframes"`
}

// Candidate is one regime that qualified during classification
type Candidate struct {
	Regime     Regime    `json:"regime"`
	Priority   int       `json:"priority"`
	Strength   float64   `json:"strength"` // 0-1
	ObservedAt time.Time `json:"observed_at"`
	Reasons    []string  `json:"reasons,omitempty"`
}

// StrategyHints are advisory fields for strategy selection and risk sizing
type StrategyHints struct {
	PreferredStyle       string  `json:"preferred_style"` // trend, breakout, mean_reversion, stand_aside
	AvoidBreakoutEntries bool    `json:"avoid_breakout_entries"`
	WidenStops           bool    `json:"widen_stops"`
	SizeMultiplier       float64 `json:"size_multiplier"`
}

// RegimeResult is the immutable output of DetectRegime
type RegimeResult struct {
	Symbol              string                           `json:"symbol"`
	Regime              Regime                           `json:"regime"`
	Confidence          float64                          `json:"confidence"`
	EvaluatedAt         time.Time                        `json:"evaluated_at"`
	PrimaryTimeframe    Timeframe                        `json:"primary_timeframe,omitempty"`
	AvailableTimeframes []Timeframe                      `json:"available_timeframes"`
	DataQuality         string                           `json:"data_quality"`
	Composite           CompositeIndicators              `json:"composite_indicators"`
	ATRTrends           map[Timeframe]ATRTrend           `json:"atr_trends"`
	WickVariances       map[Timeframe]WickVariance       `json:"wick_variances"`
	BBWidths            map[Timeframe]BBWidthTrend       `json:"bb_widths"`
	Intrabar            map[Timeframe]IntrabarVolatility `json:"intrabar_volatility"`
	TimeSinceBreakout   *BreakoutInfo                    `json:"time_since_breakout,omitempty"`
	MeanReversion       MeanReversionPattern             `json:"mean_reversion_pattern"`
	VolatilitySpike     VolatilitySpike                  `json:"volatility_spike"`
	SessionTransition   SessionTransition                `json:"session_transition"`
	Whipsaw             WhipsawResult                    `json:"whipsaw"`
	Candidates          []Candidate                      `json:"candidates,omitempty"`
	Hints               StrategyHints                    `json:"strategy_hints"`
	Warnings            []string                         `json:"warnings,omitempty"`
}
