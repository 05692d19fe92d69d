package config

import "time"

// Thresholds are the tunable numeric cutoffs used by trackers, detectors and classifiers.
// Every field can be overridden per symbol under the `symbols:` key of the config file.
type Thresholds struct {
	// Metric trackers
	HistorySize        int     `yaml:"history_size" default:"20" validate:"gte=5"`
	ATRSlopeWindow     int     `yaml:"atr_slope_window" default:"5" validate:"gte=2"`
	ATRBaselineRatio   float64 `yaml:"atr_baseline_ratio" default:"1.2" validate:"gt=0"`
	ATRDeclinePct      float64 `yaml:"atr_decline_pct" validate:"gte=0"`
	ATRFlatPct         float64 `yaml:"atr_flat_pct" default:"0.5" validate:"gte=0"`
	WickWindow         int     `yaml:"wick_window" default:"20" validate:"gte=2"`
	WickMinSamples     int     `yaml:"wick_min_samples" default:"10" validate:"gte=2"`
	WickIncreasePct    float64 `yaml:"wick_increase_pct" default:"10" validate:"gte=0"`
	WickEpsilon        float64 `yaml:"wick_epsilon" default:"0.00000001" validate:"gt=0"`
	MaxWickRatio       float64 `yaml:"max_wick_ratio" default:"50" validate:"gt=0"`
	BBWidthWindow      int     `yaml:"bb_width_window" default:"10" validate:"gte=2"`
	BBNarrowPercentile float64 `yaml:"bb_narrow_percentile" default:"20" validate:"gte=0,lte=100"`
	IntrabarWindow     int     `yaml:"intrabar_window" default:"5" validate:"gte=1"`
	IntrabarRisePct    float64 `yaml:"intrabar_rise_pct" default:"20" validate:"gte=0"`

	// Pattern detectors
	WhipsawLookback           int           `yaml:"whipsaw_lookback" default:"5" validate:"gte=3"`
	WhipsawMinReversals       int           `yaml:"whipsaw_min_reversals" default:"3" validate:"gte=1"`
	WhipsawMaxEfficiency      float64       `yaml:"whipsaw_max_efficiency" default:"0.5" validate:"gt=0,lte=1"`
	WhipsawMinMeanCrossings   int           `yaml:"whipsaw_min_mean_crossings" default:"2" validate:"gte=0"`
	MeanReversionLookback     int           `yaml:"mean_reversion_lookback" default:"20" validate:"gte=5"`
	MeanReversionBandATR      float64       `yaml:"mean_reversion_band_atr" default:"0.5" validate:"gt=0"`
	MeanReversionMinTouches   int           `yaml:"mean_reversion_min_touches" default:"3" validate:"gte=1"`
	MeanReversionMinCrossings int           `yaml:"mean_reversion_min_crossings" default:"2" validate:"gte=1"`
	EMAPeriod                 int           `yaml:"ema_period" default:"200" validate:"gte=2"`
	SpikeRatio                float64       `yaml:"spike_ratio" default:"1.5" validate:"gt=1"`
	SpikeBaselineBars         int           `yaml:"spike_baseline_bars" default:"20" validate:"gte=3"`
	TransitionWindow          time.Duration `yaml:"transition_window" default:"15m" validate:"gt=0"`

	// Breakouts
	BreakoutLookback       int           `yaml:"breakout_lookback" default:"20" validate:"gte=3"`
	BreakoutSwingStrength  int           `yaml:"breakout_swing_strength" default:"2" validate:"gte=1"`
	BreakoutVolumeMultiple float64       `yaml:"breakout_volume_multiple" default:"2" validate:"gt=1"`
	BreakoutRecency        time.Duration `yaml:"breakout_recency" default:"30m" validate:"gt=0"`
	BreakoutMaxAge         time.Duration `yaml:"breakout_max_age" default:"24h" validate:"gt=0"`
	BreakoutCooldown       time.Duration `yaml:"breakout_cooldown" default:"15m" validate:"gte=0"`

	// Classifiers
	PreBreakoutATRCeiling float64 `yaml:"pre_breakout_atr_ceiling" default:"1.2" validate:"gt=0"`
	ADXChopCeiling        float64 `yaml:"adx_chop_ceiling" default:"15" validate:"gt=0"`
	VolatileATRRatio      float64 `yaml:"volatile_atr_ratio" default:"1.4" validate:"gt=0"`
	StableATRRatio        float64 `yaml:"stable_atr_ratio" default:"1.1" validate:"gt=0"`
	VolatileBBRatio       float64 `yaml:"volatile_bb_ratio" default:"1.3" validate:"gt=0"`
	StableBBRatio         float64 `yaml:"stable_bb_ratio" default:"1.15" validate:"gt=0"`
	TrendADX              float64 `yaml:"trend_adx" default:"25" validate:"gt=0"`
	VolumeConfirmMultiple float64 `yaml:"volume_confirm_multiple" default:"1.2" validate:"gt=0"`
}
