package regime

import (
	"math"
	"testing"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 4, 12, 5, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

func TestComposite(t *testing.T) {
	tf := config.Default().Timeframes

	frames := []Frame{
		{
			Timeframe:  tf.Short,
			Indicators: models.IndicatorSet{ATR14: 3, ATR50: 2, ADX: 20, VolumeConfirmed: boolPtr(true)},
			BBWidth:    models.BBWidthTrend{WidthRatio: 1.2},
		},
		{
			Timeframe:  tf.Medium,
			Indicators: models.IndicatorSet{ATR14: 2, ATR50: 2, ADX: 10},
		},
	}

	ci := Composite(frames, tf)
	assert.InDelta(t, 1.3125, ci.ATRRatio, 1e-9)
	assert.InDelta(t, 16.25, ci.ADX, 1e-9)
	assert.InDelta(t, 1.125, ci.BBWidthRatio, 1e-9)
	assert.True(t, ci.VolumeConfirmed)
	assert.Equal(t, 2, ci.Timeframes)

	empty := Composite(nil, tf)
	assert.Equal(t, 1.0, empty.ATRRatio)
	assert.Equal(t, 1.0, empty.BBWidthRatio)
	assert.Zero(t, empty.Timeframes)

	// unknown timeframes fall back to equal weights
	odd := Composite([]Frame{
		{Timeframe: models.Timeframe4h, Indicators: models.IndicatorSet{ATR14: 2, ATR50: 1}},
		{Timeframe: models.Timeframe1d, Indicators: models.IndicatorSet{ATR14: 1, ATR50: 1}},
	}, tf)
	assert.InDelta(t, 1.5, odd.ATRRatio, 1e-9)

	// non-finite inputs fall back to neutral values
	nan := math.NaN()
	poisoned := Composite([]Frame{
		{
			Timeframe:  tf.Short,
			Indicators: models.IndicatorSet{ATR14: nan, ATR50: 2, ADX: nan},
			BBWidth:    models.BBWidthTrend{WidthRatio: nan},
		},
		{Timeframe: tf.Medium, Indicators: models.IndicatorSet{ATR14: 2, ATR50: 2, ADX: 10}},
	}, tf)
	assert.InDelta(t, 1.0, poisoned.ATRRatio, 1e-9)
	assert.InDelta(t, 3.75, poisoned.ADX, 1e-9)
	assert.InDelta(t, 1.0, poisoned.BBWidthRatio, 1e-9)
}

func TestClassifyBasic(t *testing.T) {
	th := config.Default().Thresholds

	tests := []struct {
		name   string
		ci     models.CompositeIndicators
		regime models.Regime
	}{
		{name: "volatile with trend", ci: models.CompositeIndicators{ATRRatio: 1.5, BBWidthRatio: 1.0, ADX: 30}, regime: models.RegimeVolatile},
		{name: "volatile at boundary", ci: models.CompositeIndicators{ATRRatio: 1.4, BBWidthRatio: 1.3, ADX: 10}, regime: models.RegimeVolatile},
		{name: "volatile on volume", ci: models.CompositeIndicators{ATRRatio: 1.6, BBWidthRatio: 1.0, ADX: 10, VolumeConfirmed: true}, regime: models.RegimeVolatile},
		{name: "elevated without confirmation", ci: models.CompositeIndicators{ATRRatio: 1.5, BBWidthRatio: 1.0, ADX: 10}, regime: models.RegimeTransitional},
		{name: "stable", ci: models.CompositeIndicators{ATRRatio: 1.0, BBWidthRatio: 1.0, ADX: 12}, regime: models.RegimeStable},
		{name: "wide bands", ci: models.CompositeIndicators{ATRRatio: 1.0, BBWidthRatio: 1.2, ADX: 12}, regime: models.RegimeTransitional},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ClassifyBasic(tt.ci, th)
			assert.Equal(t, tt.regime, ev.Regime)
			assert.True(t, ev.Qualifies)
			assert.GreaterOrEqual(t, ev.Strength, 0.0)
			assert.LessOrEqual(t, ev.Strength, 1.0)
			assert.NotEmpty(t, ev.Reasons)
		})
	}
}

func tensionInputs() Inputs {
	return Inputs{
		At:        now,
		Composite: models.CompositeIndicators{ATRRatio: 0.9, BBWidthRatio: 0.8, ADX: 18},
		Primary: models.TrackerReadings{
			BBWidth:  models.BBWidthTrend{Percentile: 5, IsNarrow: true},
			Wick:     models.WickVariance{ChangePct: 40, IsIncreasing: true, Sufficient: true},
			Intrabar: models.IntrabarVolatility{Current: 3, Previous: 2, IsRising: true},
		},
	}
}

func TestEvaluatePreBreakoutTension(t *testing.T) {
	th := config.Default().Thresholds

	ev := EvaluatePreBreakoutTension(tensionInputs(), th)
	require.True(t, ev.Qualifies)
	assert.Equal(t, models.RegimePreBreakoutTension, ev.Regime)
	assert.Greater(t, ev.Strength, 0.0)
	assert.Len(t, ev.Reasons, 4)

	tests := []struct {
		name   string
		mutate func(in *Inputs)
	}{
		{name: "wide bands", mutate: func(in *Inputs) { in.Primary.BBWidth.IsNarrow = false }},
		{name: "wick steady", mutate: func(in *Inputs) { in.Primary.Wick.IsIncreasing = false }},
		{name: "intrabar flat", mutate: func(in *Inputs) { in.Primary.Intrabar.IsRising = false }},
		{name: "atr expanded", mutate: func(in *Inputs) { in.Composite.ATRRatio = 1.2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tensionInputs()
			tt.mutate(&in)
			assert.False(t, EvaluatePreBreakoutTension(in, th).Qualifies)
		})
	}
}

func TestEvaluatePostBreakoutDecay(t *testing.T) {
	th := config.Default().Thresholds
	detected := now.Add(-10 * time.Minute)

	in := Inputs{
		At:      now,
		Primary: models.TrackerReadings{ATR: models.ATRTrend{IsDeclining: true, IsAboveBaseline: true, ATRRatio: 1.5, SlopePct: -3}},
		Breakout: &models.BreakoutInfo{
			Minutes: 10, Type: models.BreakoutPrice, DetectedAt: detected, IsRecent: true,
		},
	}
	ev := EvaluatePostBreakoutDecay(in, th)
	require.True(t, ev.Qualifies)
	assert.Equal(t, detected, ev.ObservedAt)
	assert.Greater(t, ev.Strength, 0.0)

	stale := in
	stale.Breakout = &models.BreakoutInfo{Minutes: 45, IsRecent: false}
	assert.False(t, EvaluatePostBreakoutDecay(stale, th).Qualifies)

	none := in
	none.Breakout = nil
	assert.False(t, EvaluatePostBreakoutDecay(none, th).Qualifies)

	rising := in
	rising.Primary.ATR.IsDeclining = false
	assert.False(t, EvaluatePostBreakoutDecay(rising, th).Qualifies)

	settled := in
	settled.Primary.ATR.IsAboveBaseline = false
	assert.False(t, EvaluatePostBreakoutDecay(settled, th).Qualifies)
}

func TestEvaluateFragmentedChop(t *testing.T) {
	th := config.Default().Thresholds

	tests := []struct {
		name      string
		in        Inputs
		qualifies bool
	}{
		{
			name:      "whipsaw low adx",
			in:        Inputs{Composite: models.CompositeIndicators{ADX: 10}, Whipsaw: models.WhipsawResult{IsWhipsaw: true, Reversals: 4, Efficiency: 0.2}},
			qualifies: true,
		},
		{
			name:      "mean reversion low adx",
			in:        Inputs{Composite: models.CompositeIndicators{ADX: 12}, MeanReversion: models.MeanReversionPattern{Detected: true, ReversionStrength: 0.8}},
			qualifies: true,
		},
		{
			name:      "whipsaw trending",
			in:        Inputs{Composite: models.CompositeIndicators{ADX: 15}, Whipsaw: models.WhipsawResult{IsWhipsaw: true}},
			qualifies: false,
		},
		{
			name:      "no pattern",
			in:        Inputs{Composite: models.CompositeIndicators{ADX: 5}},
			qualifies: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := EvaluateFragmentedChop(tt.in, th)
			assert.Equal(t, tt.qualifies, ev.Qualifies)
			if tt.qualifies {
				assert.Greater(t, ev.Strength, 0.0)
			}
		})
	}
}

func TestEvaluateSessionSwitchFlare(t *testing.T) {
	th := config.Default().Thresholds
	started := now.Add(-5 * time.Minute)

	in := Inputs{
		At:      now,
		Session: models.SessionTransition{InWindow: true, Transition: "LONDON_TO_NY", MinutesFrom: 5},
		Spike:   models.VolatilitySpike{IsSpike: true, IsTemporary: true, Ratio: 2, SpikeBars: 1, SpikeStarted: started},
	}
	ev := EvaluateSessionSwitchFlare(in, th)
	require.True(t, ev.Qualifies)
	assert.Equal(t, started, ev.ObservedAt)

	sustained := in
	sustained.Spike.IsTemporary = false
	assert.False(t, EvaluateSessionSwitchFlare(sustained, th).Qualifies)

	outside := in
	outside.Session.InWindow = false
	assert.False(t, EvaluateSessionSwitchFlare(outside, th).Qualifies)
}

func TestResolve(t *testing.T) {
	basic := models.Candidate{Regime: models.RegimeStable, Strength: 0.6, ObservedAt: now}
	candidate := func(r models.Regime, at time.Time) models.Candidate {
		return models.Candidate{Regime: r, ObservedAt: at}
	}

	tests := []struct {
		name     string
		advanced []models.Candidate
		want     models.Regime
	}{
		{name: "basic only", want: models.RegimeStable},
		{
			name: "all four",
			advanced: []models.Candidate{
				candidate(models.RegimePreBreakoutTension, now),
				candidate(models.RegimePostBreakoutDecay, now),
				candidate(models.RegimeSessionSwitchFlare, now.Add(-time.Hour)),
				candidate(models.RegimeFragmentedChop, now),
			},
			want: models.RegimeSessionSwitchFlare,
		},
		{
			name: "chop over tension",
			advanced: []models.Candidate{
				candidate(models.RegimePreBreakoutTension, now),
				candidate(models.RegimeFragmentedChop, now.Add(-time.Minute)),
			},
			want: models.RegimeFragmentedChop,
		},
		{
			name: "decay over tension",
			advanced: []models.Candidate{
				candidate(models.RegimePreBreakoutTension, now),
				candidate(models.RegimePostBreakoutDecay, now.Add(-20*time.Minute)),
			},
			want: models.RegimePostBreakoutDecay,
		},
		{
			name:     "basic regimes in advanced list ignored",
			advanced: []models.Candidate{candidate(models.RegimeVolatile, now)},
			want:     models.RegimeStable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, ordered := Resolve(tt.advanced, basic)
			assert.Equal(t, tt.want, winner.Regime)
			assert.Equal(t, winner, ordered[0])
			assert.Equal(t, models.RegimeStable, ordered[len(ordered)-1].Regime)

			// repeated calls with the same input resolve identically
			again, _ := Resolve(tt.advanced, basic)
			assert.Equal(t, winner, again)
		})
	}
}

func TestResolveRecencyTieBreak(t *testing.T) {
	older := models.Candidate{Regime: models.RegimePostBreakoutDecay, ObservedAt: now.Add(-20 * time.Minute), Reasons: []string{"older"}}
	newer := models.Candidate{Regime: models.RegimePostBreakoutDecay, ObservedAt: now.Add(-5 * time.Minute), Reasons: []string{"newer"}}

	winner, ordered := Resolve([]models.Candidate{older, newer}, models.Candidate{Regime: models.RegimeTransitional})
	assert.Equal(t, []string{"newer"}, winner.Reasons)
	assert.Len(t, ordered, 3)
}

func TestPriorityOf(t *testing.T) {
	assert.Greater(t, PriorityOf(models.RegimeSessionSwitchFlare), PriorityOf(models.RegimeFragmentedChop))
	assert.Greater(t, PriorityOf(models.RegimeFragmentedChop), PriorityOf(models.RegimePostBreakoutDecay))
	assert.Greater(t, PriorityOf(models.RegimePostBreakoutDecay), PriorityOf(models.RegimePreBreakoutTension))
	assert.Greater(t, PriorityOf(models.RegimePreBreakoutTension), PriorityOf(models.RegimeVolatile))
	assert.Zero(t, PriorityOf(models.RegimeStable))
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name      string
		strength  float64
		available int
		expected  int
		want      float64
	}{
		{name: "full strength full data", strength: 1, available: 3, expected: 3, want: 100},
		{name: "zero strength full data", strength: 0, available: 3, expected: 3, want: 40},
		{name: "one of three", strength: 0.5, available: 1, expected: 3, want: 23.3},
		{name: "no data", strength: 0.5, available: 0, expected: 3, want: 0},
		{name: "strength clamped", strength: 2, available: 3, expected: 3, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Confidence(tt.strength, tt.available, tt.expected), 1e-9)
		})
	}

	assert.Less(t, Confidence(0.7, 1, 3), Confidence(0.7, 3, 3))
}

func TestHintsFor(t *testing.T) {
	for _, r := range models.AllRegimes {
		h := HintsFor(r)
		assert.NotEmpty(t, h.PreferredStyle, r)
		assert.Greater(t, h.SizeMultiplier, 0.0, r)
	}
	assert.True(t, HintsFor(models.RegimeFragmentedChop).AvoidBreakoutEntries)
	assert.True(t, HintsFor(models.RegimeSessionSwitchFlare).WidenStops)
	assert.Equal(t, StyleBreakout, HintsFor(models.RegimePreBreakoutTension).PreferredStyle)
}
