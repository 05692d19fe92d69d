package analyze

import (
	"context"
	"fmt"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/metrics"
	"github.com/Alias1177/volregime/internal/patterns"
	"github.com/Alias1177/volregime/internal/regime"
	"github.com/Alias1177/volregime/internal/tracking"
	"github.com/Alias1177/volregime/models"
)

type frameState struct {
	snap     *models.TimeframeSnapshot
	readings models.TrackerReadings
}

type evaluator struct {
	name string
	fn   func(regime.Inputs, config.Thresholds) regime.Evaluation
}

// advanced predicates, each evaluated independently
var evaluators = []evaluator{
	{name: "session_switch_flare", fn: regime.EvaluateSessionSwitchFlare},
	{name: "fragmented_chop", fn: regime.EvaluateFragmentedChop},
	{name: "post_breakout_decay", fn: regime.EvaluatePostBreakoutDecay},
	{name: "pre_breakout_tension", fn: regime.EvaluatePreBreakoutTension},
}

// DetectRegime classifies one symbol from its per-timeframe windows.
//
// It never fails: unusable timeframes are skipped, faulty components fall back
// to neutral readings, and with no usable data at all the result is STABLE
// with zero confidence and DataQuality "insufficient_data".
func (a *Analyzer) DetectRegime(ctx context.Context, req Request) models.RegimeResult {
	start := time.Now()
	defer func() {
		metrics.DetectLatency.Observe(time.Since(start).Seconds())
	}()

	now := req.Now
	if now.IsZero() {
		now = a.now()
	}
	now = now.UTC()
	symbol := symbolOf(req)
	th := a.cfg.ThresholdsFor(symbol)

	res := models.RegimeResult{
		Symbol:        symbol,
		EvaluatedAt:   now,
		ATRTrends:     make(map[models.Timeframe]models.ATRTrend),
		WickVariances: make(map[models.Timeframe]models.WickVariance),
		BBWidths:      make(map[models.Timeframe]models.BBWidthTrend),
		Intrabar:      make(map[models.Timeframe]models.IntrabarVolatility),
	}

	configured := make(map[models.Timeframe]bool)
	for _, tf := range a.cfg.Timeframes.Ordered() {
		configured[tf] = true
	}
	expected := len(configured)

	var states []frameState
	available := 0
	for _, tf := range a.timeframes(req.Frames) {
		frame, ok := req.Frames[tf]
		if !ok {
			continue
		}
		snap := safe(a, &res, "normalize", (*models.TimeframeSnapshot)(nil), func() *models.TimeframeSnapshot {
			return a.snapshot(symbol, tf, frame, now, th)
		})
		if snap == nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: unusable bars, timeframe skipped", tf))
			continue
		}
		states = append(states, frameState{snap: snap})
		res.AvailableTimeframes = append(res.AvailableTimeframes, tf)
		if configured[tf] {
			available++
		}
	}

	session := safe(a, &res, "session_transition", models.SessionTransition{}, func() models.SessionTransition {
		return patterns.DetectSessionTransition(now, a.cfg.Sessions, th.TransitionWindow)
	})
	res.SessionTransition = session

	if len(states) == 0 {
		res.Regime = models.RegimeStable
		res.DataQuality = models.DataQualityInsufficient
		res.Composite = models.CompositeIndicators{ATRRatio: 1.0, BBWidthRatio: 1.0}
		res.Hints = regime.HintsFor(res.Regime)
		a.emit(&res)
		return res
	}

	primary := 0
	want := a.cfg.Timeframes.PrimaryTimeframe()
	for i, st := range states {
		if st.snap.Timeframe == want {
			primary = i
			break
		}
	}
	primarySnap := states[primary].snap
	res.PrimaryTimeframe = primarySnap.Timeframe

	for i := range states {
		st := &states[i]
		var info *models.BreakoutInfo
		st.readings, info = a.track(ctx, &res, st.snap, th, i == primary)
		if i == primary {
			res.TimeSinceBreakout = info
		}

		tf := st.snap.Timeframe
		res.ATRTrends[tf] = st.readings.ATR
		res.WickVariances[tf] = st.readings.Wick
		res.BBWidths[tf] = st.readings.BBWidth
		res.Intrabar[tf] = st.readings.Intrabar
	}
	if cached, ok := a.breakouts.(interface{ CacheOnly() bool }); ok && cached.CacheOnly() && a.cfg.Store.Driver != "none" {
		res.Warnings = append(res.Warnings, "breakout store unavailable, serving from cache")
	}

	res.Whipsaw = safe(a, &res, "whipsaw", models.WhipsawResult{}, func() models.WhipsawResult {
		return patterns.DetectWhipsaw(primarySnap.Candles, th)
	})
	res.MeanReversion = safe(a, &res, "mean_reversion", models.MeanReversionPattern{}, func() models.MeanReversionPattern {
		return patterns.DetectMeanReversion(primarySnap.Candles, primarySnap.Indicators.ATR14, th)
	})
	res.VolatilitySpike = safe(a, &res, "volatility_spike", models.VolatilitySpike{}, func() models.VolatilitySpike {
		return patterns.DetectVolatilitySpike(primarySnap, session, th)
	})

	frames := make([]regime.Frame, len(states))
	for i, st := range states {
		frames[i] = regime.Frame{
			Timeframe:  st.snap.Timeframe,
			Indicators: st.snap.Indicators,
			BBWidth:    st.readings.BBWidth,
		}
	}
	neutral := models.CompositeIndicators{ATRRatio: 1.0, BBWidthRatio: 1.0, Timeframes: len(states)}
	res.Composite = safe(a, &res, "composite", neutral, func() models.CompositeIndicators {
		return regime.Composite(frames, a.cfg.Timeframes)
	})

	in := regime.Inputs{
		At:            now,
		Composite:     res.Composite,
		Primary:       states[primary].readings,
		Breakout:      res.TimeSinceBreakout,
		Whipsaw:       res.Whipsaw,
		MeanReversion: res.MeanReversion,
		Spike:         res.VolatilitySpike,
		Session:       session,
	}

	var advanced []models.Candidate
	for _, e := range evaluators {
		ev := safe(a, &res, e.name, regime.Evaluation{}, func() regime.Evaluation {
			return e.fn(in, th)
		})
		if ev.Qualifies {
			advanced = append(advanced, ev.Candidate())
		}
	}

	fallback := regime.Evaluation{Regime: models.RegimeTransitional, Qualifies: true}
	basic := safe(a, &res, "basic_classifier", fallback, func() regime.Evaluation {
		return regime.ClassifyBasic(res.Composite, th)
	})
	basic.ObservedAt = now

	winner, ordered := regime.Resolve(advanced, basic.Candidate())
	res.Regime = winner.Regime
	res.Candidates = ordered
	res.Confidence = regime.Confidence(winner.Strength, available, expected)
	res.Hints = regime.HintsFor(winner.Regime)
	res.DataQuality = models.DataQualityComplete
	if available < expected {
		res.DataQuality = models.DataQualityPartial
	}

	a.emit(&res)
	return res
}

// track updates the pair's histories and, on the primary timeframe, the
// breakout state. The pair lock is held throughout so the store is always
// entered after it.
func (a *Analyzer) track(ctx context.Context, res *models.RegimeResult, snap *models.TimeframeSnapshot, th config.Thresholds, primary bool) (models.TrackerReadings, *models.BreakoutInfo) {
	key := tracking.Key{Symbol: snap.Symbol, Timeframe: snap.Timeframe}
	h := a.registry.Lock(key)
	defer h.Unlock()

	readings := safe(a, res, "trackers", tracking.EmptyReadings(), func() models.TrackerReadings {
		return a.registry.UpdateLocked(key, h, snap, th)
	})
	if !primary {
		return readings, nil
	}

	safe(a, res, "breakout_detect", (*models.BreakoutEvent)(nil), func() *models.BreakoutEvent {
		return a.breakouts.DetectBreakout(ctx, snap)
	})
	info := safe(a, res, "breakout_recency", (*models.BreakoutInfo)(nil), func() *models.BreakoutInfo {
		return a.breakouts.TimeSinceBreakout(ctx, snap.Symbol, snap.Timeframe, snap.At)
	})
	return readings, info
}

func (a *Analyzer) emit(res *models.RegimeResult) {
	metrics.RegimesEmitted.WithLabelValues(string(res.Regime)).Inc()

	evt := a.log.Debug().
		Str("symbol", res.Symbol).
		Str("regime", string(res.Regime)).
		Float64("confidence", res.Confidence).
		Str("data_quality", res.DataQuality).
		Int("candidates", len(res.Candidates))
	if len(res.Warnings) > 0 {
		evt = evt.Strs("warnings", res.Warnings)
	}
	evt.Msg("Regime detected")
}
