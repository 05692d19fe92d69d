package regime

import (
	"fmt"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/models"
)

// Evaluation is the outcome of one classifier predicate
type Evaluation struct {
	Regime     models.Regime
	Qualifies  bool
	Strength   float64 // 0-1, how far past its thresholds the evidence sits
	ObservedAt time.Time
	Reasons    []string
}

// Candidate converts a qualifying evaluation into a resolver candidate
func (e Evaluation) Candidate() models.Candidate {
	return models.Candidate{
		Regime:     e.Regime,
		Priority:   PriorityOf(e.Regime),
		Strength:   e.Strength,
		ObservedAt: e.ObservedAt,
		Reasons:    e.Reasons,
	}
}

// Inputs carries everything the advanced predicates look at.
// Primary readings come from the primary timeframe only.
type Inputs struct {
	At            time.Time
	Composite     models.CompositeIndicators
	Primary       models.TrackerReadings
	Breakout      *models.BreakoutInfo
	Whipsaw       models.WhipsawResult
	MeanReversion models.MeanReversionPattern
	Spike         models.VolatilitySpike
	Session       models.SessionTransition
}

// EvaluatePreBreakoutTension: narrow bands, growing wick variance, rising
// intrabar volatility and a composite ATR ratio still under the ceiling.
func EvaluatePreBreakoutTension(in Inputs, th config.Thresholds) Evaluation {
	r := in.Primary
	ev := Evaluation{Regime: models.RegimePreBreakoutTension, ObservedAt: in.At}
	ev.Qualifies = r.BBWidth.IsNarrow &&
		r.Wick.IsIncreasing &&
		r.Intrabar.IsRising &&
		in.Composite.ATRRatio < th.PreBreakoutATRCeiling
	if !ev.Qualifies {
		return ev
	}

	narrow := 1.0
	if th.BBNarrowPercentile > 0 {
		narrow = (th.BBNarrowPercentile - r.BBWidth.Percentile) / th.BBNarrowPercentile
	}
	wick := min(r.Wick.ChangePct/100, 1)
	intrabar := 0.0
	if r.Intrabar.Previous > 0 {
		intrabar = min(r.Intrabar.Current/r.Intrabar.Previous-1, 1)
	}
	compression := (th.PreBreakoutATRCeiling - in.Composite.ATRRatio) / th.PreBreakoutATRCeiling

	ev.Strength = clamp01((narrow + wick + intrabar + compression) / 4)
	ev.Reasons = []string{
		fmt.Sprintf("bb width percentile %.1f < %.1f", r.BBWidth.Percentile, th.BBNarrowPercentile),
		fmt.Sprintf("wick variance up %.1f%%", r.Wick.ChangePct),
		fmt.Sprintf("intrabar volatility %.2f -> %.2f", r.Intrabar.Previous, r.Intrabar.Current),
		fmt.Sprintf("composite atr ratio %.2f < %.2f", in.Composite.ATRRatio, th.PreBreakoutATRCeiling),
	}
	return ev
}

// EvaluatePostBreakoutDecay: a recent breakout on the primary timeframe with
// ATR falling but still above its baseline.
func EvaluatePostBreakoutDecay(in Inputs, th config.Thresholds) Evaluation {
	atr := in.Primary.ATR
	ev := Evaluation{Regime: models.RegimePostBreakoutDecay, ObservedAt: in.At}
	ev.Qualifies = in.Breakout != nil &&
		in.Breakout.IsRecent &&
		atr.IsDeclining &&
		atr.IsAboveBaseline
	if !ev.Qualifies {
		return ev
	}
	ev.ObservedAt = in.Breakout.DetectedAt

	recency := 1.0
	if window := th.BreakoutRecency.Minutes(); window > 0 {
		recency = 1 - in.Breakout.Minutes/window
	}
	elevation := min((atr.ATRRatio-th.ATRBaselineRatio)/th.ATRBaselineRatio*2, 1)
	ev.Strength = clamp01(0.5*recency + 0.5*max(elevation, 0))
	ev.Reasons = []string{
		fmt.Sprintf("%s breakout %.0f min ago", in.Breakout.Type, in.Breakout.Minutes),
		fmt.Sprintf("atr slope %.2f%% per bar window", atr.SlopePct),
		fmt.Sprintf("atr ratio %.2f > %.2f", atr.ATRRatio, th.ATRBaselineRatio),
	}
	return ev
}

// EvaluateFragmentedChop: whipsaw or mean reversion with weak directional momentum
func EvaluateFragmentedChop(in Inputs, th config.Thresholds) Evaluation {
	ev := Evaluation{Regime: models.RegimeFragmentedChop, ObservedAt: in.At}
	pattern := in.Whipsaw.IsWhipsaw || in.MeanReversion.Detected
	ev.Qualifies = pattern && in.Composite.ADX < th.ADXChopCeiling
	if !ev.Qualifies {
		return ev
	}

	var evidence float64
	if in.Whipsaw.IsWhipsaw {
		evidence = 1 - in.Whipsaw.Efficiency
		ev.Reasons = append(ev.Reasons, fmt.Sprintf("whipsaw: %d reversals, efficiency %.2f", in.Whipsaw.Reversals, in.Whipsaw.Efficiency))
	}
	if in.MeanReversion.Detected {
		evidence = max(evidence, in.MeanReversion.ReversionStrength)
		ev.Reasons = append(ev.Reasons, fmt.Sprintf("mean reversion: %d crossings, %d touches", in.MeanReversion.Crossings, in.MeanReversion.TouchCount))
	}
	weakness := (th.ADXChopCeiling - in.Composite.ADX) / th.ADXChopCeiling
	ev.Strength = clamp01(0.5*evidence + 0.5*weakness)
	ev.Reasons = append(ev.Reasons, fmt.Sprintf("composite adx %.1f < %.1f", in.Composite.ADX, th.ADXChopCeiling))
	return ev
}

// EvaluateSessionSwitchFlare: a temporary ATR spike inside a session transition window
func EvaluateSessionSwitchFlare(in Inputs, th config.Thresholds) Evaluation {
	ev := Evaluation{Regime: models.RegimeSessionSwitchFlare, ObservedAt: in.At}
	ev.Qualifies = in.Session.InWindow && in.Spike.IsSpike && in.Spike.IsTemporary
	if !ev.Qualifies {
		return ev
	}
	if !in.Spike.SpikeStarted.IsZero() {
		ev.ObservedAt = in.Spike.SpikeStarted
	}

	excess := (in.Spike.Ratio - th.SpikeRatio) / th.SpikeRatio
	proximity := 1.0
	if w := th.TransitionWindow.Minutes(); w > 0 {
		proximity = 1 - abs(in.Session.MinutesFrom)/w
	}
	ev.Strength = clamp01(0.5 + 0.25*min(excess, 1) + 0.25*proximity)
	ev.Reasons = []string{
		fmt.Sprintf("%s, %.0f min from boundary", in.Session.Transition, in.Session.MinutesFrom),
		fmt.Sprintf("atr spike %.2fx baseline over %d bars", in.Spike.Ratio, in.Spike.SpikeBars),
	}
	return ev
}
