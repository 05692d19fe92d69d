package regime

import (
	"fmt"
	"math"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/models"
)

// ClassifyBasic picks STABLE, TRANSITIONAL or VOLATILE from the composite.
//
// VOLATILE needs an elevated ATR ratio plus at least one confirmation (wide
// bands, trend-strength ADX or volume). STABLE needs both ATR and band width
// ratios at or below their stable ceilings. Everything else is TRANSITIONAL.
func ClassifyBasic(ci models.CompositeIndicators, th config.Thresholds) Evaluation {
	confirmations := 0
	var reasons []string
	if ci.BBWidthRatio >= th.VolatileBBRatio {
		confirmations++
		reasons = append(reasons, fmt.Sprintf("bb width ratio %.2f >= %.2f", ci.BBWidthRatio, th.VolatileBBRatio))
	}
	if ci.ADX >= th.TrendADX {
		confirmations++
		reasons = append(reasons, fmt.Sprintf("adx %.1f >= %.1f", ci.ADX, th.TrendADX))
	}
	if ci.VolumeConfirmed {
		confirmations++
		reasons = append(reasons, "volume confirmed")
	}

	switch {
	case ci.ATRRatio >= th.VolatileATRRatio && confirmations > 0:
		strength := 0.5 + (ci.ATRRatio/th.VolatileATRRatio - 1) + 0.1*float64(confirmations-1)
		return Evaluation{
			Regime:    models.RegimeVolatile,
			Qualifies: true,
			Strength:  clamp01(strength),
			Reasons:   append([]string{fmt.Sprintf("atr ratio %.2f >= %.2f", ci.ATRRatio, th.VolatileATRRatio)}, reasons...),
		}

	case ci.ATRRatio <= th.StableATRRatio && ci.BBWidthRatio <= th.StableBBRatio:
		strength := 0.5 + (1 - ci.ATRRatio/th.StableATRRatio) + 0.5*(1-ci.BBWidthRatio/th.StableBBRatio)
		return Evaluation{
			Regime:    models.RegimeStable,
			Qualifies: true,
			Strength:  clamp01(strength),
			Reasons: []string{
				fmt.Sprintf("atr ratio %.2f <= %.2f", ci.ATRRatio, th.StableATRRatio),
				fmt.Sprintf("bb width ratio %.2f <= %.2f", ci.BBWidthRatio, th.StableBBRatio),
			},
		}
	}

	// distance to the nearest boundary, scaled to the transitional band
	span := th.VolatileATRRatio - th.StableATRRatio
	strength := 0.3
	if span > 0 {
		d := min(abs(ci.ATRRatio-th.StableATRRatio), abs(th.VolatileATRRatio-ci.ATRRatio))
		strength += min(d/span, 0.5)
	}
	return Evaluation{
		Regime:    models.RegimeTransitional,
		Qualifies: true,
		Strength:  clamp01(strength),
		Reasons:   []string{fmt.Sprintf("atr ratio %.2f between stable and volatile bands", ci.ATRRatio)},
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
