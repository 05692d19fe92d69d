package regime

import "github.com/Alias1177/volregime/models"

// Strategy styles
const (
	StyleTrend         = "trend"
	StyleBreakout      = "breakout"
	StyleMeanReversion = "mean_reversion"
	StyleStandAside    = "stand_aside"
)

var hints = map[models.Regime]models.StrategyHints{
	models.RegimeStable:             {PreferredStyle: StyleMeanReversion, SizeMultiplier: 1.0},
	models.RegimeTransitional:       {PreferredStyle: StyleTrend, SizeMultiplier: 0.8},
	models.RegimeVolatile:           {PreferredStyle: StyleTrend, WidenStops: true, SizeMultiplier: 0.6},
	models.RegimePreBreakoutTension: {PreferredStyle: StyleBreakout, SizeMultiplier: 0.7},
	models.RegimePostBreakoutDecay:  {PreferredStyle: StyleMeanReversion, AvoidBreakoutEntries: true, SizeMultiplier: 0.7},
	models.RegimeFragmentedChop:     {PreferredStyle: StyleStandAside, AvoidBreakoutEntries: true, WidenStops: true, SizeMultiplier: 0.5},
	models.RegimeSessionSwitchFlare: {PreferredStyle: StyleStandAside, AvoidBreakoutEntries: true, WidenStops: true, SizeMultiplier: 0.5},
}

// HintsFor returns the advisory strategy fields for r
func HintsFor(r models.Regime) models.StrategyHints {
	if h, ok := hints[r]; ok {
		return h
	}
	return models.StrategyHints{PreferredStyle: StyleStandAside, SizeMultiplier: 0.5}
}
