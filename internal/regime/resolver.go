package regime

import (
	"sort"

	"github.com/Alias1177/volregime/models"
)

// Precedence of the advanced regimes, most disruptive first.
// Basic regimes share priority 0 and never compete with each other.
var precedence = []models.Regime{
	models.RegimeSessionSwitchFlare,
	models.RegimeFragmentedChop,
	models.RegimePostBreakoutDecay,
	models.RegimePreBreakoutTension,
}

// PriorityOf returns the fixed priority of r; higher wins
func PriorityOf(r models.Regime) int {
	for i, p := range precedence {
		if p == r {
			return len(precedence) - i
		}
	}
	return 0
}

// Resolve picks exactly one regime. The highest-priority advanced candidate
// wins; equal priorities go to the most recent observation. When no advanced
// candidate qualified the basic result is returned unchanged.
//
// The returned slice holds every candidate in resolution order.
func Resolve(advanced []models.Candidate, basic models.Candidate) (models.Candidate, []models.Candidate) {
	ordered := make([]models.Candidate, 0, len(advanced)+1)
	for _, c := range advanced {
		if c.Regime.IsAdvanced() {
			c.Priority = PriorityOf(c.Regime)
			ordered = append(ordered, c)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.ObservedAt.Equal(b.ObservedAt) {
			return a.ObservedAt.After(b.ObservedAt)
		}
		return a.Regime < b.Regime
	})

	basic.Priority = 0
	ordered = append(ordered, basic)
	return ordered[0], ordered
}
