package patterns

import (
	"math"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/models"
)

type boundary struct {
	at  time.Time
	def config.SessionBoundary
}

// DetectSessionTransition flags proximity (within window either side) to the
// nearest session boundary. Boundaries are UTC clock times and wrap at midnight.
func DetectSessionTransition(now time.Time, sessions []config.SessionBoundary, window time.Duration) models.SessionTransition {
	now = now.UTC()
	result := models.SessionTransition{}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var candidates []boundary
	for _, s := range sessions {
		h, m, err := s.Clock()
		if err != nil {
			continue
		}
		for _, offset := range []int{-1, 0, 1} {
			at := day.AddDate(0, 0, offset).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
			candidates = append(candidates, boundary{at: at, def: s})
		}
	}
	if len(candidates) == 0 {
		return result
	}

	var nearest, latestPast *boundary
	for i := range candidates {
		b := &candidates[i]
		if nearest == nil || math.Abs(now.Sub(b.at).Seconds()) < math.Abs(now.Sub(nearest.at).Seconds()) {
			nearest = b
		}
		if !b.at.After(now) && (latestPast == nil || b.at.After(latestPast.at)) {
			latestPast = b
		}
	}

	if latestPast != nil {
		result.CurrentSession = latestPast.def.To
	}
	result.Boundary = nearest.at
	result.MinutesFrom = now.Sub(nearest.at).Minutes()

	diff := now.Sub(nearest.at)
	if diff < 0 {
		diff = -diff
	}
	if diff <= window {
		result.InWindow = true
		result.Transition = nearest.def.Name()
	}
	return result
}
