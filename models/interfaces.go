package models

import (
	"context"
	"time"
)

// BreakoutTracker records breakouts and answers time-since-breakout queries.
// Implementations never fail the caller: unavailability degrades to "unknown".
type BreakoutTracker interface {
	DetectBreakout(ctx context.Context, snap *TimeframeSnapshot) *BreakoutEvent
	RecordBreakout(ctx context.Context, symbol string, tf Timeframe, typ BreakoutType, price float64, at time.Time) (*BreakoutEvent, error)
	TimeSinceBreakout(ctx context.Context, symbol string, tf Timeframe, now time.Time) *BreakoutInfo
}
