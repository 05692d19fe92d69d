package models

import (
	"strings"
	"time"
)

// Duration returns the bar length of a timeframe, or 0 when the label is unknown
func (tf Timeframe) Duration() time.Duration {
	switch Timeframe(strings.ToLower(string(tf))) {
	case "1min", "1m":
		return time.Minute
	case "5min", "5m":
		return 5 * time.Minute
	case "15min", "15m":
		return 15 * time.Minute
	case "30min", "30m":
		return 30 * time.Minute
	case "45min":
		return 45 * time.Minute
	case "1h", "60min":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "8h":
		return 8 * time.Hour
	case "1day", "1d":
		return 24 * time.Hour
	case "1week", "1w":
		return 7 * 24 * time.Hour
	}
	return 0
}
