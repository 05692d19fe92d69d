package models

import "time"

// BreakoutType classifies what kind of range boundary was broken
type BreakoutType string

const (
	BreakoutPrice     BreakoutType = "price"
	BreakoutVolume    BreakoutType = "volume"
	BreakoutStructure BreakoutType = "structure"
)

// Valid reports whether t is a known breakout type
func (t BreakoutType) Valid() bool {
	return t == BreakoutPrice || t == BreakoutVolume || t == BreakoutStructure
}

// BreakoutEvent is the persisted record of a detected breakout.
// At most one active event exists per symbol x timeframe.
type BreakoutEvent struct {
	ID         string       `json:"id"`
	Symbol     string       `json:"symbol"`
	Timeframe  Timeframe    `json:"timeframe"`
	Type       BreakoutType `json:"type"`
	Direction  string       `json:"direction,omitempty"` // up or down
	Price      float64      `json:"price"`
	DetectedAt time.Time    `json:"detected_at"`
	Active     bool         `json:"active"`
}

// BreakoutInfo answers "how long ago was the last active breakout"
type BreakoutInfo struct {
	Minutes    float64      `json:"minutes"`
	Type       BreakoutType `json:"type"`
	Price      float64      `json:"price"`
	DetectedAt time.Time    `json:"detected_at"`
	IsRecent   bool         `json:"is_recent"`
}
