package breakout

import (
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/calculate"
	"github.com/Alias1177/volregime/models"
)

// Directions of a breakout
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Signal is a breakout found in the newest bar of a window
type Signal struct {
	Type      models.BreakoutType
	Direction string
	Price     float64
	At        time.Time
}

// Detect checks the newest bar against the preceding th.BreakoutLookback bars.
// Price breaks are checked first, then structure, then volume.
func Detect(candles []models.Candle, th config.Thresholds) *Signal {
	lookback := th.BreakoutLookback
	if lookback < 3 || len(candles) < lookback+1 {
		return nil
	}
	last := candles[len(candles)-1]
	prior := candles[len(candles)-1-lookback : len(candles)-1]

	if sig := priceBreak(last, prior); sig != nil {
		return sig
	}
	if sig := structureBreak(last, prior, th.BreakoutSwingStrength); sig != nil {
		return sig
	}
	return volumeBreak(last, prior, th.BreakoutVolumeMultiple)
}

// priceBreak fires when the close clears the range of the prior bars
func priceBreak(last models.Candle, prior []models.Candle) *Signal {
	high, low := prior[0].High, prior[0].Low
	for _, c := range prior[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}

	switch {
	case last.Close > high:
		return &Signal{Type: models.BreakoutPrice, Direction: DirectionUp, Price: last.Close, At: last.Timestamp}
	case last.Close < low:
		return &Signal{Type: models.BreakoutPrice, Direction: DirectionDown, Price: last.Close, At: last.Timestamp}
	}
	return nil
}

// structureBreak fires when the close crosses the most recent swing pivot
func structureBreak(last models.Candle, prior []models.Candle, strength int) *Signal {
	if strength < 1 || len(prior) < 2*strength+1 {
		return nil
	}
	prevClose := prior[len(prior)-1].Close

	if pivot, ok := lastSwing(prior, strength, func(c models.Candle) float64 { return c.High }, true); ok {
		if prevClose <= pivot && last.Close > pivot {
			return &Signal{Type: models.BreakoutStructure, Direction: DirectionUp, Price: last.Close, At: last.Timestamp}
		}
	}
	if pivot, ok := lastSwing(prior, strength, func(c models.Candle) float64 { return c.Low }, false); ok {
		if prevClose >= pivot && last.Close < pivot {
			return &Signal{Type: models.BreakoutStructure, Direction: DirectionDown, Price: last.Close, At: last.Timestamp}
		}
	}
	return nil
}

// lastSwing finds the newest bar whose value dominates strength bars on each side
func lastSwing(bars []models.Candle, strength int, value func(models.Candle) float64, high bool) (float64, bool) {
	for i := len(bars) - 1 - strength; i >= strength; i-- {
		v := value(bars[i])
		pivot := true
		for j := 1; j <= strength && pivot; j++ {
			left, right := value(bars[i-j]), value(bars[i+j])
			if high {
				pivot = v > left && v > right
			} else {
				pivot = v < left && v < right
			}
		}
		if pivot {
			return v, true
		}
	}
	return 0, false
}

// volumeBreak fires on a volume surge that comes with a wider than usual bar
func volumeBreak(last models.Candle, prior []models.Candle, multiple float64) *Signal {
	if !last.HasVolume || last.Volume <= 0 {
		return nil
	}
	vols := make([]float64, 0, len(prior))
	ranges := make([]float64, 0, len(prior))
	for _, c := range prior {
		ranges = append(ranges, c.Range())
		if c.HasVolume {
			vols = append(vols, c.Volume)
		}
	}
	avgVol := calculate.Mean(vols)
	if len(vols) == 0 || avgVol <= 0 || last.Volume < avgVol*multiple {
		return nil
	}
	if last.Range() <= calculate.Mean(ranges) {
		return nil
	}

	dir := DirectionUp
	if last.Close < last.Open {
		dir = DirectionDown
	}
	return &Signal{Type: models.BreakoutVolume, Direction: dir, Price: last.Close, At: last.Timestamp}
}
