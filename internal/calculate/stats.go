package calculate

import (
	"math"
	"sort"

	"github.com/Alias1177/volregime/models"
)

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Mean calculates simple average
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, value := range values {
		sum += value
	}

	return sum / float64(len(values))
}

// Variance returns the population variance, 0 for fewer than two values
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

// Median returns the median without modifying values
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// PercentileRank returns the share (0-100) of the other window members that
// are strictly below v. window is expected to contain v itself.
func PercentileRank(window []float64, v float64) float64 {
	if len(window) < 2 {
		return 50
	}
	below := 0
	for _, w := range window {
		if w < v {
			below++
		}
	}
	return float64(below) / float64(len(window)-1) * 100
}

// Slope fits y = a + b*x by least squares and returns b.
// Returns 0 when x has no spread.
func Slope(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return 0
	}
	mx, my := Mean(xs), Mean(ys)
	var num, den float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		num += dx * (ys[i] - my)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// PctChange returns (current-previous)/previous*100.
// A rise from zero counts as +100%, zero to zero as 0.
func PctChange(previous, current float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return (current - previous) / math.Abs(previous) * 100
}

// WickRatio returns (range - body) / max(body, eps), capped at maxRatio
func WickRatio(c models.Candle, eps, maxRatio float64) float64 {
	wicks := c.Range() - c.Body()
	if wicks <= 0 {
		return 0
	}
	return capRatio(wicks/math.Max(c.Body(), eps), maxRatio)
}

// IntrabarRatio returns range / max(body, eps), capped at maxRatio
func IntrabarRatio(c models.Candle, eps, maxRatio float64) float64 {
	if c.Range() <= 0 {
		return 0
	}
	return capRatio(c.Range()/math.Max(c.Body(), eps), maxRatio)
}

func capRatio(v, maxRatio float64) float64 {
	if !IsFinite(v) || v > maxRatio {
		return maxRatio
	}
	return v
}

// VWAP returns the volume-weighted typical price of the window.
// Without usable volume every bar gets equal weight.
func VWAP(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var pv, vol, plain float64
	for _, c := range candles {
		typical := (c.High + c.Low + c.Close) / 3
		plain += typical
		if c.HasVolume && c.Volume > 0 {
			pv += typical * c.Volume
			vol += c.Volume
		}
	}
	if vol == 0 {
		return plain / float64(len(candles))
	}
	return pv / vol
}
