package tracking

import (
	"sort"
	"sync"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/calculate"
	"github.com/Alias1177/volregime/internal/metrics"
	"github.com/Alias1177/volregime/models"
	"github.com/rs/zerolog/log"
)

// Key identifies one symbol x timeframe history
type Key struct {
	Symbol    string
	Timeframe models.Timeframe
}

// window is a bounded FIFO of samples ordered by bar time
type window struct {
	capacity int
	items    []Sample
}

// push appends s, evicting the oldest sample when full. A sample for the same
// bar as the newest one replaces it; samples older than the newest are ignored.
func (w *window) push(s Sample) bool {
	if n := len(w.items); n > 0 {
		last := w.items[n-1].At
		switch {
		case s.At.Equal(last):
			w.items[n-1] = s
			return true
		case s.At.Before(last):
			return false
		}
	}
	w.items = append(w.items, s)
	if w.capacity > 0 && len(w.items) > w.capacity {
		w.items = append(w.items[:0], w.items[len(w.items)-w.capacity:]...)
	}
	return true
}

func (w *window) snapshot() []Sample {
	out := make([]Sample, len(w.items))
	copy(out, w.items)
	return out
}

// History is the rolling metric state of one symbol x timeframe
type History struct {
	mu       sync.Mutex
	atr      window
	wick     window
	bbWidth  window
	intrabar window
	updated  time.Time
}

func newHistory(th config.Thresholds) *History {
	return &History{
		atr:      window{capacity: th.HistorySize},
		wick:     window{capacity: th.WickWindow + 1},
		bbWidth:  window{capacity: th.BBWidthWindow},
		intrabar: window{capacity: th.IntrabarWindow + 1},
	}
}

// Registry owns every MetricHistory. Histories are created on first sight of a
// pair and live for the process lifetime unless reset.
type Registry struct {
	mu      sync.Mutex
	periods calculate.Periods
	pairs   map[Key]*History
}

// NewRegistry creates an empty registry; periods drive the BB width backfill
func NewRegistry(periods calculate.Periods) *Registry {
	return &Registry{
		periods: periods,
		pairs:   make(map[Key]*History),
	}
}

func (r *Registry) get(key Key) (*History, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.pairs[key]
	return h, ok
}

// Lock serializes access to one pair and returns its history, which stays
// locked until Unlock. Callers that also touch the breakout store must take
// this lock first.
func (r *Registry) Lock(key Key) *History {
	for {
		r.mu.Lock()
		h, ok := r.pairs[key]
		if !ok {
			// placeholder, sized on the first UpdateLocked
			h = &History{}
			r.pairs[key] = h
			metrics.TrackedPairs.Set(float64(len(r.pairs)))
		}
		r.mu.Unlock()

		h.mu.Lock()
		// a Reset between lookup and lock retired h; retry on the live history
		if cur, _ := r.get(key); cur == h {
			return h
		}
		h.mu.Unlock()
	}
}

// Unlock releases a history obtained from Registry.Lock
func (h *History) Unlock() {
	h.mu.Unlock()
}

// Update locks the pair, applies one snapshot and returns the tracker readings
func (r *Registry) Update(key Key, snap *models.TimeframeSnapshot, th config.Thresholds) models.TrackerReadings {
	h := r.Lock(key)
	defer h.Unlock()
	return r.UpdateLocked(key, h, snap, th)
}

// UpdateLocked is Update for callers already holding h from Lock.
// Each history receives at most one sample per call.
func (r *Registry) UpdateLocked(key Key, h *History, snap *models.TimeframeSnapshot, th config.Thresholds) models.TrackerReadings {
	if h == nil || snap == nil || len(snap.Candles) == 0 {
		return EmptyReadings()
	}

	if h.updated.IsZero() {
		r.initHistory(key, h, snap, th)
	}

	last := snap.Last()
	at := last.Timestamp
	ind := snap.Indicators

	if ind.ATR14 > 0 && calculate.IsFinite(ind.ATR14) {
		h.atr.push(Sample{At: at, Value: ind.ATR14})
	}
	h.wick.push(Sample{At: at, Value: calculate.WickRatio(last, th.WickEpsilon, th.MaxWickRatio)})
	if w := ind.BBWidth(); w > 0 && calculate.IsFinite(w) {
		h.bbWidth.push(Sample{At: at, Value: w})
	}
	h.intrabar.push(Sample{At: at, Value: calculate.IntrabarRatio(last, th.WickEpsilon, th.MaxWickRatio)})
	h.updated = time.Now()

	return models.TrackerReadings{
		ATR:      ATRTrend(h.atr.items, ind.ATR14, ind.ATR50, snap.Timeframe, th),
		Wick:     WickVariance(h.wick.items, th),
		BBWidth:  BBWidthTrend(h.bbWidth.items, th),
		Intrabar: IntrabarVolatility(h.intrabar.items, th),
	}
}

// initHistory sizes a new history and backfills it from the bars that precede
// the current one, so a cold process does not need a full window of calls.
func (r *Registry) initHistory(key Key, h *History, snap *models.TimeframeSnapshot, th config.Thresholds) {
	fresh := newHistory(th)
	h.atr, h.wick, h.bbWidth, h.intrabar = fresh.atr, fresh.wick, fresh.bbWidth, fresh.intrabar

	prior := snap.Candles[:len(snap.Candles)-1]
	if len(prior) == 0 {
		return
	}

	from := func(capacity int) int { return max(0, len(prior)-capacity) }

	if len(snap.ATRSeries) == len(snap.Candles) {
		for i := from(th.HistorySize); i < len(prior); i++ {
			if v := snap.ATRSeries[i]; v > 0 && calculate.IsFinite(v) {
				h.atr.push(Sample{At: prior[i].Timestamp, Value: v})
			}
		}
	}
	for i := from(th.WickWindow); i < len(prior); i++ {
		h.wick.push(Sample{At: prior[i].Timestamp, Value: calculate.WickRatio(prior[i], th.WickEpsilon, th.MaxWickRatio)})
	}
	for i := from(th.IntrabarWindow); i < len(prior); i++ {
		h.intrabar.push(Sample{At: prior[i].Timestamp, Value: calculate.IntrabarRatio(prior[i], th.WickEpsilon, th.MaxWickRatio)})
	}
	if widths := calculate.BBWidthSeries(prior, r.periods.BBPeriod, r.periods.BBStdDev); widths != nil {
		for i := from(th.BBWidthWindow - 1); i < len(prior); i++ {
			if widths[i] > 0 {
				h.bbWidth.push(Sample{At: prior[i].Timestamp, Value: widths[i]})
			}
		}
	}

	log.Debug().
		Str("component", "tracking").
		Str("symbol", key.Symbol).
		Str("timeframe", string(key.Timeframe)).
		Int("atr_samples", len(h.atr.items)).
		Int("wick_samples", len(h.wick.items)).
		Msg("Initialized metric history")
}

// History returns copies of the stored ATR and wick samples for a pair
func (r *Registry) History(key Key) (atr, wick []Sample) {
	h, ok := r.get(key)
	if !ok {
		return nil, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.atr.snapshot(), h.wick.snapshot()
}

// Reset drops the history of one pair. It waits for a caller holding the
// pair; the next Lock starts from an empty history.
func (r *Registry) Reset(key Key) {
	h, ok := r.get(key)
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	r.mu.Lock()
	if r.pairs[key] == h {
		delete(r.pairs, key)
	}
	metrics.TrackedPairs.Set(float64(len(r.pairs)))
	r.mu.Unlock()
}

// Pairs lists tracked pairs sorted by symbol then timeframe
func (r *Registry) Pairs() []Key {
	r.mu.Lock()
	keys := make([]Key, 0, len(r.pairs))
	for k := range r.pairs {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Timeframe < keys[j].Timeframe
	})
	return keys
}

// EmptyReadings is the neutral result for a pair with no usable data
func EmptyReadings() models.TrackerReadings {
	return models.TrackerReadings{
		ATR:      models.ATRTrend{ATRRatio: 1.0, Direction: models.TrendInsufficientData},
		BBWidth:  models.BBWidthTrend{Percentile: 50, WidthRatio: 1.0, Direction: models.TrendInsufficientData},
		Intrabar: models.IntrabarVolatility{},
	}
}
