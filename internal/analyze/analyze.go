package analyze

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/breakout"
	"github.com/Alias1177/volregime/internal/calculate"
	"github.com/Alias1177/volregime/internal/logging"
	"github.com/Alias1177/volregime/internal/metrics"
	"github.com/Alias1177/volregime/internal/normalize"
	"github.com/Alias1177/volregime/internal/tracking"
	"github.com/Alias1177/volregime/models"
	"github.com/rs/zerolog"
)

// Frame is the raw input for one timeframe
type Frame struct {
	// Bars is any shape normalize.Window accepts: []models.Candle, normalize.Columns,
	// normalize.Rows, normalize.Records, map[string][]float64 and friends.
	Bars any
	// Indicators are the caller's precomputed values; zero fields are derived from Bars.
	Indicators models.IndicatorSet
}

// Request is one DetectRegime call
type Request struct {
	Symbol string
	Now    time.Time // defaults to the analyzer clock
	Frames map[models.Timeframe]Frame
}

// Analyzer owns the metric registry and the breakout tracker and classifies
// one symbol per DetectRegime call. It is safe for concurrent use.
type Analyzer struct {
	cfg       *config.Config
	periods   calculate.Periods
	registry  *tracking.Registry
	breakouts models.BreakoutTracker
	owned     io.Closer
	now       func() time.Time
	log       zerolog.Logger
	closeOnce sync.Once
}

// Option customizes an Analyzer
type Option func(*Analyzer)

// WithBreakoutTracker replaces the store-backed tracker. The caller keeps ownership.
func WithBreakoutTracker(t models.BreakoutTracker) Option {
	return func(a *Analyzer) { a.breakouts = t }
}

// WithRegistry shares a metric registry between analyzers
func WithRegistry(r *tracking.Registry) Option {
	return func(a *Analyzer) { a.registry = r }
}

// WithClock sets the time source used when a request carries no Now
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithPeriods overrides the indicator periods used for enrichment
func WithPeriods(p calculate.Periods) Option {
	return func(a *Analyzer) { a.periods = p }
}

// New builds an analyzer. Unless a tracker is supplied it opens the configured
// breakout store; an unreachable store leaves the analyzer in cache-only mode.
func New(ctx context.Context, cfg *config.Config, opts ...Option) *Analyzer {
	a := &Analyzer{
		cfg:     cfg,
		periods: calculate.DefaultPeriods(),
		now:     time.Now,
		log:     logging.Component("analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = tracking.NewRegistry(a.periods)
	}
	if a.breakouts == nil {
		t := breakout.NewTracker(ctx, cfg)
		a.breakouts = t
		a.owned = t
	}
	return a
}

// Close releases the breakout store if the analyzer opened it
func (a *Analyzer) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.owned != nil {
			err = a.owned.Close()
		}
	})
	return err
}

// Registry exposes the metric registry, mainly for resets and inspection
func (a *Analyzer) Registry() *tracking.Registry {
	return a.registry
}

// timeframes returns the configured timeframes followed by any extra ones in the request
func (a *Analyzer) timeframes(frames map[models.Timeframe]Frame) []models.Timeframe {
	ordered := a.cfg.Timeframes.Ordered()
	seen := make(map[models.Timeframe]bool, len(ordered))
	for _, tf := range ordered {
		seen[tf] = true
	}
	var extra []models.Timeframe
	for tf := range frames {
		if !seen[tf] {
			extra = append(extra, tf)
		}
	}
	sort.Slice(extra, func(i, j int) bool {
		di, dj := extra[i].Duration(), extra[j].Duration()
		if di != dj {
			return di < dj
		}
		return extra[i] < extra[j]
	})
	return append(ordered, extra...)
}

// snapshot normalizes and enriches one frame; nil when the frame is unusable
func (a *Analyzer) snapshot(symbol string, tf models.Timeframe, frame Frame, now time.Time, th config.Thresholds) *models.TimeframeSnapshot {
	candles := normalize.Window(frame.Bars, tf, now)
	if len(candles) == 0 {
		return nil
	}
	periods := a.periods
	periods.VolumeMultiple = th.VolumeConfirmMultiple
	return &models.TimeframeSnapshot{
		Symbol:     symbol,
		Timeframe:  tf,
		At:         now,
		Candles:    candles,
		Indicators: calculate.Enrich(candles, frame.Indicators, periods),
		ATRSeries:  calculate.ATRSeries(candles, periods.ATRShort),
	}
}

// safe runs one component and turns a panic into fallback plus a warning
func safe[T any](a *Analyzer, res *models.RegimeResult, component string, fallback T, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ComponentFaults.WithLabelValues(component).Inc()
			a.log.Warn().
				Str("symbol", res.Symbol).
				Str("failed", component).
				Interface("panic", r).
				Msg("Component failed, using safe default")
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", component, r))
			out = fallback
		}
	}()
	return fn()
}

// Verify interface compliance
var _ io.Closer = (*Analyzer)(nil)

func symbolOf(req Request) string {
	if req.Symbol == "" {
		return "UNKNOWN"
	}
	return req.Symbol
}
