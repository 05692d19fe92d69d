package breakout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/database"
	"github.com/Alias1177/volregime/internal/logging"
	"github.com/Alias1177/volregime/internal/metrics"
	"github.com/Alias1177/volregime/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Tracker answers breakout questions from the cache first and the store second.
// Without a store, or while the store is failing, it runs cache-only.
type Tracker struct {
	mu         sync.Mutex
	store      *Store
	cache      *Cache
	cfg        config.StoreConfig
	thresholds func(symbol string) config.Thresholds
	maxAge     func() time.Duration
	warn       rate.Sometimes
	sweep      rate.Sometimes
	log        zerolog.Logger
}

var _ models.BreakoutTracker = (*Tracker)(nil)

// NewTracker opens the configured store. Failing to open it is not fatal:
// the tracker logs a warning and runs cache-only.
func NewTracker(ctx context.Context, cfg *config.Config) *Tracker {
	t := newTracker(nil, cfg)
	if cfg.Store.Driver == "none" {
		t.log.Info().Msg("Breakout store disabled, running cache-only")
		return t
	}

	db, err := database.Open(ctx, cfg.Store)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("open").Inc()
		t.log.Warn().Err(err).Msg("Breakout store unavailable, running cache-only")
		return t
	}
	t.store = NewStore(db, cfg.Store)
	return t
}

// NewTrackerWithStore builds a tracker around an existing store; store may be nil
func NewTrackerWithStore(store *Store, cfg *config.Config) *Tracker {
	return newTracker(store, cfg)
}

func newTracker(store *Store, cfg *config.Config) *Tracker {
	return &Tracker{
		store:      store,
		cache:      NewCache(),
		cfg:        cfg.Store,
		thresholds: cfg.ThresholdsFor,
		maxAge:     cfg.LongestBreakoutMaxAge,
		warn:       rate.Sometimes{Interval: time.Minute},
		sweep:      rate.Sometimes{Interval: cfg.Store.CleanupInterval},
		log:        logging.Component("breakout"),
	}
}

// CacheOnly reports whether the durable store is out of the picture
func (t *Tracker) CacheOnly() bool {
	return t.store == nil || !t.store.Available()
}

// RecordBreakout stores a new active breakout for the pair, invalidating the previous one
func (t *Tracker) RecordBreakout(ctx context.Context, symbol string, tf models.Timeframe, typ models.BreakoutType, price float64, at time.Time) (*models.BreakoutEvent, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown breakout type %q", typ)
	}
	ev := &models.BreakoutEvent{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Timeframe:  tf,
		Type:       typ,
		Price:      price,
		DetectedAt: at.UTC(),
		Active:     true,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return ev, t.recordLocked(ctx, ev)
}

func (t *Tracker) recordLocked(ctx context.Context, ev *models.BreakoutEvent) error {
	th := t.thresholds(ev.Symbol)

	if t.store != nil {
		if err := t.store.Record(ctx, ev); err != nil {
			t.degraded(err, ev.Symbol, ev.Timeframe, "record")
			// keep recency answerable until the event would expire anyway
			t.cache.Set(ev.Symbol, ev.Timeframe, ev, th.BreakoutMaxAge)
			metrics.BreakoutsRecorded.WithLabelValues(string(ev.Type)).Inc()
			return err
		}
		t.cache.Set(ev.Symbol, ev.Timeframe, ev, t.cfg.CacheTTL)
		t.sweep.Do(func() { t.cleanupLocked(ctx, ev.DetectedAt) })
	} else {
		t.cache.Set(ev.Symbol, ev.Timeframe, ev, th.BreakoutMaxAge)
	}

	metrics.BreakoutsRecorded.WithLabelValues(string(ev.Type)).Inc()
	t.log.Debug().
		Str("symbol", ev.Symbol).
		Str("timeframe", string(ev.Timeframe)).
		Str("type", string(ev.Type)).
		Str("direction", ev.Direction).
		Float64("price", ev.Price).
		Time("detected_at", ev.DetectedAt).
		Msg("Breakout recorded")
	return nil
}

// active returns the pair's active event from the cache or the store.
// Store failures are logged and reported as "unknown" (nil).
func (t *Tracker) active(ctx context.Context, symbol string, tf models.Timeframe) *models.BreakoutEvent {
	if ev, ok := t.cache.Get(symbol, tf); ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return ev
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	if t.store == nil {
		return nil
	}
	ev, err := t.store.Active(ctx, symbol, tf)
	if err != nil {
		t.degraded(err, symbol, tf, "active")
		return nil
	}
	t.cache.Set(symbol, tf, ev, t.cfg.CacheTTL)
	return ev
}

// TimeSinceBreakout reports the age of the pair's active breakout, or nil when
// there is none, it is older than the max age, or the store cannot be reached.
func (t *Tracker) TimeSinceBreakout(ctx context.Context, symbol string, tf models.Timeframe, now time.Time) *models.BreakoutInfo {
	ev := t.active(ctx, symbol, tf)
	if ev == nil {
		return nil
	}
	th := t.thresholds(symbol)

	age := now.Sub(ev.DetectedAt)
	if age > th.BreakoutMaxAge {
		return nil
	}
	if age < 0 {
		age = 0
	}
	return &models.BreakoutInfo{
		Minutes:    age.Minutes(),
		Type:       ev.Type,
		Price:      ev.Price,
		DetectedAt: ev.DetectedAt,
		IsRecent:   age < th.BreakoutRecency,
	}
}

// DetectBreakout checks the snapshot's newest bar for a breakout and records it.
// A bar already covered by the active event, or a same-type repeat inside the
// cooldown, is not recorded again.
func (t *Tracker) DetectBreakout(ctx context.Context, snap *models.TimeframeSnapshot) *models.BreakoutEvent {
	if snap == nil {
		return nil
	}
	th := t.thresholds(snap.Symbol)
	sig := Detect(snap.Candles, th)
	if sig == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if existing := t.active(ctx, snap.Symbol, snap.Timeframe); existing != nil {
		if !existing.DetectedAt.Before(sig.At) {
			return nil
		}
		if existing.Type == sig.Type && sig.At.Sub(existing.DetectedAt) < th.BreakoutCooldown {
			return nil
		}
	}

	ev := &models.BreakoutEvent{
		ID:         uuid.NewString(),
		Symbol:     snap.Symbol,
		Timeframe:  snap.Timeframe,
		Type:       sig.Type,
		Direction:  sig.Direction,
		Price:      sig.Price,
		DetectedAt: sig.At.UTC(),
		Active:     true,
	}
	// a failed store write still leaves the event in the cache
	_ = t.recordLocked(ctx, ev)
	return ev
}

// Cleanup deactivates events past the longest max age of any symbol and
// deletes rows past retention. Shorter per-symbol max ages are applied by
// TimeSinceBreakout when the event is read.
func (t *Tracker) Cleanup(ctx context.Context, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleanupLocked(ctx, now)
}

func (t *Tracker) cleanupLocked(ctx context.Context, now time.Time) error {
	maxAge := t.maxAge()
	purged := t.cache.Purge(now.Add(-maxAge))

	if t.store == nil {
		return nil
	}
	deactivated, err := t.store.DeactivateOlderThan(ctx, now.Add(-maxAge))
	if err != nil {
		t.degraded(err, "", "", "cleanup")
		return err
	}
	deleted, err := t.store.DeleteOlderThan(ctx, now.Add(-max(t.cfg.Retention, maxAge)))
	if err != nil {
		t.degraded(err, "", "", "cleanup")
		return err
	}

	t.log.Debug().
		Int("cache_purged", purged).
		Int64("deactivated", deactivated).
		Int64("deleted", deleted).
		Msg("Breakout cleanup finished")
	return nil
}

// Close releases the store
func (t *Tracker) Close() error {
	if t.store == nil {
		return nil
	}
	return t.store.Close()
}

func (t *Tracker) degraded(err error, symbol string, tf models.Timeframe, op string) {
	t.warn.Do(func() {
		evt := t.log.Warn().Err(err).Str("op", op)
		if symbol != "" {
			evt = evt.Str("symbol", symbol).Str("timeframe", string(tf))
		}
		if errors.Is(err, ErrStoreUnavailable) {
			evt.Msg("Breakout store circuit open, serving from cache")
			return
		}
		evt.Msg("Breakout store failed, serving from cache")
	})
}
