package breakout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/Alias1177/volregime/internal/database"
	"github.com/Alias1177/volregime/internal/metrics"
	"github.com/Alias1177/volregime/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrStoreUnavailable is returned while the circuit breaker is open
var ErrStoreUnavailable = errors.New("breakout store unavailable")

// eventRow is the breakout_events row layout
type eventRow struct {
	ID         string  `db:"id"`
	Symbol     string  `db:"symbol"`
	Timeframe  string  `db:"timeframe"`
	Type       string  `db:"type"`
	Direction  string  `db:"direction"`
	Price      float64 `db:"price"`
	DetectedAt int64   `db:"detected_at"`
	Active     bool    `db:"active"`
	CreatedAt  int64   `db:"created_at"`
}

func toRow(ev *models.BreakoutEvent, created time.Time) eventRow {
	return eventRow{
		ID:         ev.ID,
		Symbol:     ev.Symbol,
		Timeframe:  string(ev.Timeframe),
		Type:       string(ev.Type),
		Direction:  ev.Direction,
		Price:      ev.Price,
		DetectedAt: ev.DetectedAt.UnixMilli(),
		Active:     ev.Active,
		CreatedAt:  created.UnixMilli(),
	}
}

func (r eventRow) event() *models.BreakoutEvent {
	return &models.BreakoutEvent{
		ID:         r.ID,
		Symbol:     r.Symbol,
		Timeframe:  models.Timeframe(r.Timeframe),
		Type:       models.BreakoutType(r.Type),
		Direction:  r.Direction,
		Price:      r.Price,
		DetectedAt: time.UnixMilli(r.DetectedAt).UTC(),
		Active:     r.Active,
	}
}

// Store is the durable breakout table behind a circuit breaker
type Store struct {
	db      *database.DB
	cfg     config.StoreConfig
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewStore wraps an open database
func NewStore(db *database.DB, cfg config.StoreConfig) *Store {
	logger := log.With().Str("component", "breakout_store").Logger()

	settings := gobreaker.Settings{
		Name:    "breakout-store",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.Set(float64(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Breakout store circuit breaker state changed")
		},
	}

	return &Store{
		db:      db,
		cfg:     cfg,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     logger,
	}
}

// Available reports whether calls currently reach the database
func (s *Store) Available() bool {
	return s.breaker.State() != gobreaker.StateOpen
}

// Record deactivates the pair's active event and inserts ev as the new active
// one in a single transaction. Lock contention is retried up to the busy timeout.
func (s *Store) Record(ctx context.Context, ev *models.BreakoutEvent) error {
	row := toRow(ev, time.Now())
	row.Active = true

	deactivate := s.db.Rebind(`UPDATE breakout_events SET active = FALSE
		WHERE symbol = ? AND timeframe = ? AND active = TRUE`)
	insert := `INSERT INTO breakout_events
		(id, symbol, timeframe, type, direction, price, detected_at, active, created_at)
		VALUES (:id, :symbol, :timeframe, :type, :direction, :price, :detected_at, :active, :created_at)`

	_, err := s.execute(ctx, "record", func(ctx context.Context) (any, error) {
		return nil, s.retry(ctx, func() error {
			tx, err := s.db.BeginTxx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin: %w", err)
			}
			defer tx.Rollback()

			if _, err := tx.ExecContext(ctx, deactivate, row.Symbol, row.Timeframe); err != nil {
				return fmt.Errorf("deactivate: %w", err)
			}
			if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
				return fmt.Errorf("insert: %w", err)
			}
			return tx.Commit()
		})
	})
	return err
}

// Active returns the active event of a pair, or nil when there is none
func (s *Store) Active(ctx context.Context, symbol string, tf models.Timeframe) (*models.BreakoutEvent, error) {
	query := s.db.Rebind(`SELECT id, symbol, timeframe, type, direction, price, detected_at, active, created_at
		FROM breakout_events
		WHERE symbol = ? AND timeframe = ? AND active = TRUE
		ORDER BY detected_at DESC
		LIMIT 1`)

	res, err := s.execute(ctx, "active", func(ctx context.Context) (any, error) {
		var row eventRow
		err := s.db.GetContext(ctx, &row, query, symbol, string(tf))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return row.event(), nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.(*models.BreakoutEvent), nil
}

// ActiveCount returns how many active events a pair has; the schema keeps it at most 1
func (s *Store) ActiveCount(ctx context.Context, symbol string, tf models.Timeframe) (int, error) {
	query := s.db.Rebind(`SELECT COUNT(*) FROM breakout_events
		WHERE symbol = ? AND timeframe = ? AND active = TRUE`)

	res, err := s.execute(ctx, "active_count", func(ctx context.Context) (any, error) {
		var n int
		err := s.db.GetContext(ctx, &n, query, symbol, string(tf))
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

// DeactivateOlderThan invalidates active events detected before cutoff
func (s *Store) DeactivateOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := s.db.Rebind(`UPDATE breakout_events SET active = FALSE
		WHERE active = TRUE AND detected_at < ?`)
	return s.execAffected(ctx, "deactivate_old", query, cutoff.UnixMilli())
}

// DeleteOlderThan removes inactive events detected before cutoff
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := s.db.Rebind(`DELETE FROM breakout_events
		WHERE active = FALSE AND detected_at < ?`)
	return s.execAffected(ctx, "delete_old", query, cutoff.UnixMilli())
}

func (s *Store) execAffected(ctx context.Context, op, query string, args ...any) (int64, error) {
	res, err := s.execute(ctx, op, func(ctx context.Context) (any, error) {
		var affected int64
		err := s.retry(ctx, func() error {
			result, err := s.db.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			affected, err = result.RowsAffected()
			return err
		})
		return affected, err
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// execute runs fn through the circuit breaker with the query timeout applied
func (s *Store) execute(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	res, err := s.breaker.Execute(func() (any, error) {
		qctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
		return fn(qctx)
	})
	if err == nil {
		return res, nil
	}

	metrics.StoreErrors.WithLabelValues(op).Inc()
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}

// retry repeats op while the database reports lock contention
func (s *Store) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = s.cfg.BusyTimeout

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isBusy(err) {
			return backoff.Permanent(err)
		}
		if err != nil {
			s.log.Debug().Err(err).Msg("Store busy, retrying")
		}
		return err
	}, backoff.WithContext(b, ctx))
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
