package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Supported dialects
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name
	sqlx.BindDriver(DialectSQLite, sqlx.QUESTION)
}

// DB represents a database connection
type DB struct {
	*sqlx.DB
	Dialect string
}

// Open connects to the breakout store and makes sure the schema exists
func Open(ctx context.Context, cfg config.StoreConfig) (*DB, error) {
	var dsn string
	switch cfg.Driver {
	case DialectSQLite:
		dsn = sqliteDSN(cfg.DSN, cfg.BusyTimeout)
	case DialectPostgres:
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == DialectSQLite {
		// one writer at a time; readers queue behind the busy timeout
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.BusyTimeout+time.Second)
	defer cancel()

	// Check connection
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	// Create tables if they don't exist
	if err := createTables(pingCtx, db); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().
		Str("component", "database").
		Str("driver", cfg.Driver).
		Msg("Breakout store ready")

	return &DB{DB: db, Dialect: cfg.Driver}, nil
}

// sqliteDSN appends the pragmas the store relies on to a file path or URI
func sqliteDSN(dsn string, busy time.Duration) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_txlock=immediate",
		dsn, sep, busy.Milliseconds())
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS breakout_events (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			type TEXT NOT NULL,
			direction TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL,
			detected_at BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_breakout_events_active
			ON breakout_events (symbol, timeframe, active)`,
		`CREATE INDEX IF NOT EXISTS idx_breakout_events_detected_at
			ON breakout_events (detected_at)`,
		// at most one active event per symbol x timeframe
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_breakout_events_one_active
			ON breakout_events (symbol, timeframe) WHERE active`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
