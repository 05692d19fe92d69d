package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Alias1177/volregime/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreConfig(t *testing.T) config.StoreConfig {
	cfg := config.Default().Store
	cfg.DSN = filepath.Join(t.TempDir(), "breakouts.db")
	return cfg
}

func TestOpenCreatesSchema(t *testing.T) {
	ctx := context.Background()
	cfg := testStoreConfig(t)

	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DialectSQLite, db.Dialect)

	var names []string
	require.NoError(t, db.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE tbl_name = 'breakout_events' ORDER BY name`))
	assert.Contains(t, names, "breakout_events")
	assert.Contains(t, names, "idx_breakout_events_active")
	assert.Contains(t, names, "idx_breakout_events_detected_at")
	assert.Contains(t, names, "uq_breakout_events_one_active")

	// reopening an existing file is a no-op for the schema
	require.NoError(t, db.Close())
	again, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestOneActivePerPair(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, testStoreConfig(t))
	require.NoError(t, err)
	defer db.Close()

	insert := db.Rebind(`INSERT INTO breakout_events
		(id, symbol, timeframe, type, price, detected_at, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	now := time.Now().UnixMilli()

	_, err = db.ExecContext(ctx, insert, "a", "EURUSD", "5min", "price", 1.1, now, true, now)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "b", "EURUSD", "5min", "volume", 1.2, now, true, now)
	assert.Error(t, err, "second active row must violate the partial unique index")

	_, err = db.ExecContext(ctx, insert, "c", "EURUSD", "5min", "volume", 1.2, now, false, now)
	assert.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "d", "EURUSD", "15min", "price", 1.2, now, true, now)
	assert.NoError(t, err)
}

func TestOpenUnsupportedDriver(t *testing.T) {
	cfg := testStoreConfig(t)
	cfg.Driver = "none"
	_, err := Open(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"a.db?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)&_txlock=immediate",
		sqliteDSN("a.db", 3*time.Second))
	assert.Equal(t,
		"file:a.db?mode=rwc&_pragma=busy_timeout(500)&_pragma=journal_mode(WAL)&_txlock=immediate",
		sqliteDSN("file:a.db?mode=rwc", 500*time.Millisecond))
}
