package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryRunsMigrations(t *testing.T) {
	conn, err := Open(Config{Path: MemoryPath})
	require.NoError(t, err)
	defer conn.Close()

	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&n))
	assert.Equal(t, 2, n)

	for _, table := range []string{"gps_points", "analysis_runs"} {
		var name string
		err := conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestOpenFileIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geo.db")

	conn, err := Open(Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	conn, err = Open(Config{Path: path})
	require.NoError(t, err)
	defer conn.Close()

	mm, err := NewMigrationManager(conn)
	require.NoError(t, err)
	migrations, err := mm.GetAppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: true}, migrations)
}

func TestTransaction(t *testing.T) {
	conn, err := Open(Config{})
	require.NoError(t, err)
	defer conn.Close()

	insert := func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO gps_points (trip_id, timestamp, latitude, longitude, simulated_speed_kmh) VALUES (1, 0, 0, 0, 0)")
		return err
	}

	boom := errors.New("boom")
	err = Transaction(context.Background(), conn, func(tx *sql.Tx) error {
		if err := insert(tx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, Transaction(context.Background(), conn, insert))

	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM gps_points").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMigrationManagerSource(t *testing.T) {
	conn, err := Open(Config{})
	require.NoError(t, err)
	defer conn.Close()

	_, err = newMigrationManager(conn, fstest.MapFS{}, "../migrations")
	assert.Error(t, err)

	mm, err := newMigrationManager(conn, fstest.MapFS{
		"sql/003_create_notes.sql": {Data: []byte("CREATE TABLE notes (id INTEGER PRIMARY KEY);")},
	}, "sql")
	require.NoError(t, err)
	require.NoError(t, mm.RunMigrations())

	applied, err := mm.GetAppliedMigrations()
	require.NoError(t, err)
	assert.True(t, applied[3])
}
