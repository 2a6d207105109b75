package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrator_SQLiteUpDown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	mg, err := NewMigrator(DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mg.Close() })

	changed, err := mg.Up()
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = mg.Up()
	require.NoError(t, err)
	assert.False(t, changed, "second run is a no-op")

	v, dirty, err := mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)

	assert.ErrorIs(t, mg.Down(1, false), ErrConfirmationRequired)
	v, _, err = mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v, "unconfirmed down changes nothing")

	require.NoError(t, mg.Down(1, true))
	v, _, err = mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
}

func TestOpenSQLite_TablesAfterMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	mg, err := NewMigrator(DriverSQLite, path)
	require.NoError(t, err)
	_, err = mg.Up()
	require.NoError(t, err)
	require.NoError(t, mg.Close())

	db, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"fee_types", "fee_structures", "fee_structure_components", "ledger_transactions", "ledger_sequences"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestNewMigrator_UnknownDriver(t *testing.T) {
	_, err := NewMigrator(DriverMemory, "")
	assert.Error(t, err)
}
