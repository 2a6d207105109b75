package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/SscSPs/student_ledger/migrations"
	migrate "github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage drivers understood by the migrator and the server.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// ErrConfirmationRequired guards every destructive migration.
var ErrConfirmationRequired = errors.New("destructive migration requires explicit confirmation")

// Migrator applies the embedded schema. It owns a dedicated *sql.DB that is
// closed together with the migrator.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator opens a migration connection for driver. dsn is a postgres URL or a sqlite file path.
func NewMigrator(driver, dsn string) (*Migrator, error) {
	var (
		db       *sql.DB
		instance migratedb.Driver
		dir      string
		err      error
	)
	switch driver {
	case DriverPostgres:
		if db, err = sql.Open("pgx", dsn); err != nil {
			return nil, fmt.Errorf("failed to open database connection for migrations: %w", err)
		}
		if err = db.Ping(); err == nil {
			instance, err = postgres.WithInstance(db, &postgres.Config{})
		}
		dir = migrations.PostgresDir
	case DriverSQLite:
		if db, err = sql.Open("sqlite3", SQLiteDSN(dsn)); err != nil {
			return nil, fmt.Errorf("failed to open database connection for migrations: %w", err)
		}
		if err = db.Ping(); err == nil {
			instance, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		}
		dir = migrations.SQLiteDir
	default:
		return nil, fmt.Errorf("no migrations for storage driver %q", driver)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create %s driver instance for migrations: %w", driver, err)
	}

	source, err := iofs.New(migrations.FS, dir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, driver, instance)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrate instance: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. It reports whether anything changed.
func (mg *Migrator) Up() (bool, error) {
	err := mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return true, nil
}

// Down rolls back steps migrations, or all of them when steps is 0.
// It drops ledger history, so confirm must be set.
func (mg *Migrator) Down(steps int, confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}
	var err error
	if steps > 0 {
		err = mg.m.Steps(-steps)
	} else {
		err = mg.m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	return nil
}

// Version returns the applied schema version and whether it is dirty.
func (mg *Migrator) Version() (uint, bool, error) {
	v, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the source and the migration connection.
func (mg *Migrator) Close() error {
	sourceErr, dbErr := mg.m.Close()
	if sourceErr != nil {
		return fmt.Errorf("migration source error: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("migration database error: %w", dbErr)
	}
	return nil
}
