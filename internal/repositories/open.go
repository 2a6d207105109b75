// Package repositories selects and opens a storage backend.
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/student_ledger/internal/repositories/database/pgsql"
	"github.com/SscSPs/student_ledger/internal/repositories/database/sqlite"
	"github.com/SscSPs/student_ledger/internal/repositories/memory"
	"github.com/SscSPs/student_ledger/pkg/database"
)

// StorageOptions describe the backend to open. DSN is a postgres URL or a sqlite file path
// and is ignored for the memory driver.
type StorageOptions struct {
	Driver      string
	DSN         string
	LockTimeout time.Duration
	Ping        bool
	// Migrate applies pending migrations before the repositories are built.
	Migrate bool
}

// Open builds the repositories for opts.Driver. The returned close function releases
// the connection and is safe to call when Open failed.
func Open(ctx context.Context, opts StorageOptions, logger *slog.Logger) (portsrepo.RepositoryProvider, func(), error) {
	noop := func() {}

	if opts.Migrate && opts.Driver != database.DriverMemory {
		if err := migrateUp(opts, logger); err != nil {
			return portsrepo.RepositoryProvider{}, noop, err
		}
	}

	switch opts.Driver {
	case database.DriverPostgres:
		pool, err := database.NewPgxPool(ctx, opts.DSN, opts.Ping)
		if err != nil {
			return portsrepo.RepositoryProvider{}, noop, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		logger.Info("Database connection pool established.")
		return pgsql.NewRepositoryProvider(pool, opts.LockTimeout), func() { database.ClosePgxPool(pool) }, nil
	case database.DriverSQLite:
		db, err := database.OpenSQLite(ctx, opts.DSN)
		if err != nil {
			return portsrepo.RepositoryProvider{}, noop, err
		}
		logger.Info("SQLite database opened.", slog.String("path", opts.DSN))
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Error("Error closing sqlite database", slog.String("error", err.Error()))
			}
		}
		return sqlite.NewRepositoryProvider(db, opts.LockTimeout), closeDB, nil
	case database.DriverMemory:
		logger.Warn("Using in-memory storage; ledgers are lost on exit.")
		return memory.NewRepositoryProvider(memory.NewStore(opts.LockTimeout)), noop, nil
	default:
		return portsrepo.RepositoryProvider{}, noop, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

func migrateUp(opts StorageOptions, logger *slog.Logger) error {
	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(opts.Driver, opts.DSN)
	if err != nil {
		return err
	}
	changed, upErr := migrator.Up()
	if err := migrator.Close(); err != nil && upErr == nil {
		upErr = err
	}
	if upErr != nil {
		return upErr
	}
	if changed {
		logger.Info("Database migrations applied successfully.")
	} else {
		logger.Info("No new migrations to apply.")
	}
	return nil
}
