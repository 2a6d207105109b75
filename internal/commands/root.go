// Package commands implements ledgerctl, the operator CLI for schema and ledger maintenance.
package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/SscSPs/student_ledger/internal/platform/config"
	"github.com/SscSPs/student_ledger/internal/repositories"
	"github.com/SscSPs/student_ledger/pkg/database"
)

// storageFlags are shared by every subcommand. When driver is empty the
// server's environment configuration is used instead.
type storageFlags struct {
	driver      string
	dsn         string
	lockTimeout time.Duration
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &storageFlags{}

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Maintenance commands for the student fee ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "storage driver: postgres or sqlite (default from STORAGE_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&flags.dsn, "dsn", "", "postgres URL or sqlite file path (default from PGSQL_URL / SQLITE_PATH)")
	rootCmd.PersistentFlags().DurationVar(&flags.lockTimeout, "lock-timeout", 2*time.Second, "wait bound for a ledger lock")

	rootCmd.AddCommand(newMigrateCommand(flags))
	rootCmd.AddCommand(newReconcileCommand(flags))
	rootCmd.AddCommand(newSeedCommand(flags))

	return rootCmd
}

func (f *storageFlags) resolve() (repositories.StorageOptions, error) {
	opts := repositories.StorageOptions{Driver: f.driver, DSN: f.dsn, LockTimeout: f.lockTimeout, Ping: true}
	if opts.Driver == "" {
		cfg, err := config.LoadConfig()
		if err != nil {
			return opts, fmt.Errorf("loading config: %w", err)
		}
		opts.Driver = cfg.StorageDriver
		if opts.DSN == "" {
			opts.DSN = cfg.DatabaseURL
			if opts.Driver == database.DriverSQLite {
				opts.DSN = cfg.SQLitePath
			}
		}
	}
	if opts.Driver == database.DriverMemory {
		return opts, fmt.Errorf("ledgerctl needs persistent storage; memory holds nothing outside the server process")
	}
	if opts.DSN == "" {
		return opts, fmt.Errorf("--dsn is required for driver %q", opts.Driver)
	}
	return opts, nil
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
}
