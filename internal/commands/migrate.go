package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SscSPs/student_ledger/pkg/database"
)

func newMigrateCommand(flags *storageFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the database schema",
	}
	cmd.AddCommand(newMigrateUpCommand(flags), newMigrateDownCommand(flags), newMigrateVersionCommand(flags))
	return cmd
}

func newMigrateUpCommand(flags *storageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(flags, func(m *database.Migrator) error {
				changed, err := m.Up()
				if err != nil {
					return err
				}
				if changed {
					fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "no change")
				}
				return nil
			})
		},
	}
}

func newMigrateDownCommand(flags *storageFlags) *cobra.Command {
	var steps int
	var confirm bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (drops ledger history)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 0 {
				return fmt.Errorf("--steps must not be negative")
			}
			return withMigrator(flags, func(m *database.Migrator) error {
				if err := m.Down(steps, confirm); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to roll back (0 = all)")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm the destructive rollback")

	return cmd
}

func newMigrateVersionCommand(flags *storageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(flags, func(m *database.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return fmt.Errorf("reading schema version: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	}
}

func withMigrator(flags *storageFlags, fn func(*database.Migrator) error) (err error) {
	opts, err := flags.resolve()
	if err != nil {
		return err
	}
	m, err := database.NewMigrator(opts.Driver, opts.DSN)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(m)
}
