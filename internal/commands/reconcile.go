package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SscSPs/student_ledger/internal/core/services"
	"github.com/SscSPs/student_ledger/internal/repositories"
)

// ErrLedgerDiverged is returned when a stored running balance disagrees with the re-folded one.
var ErrLedgerDiverged = errors.New("ledger balances diverge")

func newReconcileCommand(flags *storageFlags) *cobra.Command {
	var studentID string
	var academicYearID string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-fold a ledger and compare every stored balance",
		Long:  "Re-folds one student ledger from its first entry and reports the first stored balance that diverges. Nothing is repaired.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.resolve()
			if err != nil {
				return err
			}
			repos, closeRepos, err := repositories.Open(cmd.Context(), opts, newLogger(cmd))
			if err != nil {
				return err
			}
			defer closeRepos()

			result, err := services.NewBalanceProjector(repos.LedgerRepo).Reconcile(cmd.Context(), studentID, academicYearID)
			if err != nil {
				return fmt.Errorf("reconciling %s/%s: %w", studentID, academicYearID, err)
			}

			out := cmd.OutOrStdout()
			if result.OK {
				fmt.Fprintf(out, "ok: %d entries, balance %s\n", result.Checked, result.Stored.StringFixed(2))
				return nil
			}
			fmt.Fprintf(out, "mismatch at transaction %d: expected %s, stored %s (%d entries checked)\n",
				*result.FirstMismatchID, result.Expected.StringFixed(2), result.Stored.StringFixed(2), result.Checked)
			return ErrLedgerDiverged
		},
	}

	cmd.Flags().StringVar(&studentID, "student", "", "student ID (required)")
	cmd.Flags().StringVar(&academicYearID, "year", "", "academic year ID (required)")
	_ = cmd.MarkFlagRequired("student")
	_ = cmd.MarkFlagRequired("year")

	return cmd
}
