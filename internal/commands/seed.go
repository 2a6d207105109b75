package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/services"
	"github.com/SscSPs/student_ledger/internal/dto"
	"github.com/SscSPs/student_ledger/internal/repositories"
)

// feeTypeSeed is the layout of a fee type seed file.
type feeTypeSeed struct {
	FeeTypes []dto.CreateFeeTypeRequest `yaml:"feeTypes"`
}

func newSeedCommand(flags *storageFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load reference data",
	}
	cmd.AddCommand(newSeedFeeTypesCommand(flags))
	return cmd
}

func newSeedFeeTypesCommand(flags *storageFlags) *cobra.Command {
	var file string
	var userID string

	cmd := &cobra.Command{
		Use:   "fee-types",
		Short: "Register the fee types listed in a YAML file",
		Long:  "Registers every fee type in --file. Codes that already exist are skipped, so the command can be rerun.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := loadFeeTypeSeed(file)
			if err != nil {
				return err
			}
			opts, err := flags.resolve()
			if err != nil {
				return err
			}
			repos, closeRepos, err := repositories.Open(cmd.Context(), opts, newLogger(cmd))
			if err != nil {
				return err
			}
			defer closeRepos()

			svc := services.NewFeeTypeService(repos.FeeTypeRepo)
			created, skipped := 0, 0
			for _, req := range seed.FeeTypes {
				_, err := svc.CreateFeeType(cmd.Context(), req, userID)
				switch {
				case errors.Is(err, apperrors.ErrDuplicate):
					skipped++
				case err != nil:
					return fmt.Errorf("seeding fee type %q: %w", req.Code, err)
				default:
					created++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d\n", created, skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML file with a feeTypes list (required)")
	cmd.Flags().StringVar(&userID, "user", "ledgerctl", "user recorded as creator")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func loadFeeTypeSeed(path string) (feeTypeSeed, error) {
	var seed feeTypeSeed
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, fmt.Errorf("reading seed file: %w", err)
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("parsing seed file: %w", err)
	}
	if len(seed.FeeTypes) == 0 {
		return seed, fmt.Errorf("seed file %s lists no feeTypes", path)
	}
	return seed, nil
}
