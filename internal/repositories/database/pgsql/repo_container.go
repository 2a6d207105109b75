package pgsql

import (
	"time"

	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewRepositoryProvider builds the postgres-backed repositories.
// lockTimeout bounds the wait for a ledger head row lock.
func NewRepositoryProvider(dbPool *pgxpool.Pool, lockTimeout time.Duration) portsrepo.RepositoryProvider {
	feeTypeRepo := newPgxFeeTypeRepository(dbPool)
	feeStructureRepo := newPgxFeeStructureRepository(dbPool)
	ledgerRepo := newPgxLedgerRepository(dbPool, lockTimeout)

	return portsrepo.RepositoryProvider{
		FeeTypeRepo:      feeTypeRepo,
		FeeStructureRepo: feeStructureRepo,
		LedgerRepo:       ledgerRepo,
	}
}
