package sqlite

import (
	"database/sql"
	"time"

	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/student_ledger/internal/platform/keylock"
)

// NewRepositoryProvider builds the sqlite-backed repositories. Ledger keys are
// serialized in process; lockTimeout bounds that wait.
func NewRepositoryProvider(db *sql.DB, lockTimeout time.Duration) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		FeeTypeRepo:      newSQLiteFeeTypeRepository(db),
		FeeStructureRepo: newSQLiteFeeStructureRepository(db),
		LedgerRepo:       newSQLiteLedgerRepository(db, keylock.New(), lockTimeout),
	}
}
