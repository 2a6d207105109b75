package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/student_ledger/internal/core/domain"
)

// LedgerReader defines read operations over committed ledger entries.
// Every list is ordered by id ascending.
type LedgerReader interface {
	FindTransactionByID(ctx context.Context, id int64) (*domain.LedgerTransaction, error)
	FindTransactionByNumber(ctx context.Context, transactionNumber string) (*domain.LedgerTransaction, error)
	FindTransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.LedgerTransaction, error)

	// FindLatestTransaction returns the highest-id entry of the ledger or apperrors.ErrNotFound.
	FindLatestTransaction(ctx context.Context, key domain.LedgerKey) (*domain.LedgerTransaction, error)

	// ListTransactionsByKey returns the full ledger.
	ListTransactionsByKey(ctx context.Context, key domain.LedgerKey) ([]domain.LedgerTransaction, error)

	// ListTransactionsByDateRange returns entries with transaction_date in [from, to].
	ListTransactionsByDateRange(ctx context.Context, key domain.LedgerKey, from, to time.Time) ([]domain.LedgerTransaction, error)

	// ListTransactionsPage returns up to limit entries with id greater than afterID.
	ListTransactionsPage(ctx context.Context, key domain.LedgerKey, afterID int64, limit int) ([]domain.LedgerTransaction, error)

	// FindTransactionsByReference returns every entry pointing at a business object, across ledgers.
	FindTransactionsByReference(ctx context.Context, referenceType domain.ReferenceType, referenceID string) ([]domain.LedgerTransaction, error)
}

// LedgerUnitOfWork is the view of one ledger while its lock is held.
// Writes made through it commit together or not at all.
type LedgerUnitOfWork interface {
	// LatestTransaction returns the highest-id entry of the locked ledger, or nil when it is empty.
	LatestTransaction(ctx context.Context) (*domain.LedgerTransaction, error)

	// TransactionForUpdate re-reads an entry inside the unit.
	TransactionForUpdate(ctx context.Context, id int64) (*domain.LedgerTransaction, error)

	// TransactionByIdempotencyKey looks up a prior post by its caller-supplied key.
	TransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.LedgerTransaction, error)

	// InsertTransaction appends txn and returns it with its assigned id.
	InsertTransaction(ctx context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error)

	// MarkReversed links an original entry forward to its reversal.
	// Fails with apperrors.ErrAlreadyReversed if the original already carries a link.
	MarkReversed(ctx context.Context, originalID, reversalID int64) error

	// LockThrough sets is_locked on every entry of the ledger with id <= asOfID
	// and returns how many entries changed.
	LockThrough(ctx context.Context, asOfID int64) (int64, error)
}

// LedgerWriter defines the mutation boundary of the ledger.
type LedgerWriter interface {
	// NextTransactionSequence allocates the next transaction number sequence for an academic year.
	// Allocation is independent of any ledger unit; an aborted post leaves a gap, values are never reused.
	NextTransactionSequence(ctx context.Context, academicYearID string) (int64, error)

	// WithLedgerLock runs fn while holding the exclusive lock of key.
	// The lock wait is bounded; exceeding it returns an apperrors.ConcurrencyTimeoutError
	// and nothing is written. fn's writes commit only if fn returns nil.
	WithLedgerLock(ctx context.Context, key domain.LedgerKey, fn func(uow LedgerUnitOfWork) error) error
}

// LedgerRepositoryFacade combines all ledger repository interfaces
type LedgerRepositoryFacade interface {
	LedgerReader
	LedgerWriter
}
