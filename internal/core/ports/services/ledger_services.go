package services

import (
	"context"
	"time"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/SscSPs/student_ledger/internal/dto"
	"github.com/shopspring/decimal"
)

// LedgerEngineSvc is the only writer of student ledgers.
// All mutations of one (student, academic year) ledger are linearized.
type LedgerEngineSvc interface {
	// Post appends an entry and returns it with its frozen running balance.
	// A replay with the same idempotency key returns the entry posted the first time.
	Post(ctx context.Context, entry domain.PostEntry) (*domain.LedgerTransaction, error)

	// Reverse appends an entry negating transactionID and links the two.
	Reverse(ctx context.Context, transactionID int64, reason string, createdBy string) (*domain.LedgerTransaction, error)

	// Lock finalizes every entry of the ledger up to and including asOfTransactionID.
	// It returns the number of entries newly locked; relocking is a no-op.
	Lock(ctx context.Context, studentID, academicYearID string, asOfTransactionID int64, userID string) (int64, error)
}

// BalanceProjectorSvc answers read queries by folding the ledger. It never writes.
type BalanceProjectorSvc interface {
	CurrentBalance(ctx context.Context, studentID, academicYearID string) (decimal.Decimal, error)
	StatementFor(ctx context.Context, studentID, academicYearID string, from, to time.Time) ([]domain.LedgerTransaction, error)
	Reconcile(ctx context.Context, studentID, academicYearID string) (domain.ReconcileResult, error)
	Summary(ctx context.Context, studentID, academicYearID string) (domain.LedgerSummary, error)

	ListTransactions(ctx context.Context, studentID, academicYearID string, params dto.ListLedgerTransactionsParams) (*dto.ListLedgerTransactionsResponse, error)
	GetTransaction(ctx context.Context, transactionID int64) (*domain.LedgerTransaction, error)
	GetTransactionByNumber(ctx context.Context, transactionNumber string) (*domain.LedgerTransaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.LedgerTransaction, error)
	FindByReference(ctx context.Context, referenceType domain.ReferenceType, referenceID string) ([]domain.LedgerTransaction, error)
}

// LedgerEventPublisher receives committed ledger changes.
// Errors are reported to the caller's logs only; a committed entry is never rolled back.
type LedgerEventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}
