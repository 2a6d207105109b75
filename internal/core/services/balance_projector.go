package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/dto"
	"github.com/SscSPs/student_ledger/internal/utils/accounting"
	"github.com/SscSPs/student_ledger/internal/utils/pagination"
	"github.com/shopspring/decimal"
)

// balanceProjector answers read queries from frozen balances. It never writes.
type balanceProjector struct {
	BaseService
	ledgerRepo portsrepo.LedgerReader
}

// NewBalanceProjector creates the read model over ledger entries.
func NewBalanceProjector(ledgerRepo portsrepo.LedgerReader) portssvc.BalanceProjectorSvc {
	return &balanceProjector{ledgerRepo: ledgerRepo}
}

var _ portssvc.BalanceProjectorSvc = (*balanceProjector)(nil)

// CurrentBalance is the frozen balance of the highest-id entry, or zero for an empty ledger.
func (p *balanceProjector) CurrentBalance(ctx context.Context, studentID, academicYearID string) (decimal.Decimal, error) {
	key := domain.LedgerKey{StudentID: studentID, AcademicYearID: academicYearID}
	if err := key.Validate(); err != nil {
		return decimal.Zero, err
	}
	latest, err := p.ledgerRepo.FindLatestTransaction(ctx, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		p.LogError(ctx, err, "Failed to read latest ledger entry", slog.String("ledger", key.String()))
		return decimal.Zero, err
	}
	return latest.Balance, nil
}

// StatementFor lists entries dated within [from, to], ordered by id, with their frozen balances.
func (p *balanceProjector) StatementFor(ctx context.Context, studentID, academicYearID string, from, to time.Time) ([]domain.LedgerTransaction, error) {
	key := domain.LedgerKey{StudentID: studentID, AcademicYearID: academicYearID}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if from.IsZero() || to.IsZero() {
		return nil, apperrors.NewValidationError("period", "from and to are required")
	}
	from, to = domain.NormalizeDate(from), domain.NormalizeDate(to)
	if to.Before(from) {
		return nil, apperrors.NewValidationError("period", "from must not be after to")
	}

	entries, err := p.ledgerRepo.ListTransactionsByDateRange(ctx, key, from, to)
	if err != nil {
		p.LogError(ctx, err, "Failed to list statement entries", slog.String("ledger", key.String()))
		return nil, err
	}
	return entries, nil
}

// Reconcile re-folds the whole ledger and reports the first stored balance that diverges.
func (p *balanceProjector) Reconcile(ctx context.Context, studentID, academicYearID string) (domain.ReconcileResult, error) {
	key := domain.LedgerKey{StudentID: studentID, AcademicYearID: academicYearID}
	if err := key.Validate(); err != nil {
		return domain.ReconcileResult{}, err
	}
	entries, err := p.ledgerRepo.ListTransactionsByKey(ctx, key)
	if err != nil {
		p.LogError(ctx, err, "Failed to load ledger for reconciliation", slog.String("ledger", key.String()))
		return domain.ReconcileResult{}, err
	}

	result := accounting.Reconcile(entries)
	if !result.OK {
		p.GetLogger(ctx).Error("Ledger balance mismatch",
			slog.String("ledger", key.String()),
			slog.Int64("first_mismatch_id", *result.FirstMismatchID),
			slog.String("expected", result.Expected.String()),
			slog.String("stored", result.Stored.String()))
	}
	return result, nil
}

func (p *balanceProjector) Summary(ctx context.Context, studentID, academicYearID string) (domain.LedgerSummary, error) {
	key := domain.LedgerKey{StudentID: studentID, AcademicYearID: academicYearID}
	if err := key.Validate(); err != nil {
		return domain.LedgerSummary{}, err
	}
	entries, err := p.ledgerRepo.ListTransactionsByKey(ctx, key)
	if err != nil {
		p.LogError(ctx, err, "Failed to load ledger for summary", slog.String("ledger", key.String()))
		return domain.LedgerSummary{}, err
	}
	return accounting.Summarize(key, entries), nil
}

func (p *balanceProjector) ListTransactions(ctx context.Context, studentID, academicYearID string, params dto.ListLedgerTransactionsParams) (*dto.ListLedgerTransactionsResponse, error) {
	key := domain.LedgerKey{StudentID: studentID, AcademicYearID: academicYearID}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var afterID int64
	if params.NextToken != nil && *params.NextToken != "" {
		id, err := pagination.DecodeLedgerToken(*params.NextToken, studentID, academicYearID)
		if err != nil {
			return nil, apperrors.NewValidationError("nextToken", err.Error())
		}
		afterID = id
	}
	limit := pagination.ClampLimit(params.Limit)

	// One extra row tells whether another page exists.
	entries, err := p.ledgerRepo.ListTransactionsPage(ctx, key, afterID, limit+1)
	if err != nil {
		p.LogError(ctx, err, "Failed to page ledger", slog.String("ledger", key.String()))
		return nil, err
	}

	resp := &dto.ListLedgerTransactionsResponse{}
	if len(entries) > limit {
		entries = entries[:limit]
		token := pagination.EncodeLedgerToken(studentID, academicYearID, entries[limit-1].ID)
		resp.NextToken = &token
	}
	resp.Transactions = dto.ToLedgerTransactionResponses(entries)
	return resp, nil
}

func (p *balanceProjector) GetTransaction(ctx context.Context, transactionID int64) (*domain.LedgerTransaction, error) {
	if transactionID <= 0 {
		return nil, apperrors.NewValidationError("transaction_id", "must be positive")
	}
	return p.ledgerRepo.FindTransactionByID(ctx, transactionID)
}

func (p *balanceProjector) GetTransactionByNumber(ctx context.Context, transactionNumber string) (*domain.LedgerTransaction, error) {
	if _, _, _, err := domain.ParseTransactionNumber(transactionNumber); err != nil {
		return nil, err
	}
	return p.ledgerRepo.FindTransactionByNumber(ctx, transactionNumber)
}

func (p *balanceProjector) GetTransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.LedgerTransaction, error) {
	if idempotencyKey == "" {
		return nil, apperrors.NewValidationError("idempotency_key", "is required")
	}
	return p.ledgerRepo.FindTransactionByIdempotencyKey(ctx, idempotencyKey)
}

func (p *balanceProjector) FindByReference(ctx context.Context, referenceType domain.ReferenceType, referenceID string) ([]domain.LedgerTransaction, error) {
	if !referenceType.IsValid() {
		return nil, apperrors.NewValidationError("reference_type", "unknown reference type "+string(referenceType))
	}
	if referenceID == "" {
		return nil, apperrors.NewValidationError("reference_id", "is required")
	}
	return p.ledgerRepo.FindTransactionsByReference(ctx, referenceType, referenceID)
}
