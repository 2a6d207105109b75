package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/utils/accounting"
	"github.com/shopspring/decimal"
)

// DefaultTransactionPrefix starts every transaction number unless configured otherwise.
const DefaultTransactionPrefix = "TXN"

// publishTimeout bounds a single post-commit notification.
const publishTimeout = 5 * time.Second

// ledgerService is the ledger engine: the only writer of ledger_transactions.
type ledgerService struct {
	BaseService
	ledgerRepo portsrepo.LedgerRepositoryFacade
	publisher  portssvc.LedgerEventPublisher
	prefix     string
}

// LedgerServiceOption configures the ledger engine.
type LedgerServiceOption func(*ledgerService)

// WithEventPublisher notifies publisher after every committed change.
func WithEventPublisher(publisher portssvc.LedgerEventPublisher) LedgerServiceOption {
	return func(s *ledgerService) {
		s.publisher = publisher
	}
}

// WithTransactionPrefix sets the leading segment of transaction numbers.
func WithTransactionPrefix(prefix string) LedgerServiceOption {
	return func(s *ledgerService) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock overrides the time source used for created_at and reversal dates.
func WithClock(clock func() time.Time) LedgerServiceOption {
	return func(s *ledgerService) {
		s.clock = clock
	}
}

// NewLedgerService creates the ledger engine.
func NewLedgerService(ledgerRepo portsrepo.LedgerRepositoryFacade, opts ...LedgerServiceOption) portssvc.LedgerEngineSvc {
	s := &ledgerService{
		ledgerRepo: ledgerRepo,
		prefix:     DefaultTransactionPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ portssvc.LedgerEngineSvc = (*ledgerService)(nil)

func (s *ledgerService) Post(ctx context.Context, entry domain.PostEntry) (*domain.LedgerTransaction, error) {
	attrs := []any{
		slog.String("student_id", entry.StudentID),
		slog.String("academic_year_id", entry.AcademicYearID),
		slog.String("entry_type", string(entry.EntryType)),
	}

	if err := entry.Validate(); err != nil {
		s.LogWarn(ctx, err, "Rejected ledger entry", attrs...)
		return nil, err
	}
	if entry.EntryType == domain.EntryReversal {
		err := apperrors.NewValidationError("entry_type", "reversal entries are only created by reversing a transaction")
		s.LogWarn(ctx, err, "Rejected ledger entry", attrs...)
		return nil, err
	}
	entry.IdempotencyKey = strings.TrimSpace(entry.IdempotencyKey)

	// Replays are answered without allocating a sequence number.
	if entry.IdempotencyKey != "" {
		existing, err := s.ledgerRepo.FindTransactionByIdempotencyKey(ctx, entry.IdempotencyKey)
		if err == nil {
			return s.replay(ctx, existing, entry)
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed idempotency lookup", attrs...)
			return nil, err
		}
	}

	seq, err := s.ledgerRepo.NextTransactionSequence(ctx, entry.AcademicYearID)
	if err != nil {
		s.LogError(ctx, err, "Failed to allocate transaction sequence", attrs...)
		return nil, err
	}

	var posted *domain.LedgerTransaction
	replayed := false
	err = s.ledgerRepo.WithLedgerLock(ctx, entry.Key(), func(uow portsrepo.LedgerUnitOfWork) error {
		if entry.IdempotencyKey != "" {
			existing, err := uow.TransactionByIdempotencyKey(ctx, entry.IdempotencyKey)
			if err == nil {
				posted, replayed = existing, true
				return nil
			}
			if !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
		}
		posted, err = s.appendLocked(ctx, uow, entry, seq, nil)
		return err
	})
	if err != nil && entry.IdempotencyKey != "" && errors.Is(err, apperrors.ErrDuplicate) {
		// The key may have been committed by a concurrent post on another ledger.
		if existing, findErr := s.ledgerRepo.FindTransactionByIdempotencyKey(ctx, entry.IdempotencyKey); findErr == nil {
			return s.replay(ctx, existing, entry)
		}
	}
	if err != nil {
		s.logFailure(ctx, err, "Failed to post ledger entry", attrs...)
		return nil, err
	}
	if replayed {
		return s.replay(ctx, posted, entry)
	}

	s.LogInfo(ctx, "Posted ledger entry", append(attrs,
		slog.Int64("transaction_id", posted.ID),
		slog.String("transaction_number", posted.TransactionNumber),
		slog.String("balance", posted.Balance.String()),
	)...)
	s.publish(ctx, domain.LedgerEvent{
		Type:        domain.LedgerEventPosted,
		Key:         posted.Key(),
		Transaction: posted,
		ActorID:     entry.CreatedBy,
		OccurredAt:  posted.CreatedAt,
	})
	return posted, nil
}

// replay returns the entry a prior post with the same idempotency key produced,
// provided it describes the same financial event.
func (s *ledgerService) replay(ctx context.Context, existing *domain.LedgerTransaction, entry domain.PostEntry) (*domain.LedgerTransaction, error) {
	if !existing.MatchesEntry(entry) {
		err := fmt.Errorf("%w: idempotency key %q already used by transaction %s", apperrors.ErrDuplicate, entry.IdempotencyKey, existing.TransactionNumber)
		s.LogWarn(ctx, err, "Idempotency key reused for a different entry",
			slog.String("student_id", entry.StudentID),
			slog.Int64("transaction_id", existing.ID))
		return nil, err
	}
	s.LogInfo(ctx, "Idempotent replay of ledger entry",
		slog.Int64("transaction_id", existing.ID),
		slog.String("transaction_number", existing.TransactionNumber))
	return existing, nil
}

// appendLocked computes the running balance from the latest entry and inserts the new row.
// It must run inside WithLedgerLock for the entry's key.
func (s *ledgerService) appendLocked(ctx context.Context, uow portsrepo.LedgerUnitOfWork, entry domain.PostEntry, seq int64, reverses *int64) (*domain.LedgerTransaction, error) {
	prior, err := uow.LatestTransaction(ctx)
	if err != nil {
		return nil, err
	}
	priorBalance := decimal.Zero
	if prior != nil {
		priorBalance = prior.Balance
	}
	if entry.EntryType == domain.EntryOpeningBalance && prior != nil {
		return nil, apperrors.NewValidationError("entry_type", "opening balance is only allowed on an empty ledger")
	}

	txn := entry.ToTransaction(s.Now())
	txn.TransactionNumber = domain.FormatTransactionNumber(s.prefix, entry.AcademicYearID, seq)
	txn.Balance = accounting.NextBalance(priorBalance, entry.Amount, entry.Direction)
	txn.ReversesTransactionID = reverses

	return uow.InsertTransaction(ctx, txn)
}

func (s *ledgerService) Reverse(ctx context.Context, transactionID int64, reason string, createdBy string) (*domain.LedgerTransaction, error) {
	attrs := []any{slog.Int64("transaction_id", transactionID)}

	if strings.TrimSpace(reason) == "" {
		err := apperrors.NewValidationError("reason", "is required")
		s.LogWarn(ctx, err, "Rejected reversal", attrs...)
		return nil, err
	}
	if strings.TrimSpace(createdBy) == "" {
		err := apperrors.NewValidationError("created_by", "is required")
		s.LogWarn(ctx, err, "Rejected reversal", attrs...)
		return nil, err
	}

	target, err := s.ledgerRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		s.logFailure(ctx, err, "Reversal target lookup failed", attrs...)
		return nil, err
	}
	if err := checkReversible(target); err != nil {
		s.LogWarn(ctx, err, "Rejected reversal", attrs...)
		return nil, err
	}

	seq, err := s.ledgerRepo.NextTransactionSequence(ctx, target.AcademicYearID)
	if err != nil {
		s.LogError(ctx, err, "Failed to allocate transaction sequence", attrs...)
		return nil, err
	}

	var original, reversal *domain.LedgerTransaction
	err = s.ledgerRepo.WithLedgerLock(ctx, target.Key(), func(uow portsrepo.LedgerUnitOfWork) error {
		current, err := uow.TransactionForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if err := checkReversible(current); err != nil {
			return err
		}

		entry := domain.PostEntry{
			StudentID:       current.StudentID,
			AcademicYearID:  current.AcademicYearID,
			EntryType:       domain.EntryReversal,
			Amount:          current.Amount(),
			Direction:       current.Direction().Opposite(),
			ReferenceType:   current.ReferenceType,
			ReferenceID:     current.ReferenceID,
			Description:     fmt.Sprintf("Reversal of %s", current.TransactionNumber),
			Remarks:         reason,
			CreatedBy:       createdBy,
			TransactionDate: s.Now(),
		}
		reversal, err = s.appendLocked(ctx, uow, entry, seq, &current.ID)
		if err != nil {
			return err
		}
		if err := uow.MarkReversed(ctx, current.ID, reversal.ID); err != nil {
			return err
		}
		current.IsReversed = true
		current.ReversalTransactionID = &reversal.ID
		original = current
		return nil
	})
	if err != nil {
		s.logFailure(ctx, err, "Failed to reverse ledger entry", attrs...)
		return nil, err
	}

	s.LogInfo(ctx, "Reversed ledger entry", append(attrs,
		slog.Int64("reversal_id", reversal.ID),
		slog.String("reversal_number", reversal.TransactionNumber),
		slog.String("balance", reversal.Balance.String()),
	)...)
	s.publish(ctx, domain.LedgerEvent{
		Type:        domain.LedgerEventReversed,
		Key:         reversal.Key(),
		Transaction: reversal,
		Original:    original,
		ActorID:     createdBy,
		OccurredAt:  reversal.CreatedAt,
	})
	return reversal, nil
}

// checkReversible enforces terminal reversals and single reversal per entry.
func checkReversible(txn *domain.LedgerTransaction) error {
	if txn.IsReversal() {
		return &apperrors.ReversalError{TransactionID: txn.ID, Err: apperrors.ErrReversalOfReversal}
	}
	if txn.IsReversed {
		return &apperrors.ReversalError{TransactionID: txn.ID, Err: apperrors.ErrAlreadyReversed}
	}
	return nil
}

func (s *ledgerService) Lock(ctx context.Context, studentID, academicYearID string, asOfTransactionID int64, userID string) (int64, error) {
	key := domain.LedgerKey{StudentID: studentID, AcademicYearID: academicYearID}
	attrs := []any{
		slog.String("student_id", studentID),
		slog.String("academic_year_id", academicYearID),
		slog.Int64("as_of_transaction_id", asOfTransactionID),
	}

	if err := key.Validate(); err != nil {
		s.LogWarn(ctx, err, "Rejected ledger lock", attrs...)
		return 0, err
	}
	if asOfTransactionID <= 0 {
		err := apperrors.NewValidationError("as_of_transaction_id", "must be a positive transaction id")
		s.LogWarn(ctx, err, "Rejected ledger lock", attrs...)
		return 0, err
	}

	var locked int64
	err := s.ledgerRepo.WithLedgerLock(ctx, key, func(uow portsrepo.LedgerUnitOfWork) error {
		anchor, err := uow.TransactionForUpdate(ctx, asOfTransactionID)
		if err != nil {
			return err
		}
		if anchor.Key() != key {
			return apperrors.NewNotFoundError("ledger transaction", fmt.Sprintf("%d in ledger %s", asOfTransactionID, key))
		}
		locked, err = uow.LockThrough(ctx, asOfTransactionID)
		return err
	})
	if err != nil {
		s.logFailure(ctx, err, "Failed to lock ledger", attrs...)
		return 0, err
	}

	s.LogInfo(ctx, "Locked ledger entries", append(attrs, slog.Int64("locked_count", locked))...)
	if locked > 0 {
		s.publish(ctx, domain.LedgerEvent{
			Type:            domain.LedgerEventLocked,
			Key:             key,
			LockedThroughID: asOfTransactionID,
			LockedCount:     locked,
			ActorID:         userID,
			OccurredAt:      s.Now(),
		})
	}
	return locked, nil
}

// publish notifies the publisher on a detached goroutine. The ledger change has
// already committed, so failures are only logged.
func (s *ledgerService) publish(ctx context.Context, event domain.LedgerEvent) {
	if s.publisher == nil {
		return
	}
	logger := s.GetLogger(ctx)
	go func() {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(pubCtx, event); err != nil {
			logger.Error("Failed to publish ledger event",
				slog.String("event", string(event.Type)),
				slog.String("ledger", event.Key.String()),
				slog.String("error", err.Error()))
		}
	}()
}

// logFailure logs storage and unexpected errors at error level and domain rejections at warn.
func (s *ledgerService) logFailure(ctx context.Context, err error, msg string, attrs ...any) {
	if isDomainError(err) {
		s.LogWarn(ctx, err, msg, attrs...)
		return
	}
	s.LogError(ctx, err, msg, attrs...)
}

func isDomainError(err error) bool {
	return errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrConflict) ||
		errors.Is(err, apperrors.ErrDuplicate) ||
		errors.Is(err, apperrors.ErrConcurrencyTimeout)
}
