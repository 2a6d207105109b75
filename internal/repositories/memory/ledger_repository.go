package memory

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/student_ledger/internal/platform/keylock"
)

type LedgerRepository struct {
	store *Store
}

func newLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

var _ portsrepo.LedgerRepositoryFacade = (*LedgerRepository)(nil)

func (r *LedgerRepository) NextTransactionSequence(_ context.Context, academicYearID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sequences[academicYearID]++
	return r.store.sequences[academicYearID], nil
}

// WithLedgerLock holds the in-process slot for key while fn runs. Writes are staged
// on the unit and applied to the store in one critical section after fn succeeds.
func (r *LedgerRepository) WithLedgerLock(ctx context.Context, key domain.LedgerKey, fn func(uow portsrepo.LedgerUnitOfWork) error) error {
	release, err := r.store.locks.Acquire(ctx, key.LockKey(), r.store.lockTimeout)
	if err != nil {
		return keylock.AsLedgerError(err, key.String(), r.store.lockTimeout)
	}
	defer release()

	uow := &ledgerUnitOfWork{
		store:    r.store,
		key:      key,
		reversed: make(map[int64]int64),
	}
	if err := fn(uow); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return apperrors.NewStorageError("ledger unit abandoned before commit", err)
	}
	return uow.commit()
}

func (r *LedgerRepository) FindTransactionByID(_ context.Context, id int64) (*domain.LedgerTransaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	txn, ok := r.store.transactions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("ledger transaction", strconv.FormatInt(id, 10))
	}
	return &txn, nil
}

func (r *LedgerRepository) FindTransactionByNumber(_ context.Context, transactionNumber string) (*domain.LedgerTransaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.byNumber[transactionNumber]
	if !ok {
		return nil, apperrors.NewNotFoundError("ledger transaction", transactionNumber)
	}
	txn := r.store.transactions[id]
	return &txn, nil
}

func (r *LedgerRepository) FindTransactionByIdempotencyKey(_ context.Context, idempotencyKey string) (*domain.LedgerTransaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.byIdempotency[idempotencyKey]
	if !ok {
		return nil, apperrors.NewNotFoundError("ledger transaction", "idempotency key "+idempotencyKey)
	}
	txn := r.store.transactions[id]
	return &txn, nil
}

func (r *LedgerRepository) FindLatestTransaction(_ context.Context, key domain.LedgerKey) (*domain.LedgerTransaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	txn, ok := r.store.latestLocked(key)
	if !ok {
		return nil, apperrors.NewNotFoundError("ledger", key.String())
	}
	return &txn, nil
}

func (r *LedgerRepository) ListTransactionsByKey(_ context.Context, key domain.LedgerKey) ([]domain.LedgerTransaction, error) {
	return r.filter(key, func(domain.LedgerTransaction) bool { return true }, 0), nil
}

func (r *LedgerRepository) ListTransactionsByDateRange(_ context.Context, key domain.LedgerKey, from, to time.Time) ([]domain.LedgerTransaction, error) {
	from, to = domain.NormalizeDate(from), domain.NormalizeDate(to)
	return r.filter(key, func(t domain.LedgerTransaction) bool {
		return !t.TransactionDate.Before(from) && !t.TransactionDate.After(to)
	}, 0), nil
}

func (r *LedgerRepository) ListTransactionsPage(_ context.Context, key domain.LedgerKey, afterID int64, limit int) ([]domain.LedgerTransaction, error) {
	return r.filter(key, func(t domain.LedgerTransaction) bool { return t.ID > afterID }, limit), nil
}

func (r *LedgerRepository) FindTransactionsByReference(_ context.Context, referenceType domain.ReferenceType, referenceID string) ([]domain.LedgerTransaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	list := make([]domain.LedgerTransaction, 0)
	for _, t := range r.store.transactions {
		if t.ReferenceType != nil && *t.ReferenceType == referenceType && t.ReferenceID != nil && *t.ReferenceID == referenceID {
			list = append(list, t)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *LedgerRepository) filter(key domain.LedgerKey, keep func(domain.LedgerTransaction) bool, limit int) []domain.LedgerTransaction {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	list := make([]domain.LedgerTransaction, 0)
	for _, id := range r.store.byKey[key] {
		t := r.store.transactions[id]
		if !keep(t) {
			continue
		}
		list = append(list, t)
		if limit > 0 && len(list) == limit {
			break
		}
	}
	return list
}

// latestLocked requires mu to be held.
func (s *Store) latestLocked(key domain.LedgerKey) (domain.LedgerTransaction, bool) {
	ids := s.byKey[key]
	if len(ids) == 0 {
		return domain.LedgerTransaction{}, false
	}
	return s.transactions[ids[len(ids)-1]], true
}

type ledgerUnitOfWork struct {
	store       *Store
	key         domain.LedgerKey
	pending     []domain.LedgerTransaction
	reversed    map[int64]int64
	lockThrough int64
}

var _ portsrepo.LedgerUnitOfWork = (*ledgerUnitOfWork)(nil)

func (u *ledgerUnitOfWork) LatestTransaction(_ context.Context) (*domain.LedgerTransaction, error) {
	if n := len(u.pending); n > 0 {
		txn := u.pending[n-1]
		return &txn, nil
	}
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	txn, ok := u.store.latestLocked(u.key)
	if !ok {
		return nil, nil
	}
	u.overlay(&txn)
	return &txn, nil
}

func (u *ledgerUnitOfWork) TransactionForUpdate(_ context.Context, id int64) (*domain.LedgerTransaction, error) {
	for _, p := range u.pending {
		if p.ID == id {
			txn := p
			return &txn, nil
		}
	}
	u.store.mu.RLock()
	txn, ok := u.store.transactions[id]
	u.store.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("ledger transaction", strconv.FormatInt(id, 10))
	}
	u.overlay(&txn)
	return &txn, nil
}

func (u *ledgerUnitOfWork) TransactionByIdempotencyKey(_ context.Context, idempotencyKey string) (*domain.LedgerTransaction, error) {
	for _, p := range u.pending {
		if p.IdempotencyKey != nil && *p.IdempotencyKey == idempotencyKey {
			txn := p
			return &txn, nil
		}
	}
	u.store.mu.RLock()
	id, ok := u.store.byIdempotency[idempotencyKey]
	txn := u.store.transactions[id]
	u.store.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("ledger transaction", "idempotency key "+idempotencyKey)
	}
	u.overlay(&txn)
	return &txn, nil
}

func (u *ledgerUnitOfWork) InsertTransaction(_ context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	if txn.Key() != u.key {
		return nil, apperrors.NewStorageError("insert outside locked ledger "+u.key.String(), nil)
	}
	// Mirrors the one-side CHECK of the SQL schemas.
	if txn.DebitAmount.IsPositive() == txn.CreditAmount.IsPositive() || txn.DebitAmount.IsNegative() || txn.CreditAmount.IsNegative() {
		return nil, apperrors.NewAppError(http.StatusBadRequest, "ledger entry must carry exactly one non-zero side", nil)
	}
	for _, p := range u.pending {
		if p.TransactionNumber == txn.TransactionNumber {
			return nil, fmt.Errorf("%w: transaction number %s", apperrors.ErrDuplicate, txn.TransactionNumber)
		}
	}

	u.store.mu.Lock()
	if _, exists := u.store.byNumber[txn.TransactionNumber]; exists {
		u.store.mu.Unlock()
		return nil, fmt.Errorf("%w: transaction number %s", apperrors.ErrDuplicate, txn.TransactionNumber)
	}
	if txn.IdempotencyKey != nil {
		if _, exists := u.store.byIdempotency[*txn.IdempotencyKey]; exists {
			u.store.mu.Unlock()
			return nil, fmt.Errorf("%w: idempotency key %s", apperrors.ErrDuplicate, *txn.IdempotencyKey)
		}
	}
	u.store.nextTxnID++
	txn.ID = u.store.nextTxnID
	u.store.mu.Unlock()

	u.pending = append(u.pending, txn)
	return &txn, nil
}

func (u *ledgerUnitOfWork) MarkReversed(ctx context.Context, originalID, reversalID int64) error {
	original, err := u.TransactionForUpdate(ctx, originalID)
	if err != nil {
		return err
	}
	if original.IsReversed {
		return &apperrors.ReversalError{TransactionID: originalID, Err: apperrors.ErrAlreadyReversed}
	}
	u.reversed[originalID] = reversalID
	return nil
}

func (u *ledgerUnitOfWork) LockThrough(_ context.Context, asOfID int64) (int64, error) {
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()

	var count int64
	for _, id := range u.store.byKey[u.key] {
		if id > asOfID {
			break
		}
		if !u.store.transactions[id].IsLocked && id > u.lockThrough {
			count++
		}
	}
	if asOfID > u.lockThrough {
		u.lockThrough = asOfID
	}
	return count, nil
}

// overlay applies staged link updates to a committed row read inside the unit.
func (u *ledgerUnitOfWork) overlay(txn *domain.LedgerTransaction) {
	if reversalID, ok := u.reversed[txn.ID]; ok {
		txn.IsReversed = true
		txn.ReversalTransactionID = &reversalID
	}
	if txn.Key() == u.key && txn.ID <= u.lockThrough {
		txn.IsLocked = true
	}
}

func (u *ledgerUnitOfWork) commit() error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for _, p := range u.pending {
		if _, exists := u.store.byNumber[p.TransactionNumber]; exists {
			return fmt.Errorf("%w: transaction number %s", apperrors.ErrDuplicate, p.TransactionNumber)
		}
		if p.IdempotencyKey != nil {
			if _, exists := u.store.byIdempotency[*p.IdempotencyKey]; exists {
				return fmt.Errorf("%w: idempotency key %s", apperrors.ErrDuplicate, *p.IdempotencyKey)
			}
		}
	}

	for _, p := range u.pending {
		u.store.transactions[p.ID] = p
		u.store.byKey[u.key] = append(u.store.byKey[u.key], p.ID)
		u.store.byNumber[p.TransactionNumber] = p.ID
		if p.IdempotencyKey != nil {
			u.store.byIdempotency[*p.IdempotencyKey] = p.ID
		}
	}
	for originalID, reversalID := range u.reversed {
		original := u.store.transactions[originalID]
		original.IsReversed = true
		id := reversalID
		original.ReversalTransactionID = &id
		u.store.transactions[originalID] = original
	}
	if u.lockThrough > 0 {
		for _, id := range u.store.byKey[u.key] {
			if id > u.lockThrough {
				break
			}
			locked := u.store.transactions[id]
			locked.IsLocked = true
			u.store.transactions[id] = locked
		}
	}
	return nil
}
