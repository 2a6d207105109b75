package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/student_ledger/internal/models"
	"github.com/SscSPs/student_ledger/internal/platform/keylock"
	"github.com/SscSPs/student_ledger/internal/utils/mapping"
)

const ledgerColumns = `id, transaction_number, transaction_date, student_id, academic_year_id, entry_type,
	debit_amount, credit_amount, balance, reference_type, reference_id, description, remarks,
	idempotency_key, created_by, created_at, is_reversed, reverses_transaction_id,
	reversal_transaction_id, is_locked`

type SQLiteLedgerRepository struct {
	BaseRepository
	locks       *keylock.Locker
	lockTimeout time.Duration
}

func newSQLiteLedgerRepository(db *sql.DB, locks *keylock.Locker, lockTimeout time.Duration) portsrepo.LedgerRepositoryFacade {
	return &SQLiteLedgerRepository{
		BaseRepository: BaseRepository{DB: db},
		locks:          locks,
		lockTimeout:    lockTimeout,
	}
}

var _ portsrepo.LedgerRepositoryFacade = (*SQLiteLedgerRepository)(nil)

func (r *SQLiteLedgerRepository) NextTransactionSequence(ctx context.Context, academicYearID string) (int64, error) {
	var seq int64
	err := r.DB.QueryRowContext(ctx,
		`INSERT INTO ledger_sequences (academic_year_id, last_value) VALUES (?, 1)
		 ON CONFLICT (academic_year_id) DO UPDATE SET last_value = last_value + 1
		 RETURNING last_value;`, academicYearID).Scan(&seq)
	if err != nil {
		return 0, mapSQLiteError("failed to allocate transaction sequence for "+academicYearID, err)
	}
	return seq, nil
}

// WithLedgerLock holds the in-process slot of key, then runs fn inside one
// immediate (write-locked) SQLite transaction.
func (r *SQLiteLedgerRepository) WithLedgerLock(ctx context.Context, key domain.LedgerKey, fn func(uow portsrepo.LedgerUnitOfWork) error) error {
	release, err := r.locks.Acquire(ctx, key.LockKey(), r.lockTimeout)
	if err != nil {
		return keylock.AsLedgerError(err, key.String(), r.lockTimeout)
	}
	defer release()

	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(tx)

	if err := fn(&sqliteLedgerUnitOfWork{tx: tx, key: key}); err != nil {
		return err
	}
	return r.Commit(tx)
}

func (r *SQLiteLedgerRepository) FindTransactionByID(ctx context.Context, id int64) (*domain.LedgerTransaction, error) {
	return findOneTransaction(ctx, r.DB, `WHERE id = ?`, strconv.FormatInt(id, 10), id)
}

func (r *SQLiteLedgerRepository) FindTransactionByNumber(ctx context.Context, transactionNumber string) (*domain.LedgerTransaction, error) {
	return findOneTransaction(ctx, r.DB, `WHERE transaction_number = ?`, transactionNumber, transactionNumber)
}

func (r *SQLiteLedgerRepository) FindTransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.LedgerTransaction, error) {
	return findOneTransaction(ctx, r.DB, `WHERE idempotency_key = ?`, "idempotency key "+idempotencyKey, idempotencyKey)
}

func (r *SQLiteLedgerRepository) FindLatestTransaction(ctx context.Context, key domain.LedgerKey) (*domain.LedgerTransaction, error) {
	txn, err := latestTransaction(ctx, r.DB, key)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, apperrors.NewNotFoundError("ledger", key.String())
	}
	return txn, nil
}

func (r *SQLiteLedgerRepository) ListTransactionsByKey(ctx context.Context, key domain.LedgerKey) ([]domain.LedgerTransaction, error) {
	return listTransactions(ctx, r.DB,
		`WHERE student_id = ? AND academic_year_id = ? ORDER BY id`,
		key.StudentID, key.AcademicYearID)
}

func (r *SQLiteLedgerRepository) ListTransactionsByDateRange(ctx context.Context, key domain.LedgerKey, from, to time.Time) ([]domain.LedgerTransaction, error) {
	return listTransactions(ctx, r.DB,
		`WHERE student_id = ? AND academic_year_id = ? AND transaction_date BETWEEN ? AND ? ORDER BY id`,
		key.StudentID, key.AcademicYearID, formatDate(from), formatDate(to))
}

func (r *SQLiteLedgerRepository) ListTransactionsPage(ctx context.Context, key domain.LedgerKey, afterID int64, limit int) ([]domain.LedgerTransaction, error) {
	return listTransactions(ctx, r.DB,
		`WHERE student_id = ? AND academic_year_id = ? AND id > ? ORDER BY id LIMIT ?`,
		key.StudentID, key.AcademicYearID, afterID, limit)
}

func (r *SQLiteLedgerRepository) FindTransactionsByReference(ctx context.Context, referenceType domain.ReferenceType, referenceID string) ([]domain.LedgerTransaction, error) {
	return listTransactions(ctx, r.DB,
		`WHERE reference_type = ? AND reference_id = ? ORDER BY id`,
		string(referenceType), referenceID)
}

type sqliteLedgerUnitOfWork struct {
	tx  *sql.Tx
	key domain.LedgerKey
}

var _ portsrepo.LedgerUnitOfWork = (*sqliteLedgerUnitOfWork)(nil)

func (u *sqliteLedgerUnitOfWork) LatestTransaction(ctx context.Context) (*domain.LedgerTransaction, error) {
	return latestTransaction(ctx, u.tx, u.key)
}

// TransactionForUpdate needs no row lock: the unit already holds the database write lock.
func (u *sqliteLedgerUnitOfWork) TransactionForUpdate(ctx context.Context, id int64) (*domain.LedgerTransaction, error) {
	return findOneTransaction(ctx, u.tx, `WHERE id = ?`, strconv.FormatInt(id, 10), id)
}

func (u *sqliteLedgerUnitOfWork) TransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.LedgerTransaction, error) {
	return findOneTransaction(ctx, u.tx, `WHERE idempotency_key = ?`, "idempotency key "+idempotencyKey, idempotencyKey)
}

func (u *sqliteLedgerUnitOfWork) InsertTransaction(ctx context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	if txn.Key() != u.key {
		return nil, apperrors.NewStorageError("insert outside locked ledger "+u.key.String(), nil)
	}
	m := mapping.ToModelLedgerTransaction(txn)
	res, err := u.tx.ExecContext(ctx,
		`INSERT INTO ledger_transactions (
			transaction_number, transaction_date, student_id, academic_year_id, entry_type,
			debit_amount, credit_amount, balance, reference_type, reference_id, description, remarks,
			idempotency_key, created_by, created_at, reverses_transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		m.TransactionNumber,
		formatDate(m.TransactionDate),
		m.StudentID,
		m.AcademicYearID,
		m.EntryType,
		formatAmount(m.DebitAmount),
		formatAmount(m.CreditAmount),
		formatAmount(m.Balance),
		m.ReferenceType,
		m.ReferenceID,
		m.Description,
		m.Remarks,
		m.IdempotencyKey,
		m.CreatedBy,
		formatTime(m.CreatedAt),
		m.ReversesTransactionID,
	)
	if err != nil {
		return nil, mapSQLiteError("failed to insert ledger transaction "+m.TransactionNumber, err)
	}
	if txn.ID, err = res.LastInsertId(); err != nil {
		return nil, mapSQLiteError("failed to read ledger transaction id", err)
	}
	return &txn, nil
}

func (u *sqliteLedgerUnitOfWork) MarkReversed(ctx context.Context, originalID, reversalID int64) error {
	res, err := u.tx.ExecContext(ctx,
		`UPDATE ledger_transactions SET is_reversed = 1, reversal_transaction_id = ? WHERE id = ? AND is_reversed = 0;`,
		reversalID, originalID)
	if err != nil {
		return mapSQLiteError("failed to link reversal of "+strconv.FormatInt(originalID, 10), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &apperrors.ReversalError{TransactionID: originalID, Err: apperrors.ErrAlreadyReversed}
	}
	return nil
}

func (u *sqliteLedgerUnitOfWork) LockThrough(ctx context.Context, asOfID int64) (int64, error) {
	res, err := u.tx.ExecContext(ctx,
		`UPDATE ledger_transactions SET is_locked = 1
		 WHERE student_id = ? AND academic_year_id = ? AND id <= ? AND is_locked = 0;`,
		u.key.StudentID, u.key.AcademicYearID, asOfID)
	if err != nil {
		return 0, mapSQLiteError("failed to lock ledger "+u.key.String(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapSQLiteError("failed to count locked entries", err)
	}
	return n, nil
}

func latestTransaction(ctx context.Context, q querier, key domain.LedgerKey) (*domain.LedgerTransaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_transactions
		 WHERE student_id = ? AND academic_year_id = ? ORDER BY id DESC LIMIT 1;`,
		key.StudentID, key.AcademicYearID)
	txn, err := scanLedgerTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapSQLiteError("failed to read latest entry of "+key.String(), err)
	}
	return &txn, nil
}

func findOneTransaction(ctx context.Context, q querier, where, label string, arg any) (*domain.LedgerTransaction, error) {
	txn, err := scanLedgerTransaction(q.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM ledger_transactions `+where+`;`, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("ledger transaction", label)
		}
		return nil, mapSQLiteError("failed to find ledger transaction "+label, err)
	}
	return &txn, nil
}

func listTransactions(ctx context.Context, q querier, where string, args ...any) ([]domain.LedgerTransaction, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+ledgerColumns+` FROM ledger_transactions `+where+`;`, args...)
	if err != nil {
		return nil, mapSQLiteError("failed to list ledger transactions", err)
	}
	defer rows.Close()

	list := make([]domain.LedgerTransaction, 0)
	for rows.Next() {
		txn, err := scanLedgerTransaction(rows)
		if err != nil {
			return nil, mapSQLiteError("failed to scan ledger transaction", err)
		}
		list = append(list, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError("error iterating ledger rows", err)
	}
	return list, nil
}

func scanLedgerTransaction(row rowScanner) (domain.LedgerTransaction, error) {
	var m models.LedgerTransaction
	var txnDate, createdAt string
	err := row.Scan(
		&m.ID,
		&m.TransactionNumber,
		&txnDate,
		&m.StudentID,
		&m.AcademicYearID,
		&m.EntryType,
		&m.DebitAmount,
		&m.CreditAmount,
		&m.Balance,
		&m.ReferenceType,
		&m.ReferenceID,
		&m.Description,
		&m.Remarks,
		&m.IdempotencyKey,
		&m.CreatedBy,
		&createdAt,
		&m.IsReversed,
		&m.ReversesTransactionID,
		&m.ReversalTransactionID,
		&m.IsLocked,
	)
	if err != nil {
		return domain.LedgerTransaction{}, err
	}
	if m.TransactionDate, err = parseDate(txnDate); err != nil {
		return domain.LedgerTransaction{}, err
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.LedgerTransaction{}, err
	}
	return mapping.ToDomainLedgerTransaction(m), nil
}
