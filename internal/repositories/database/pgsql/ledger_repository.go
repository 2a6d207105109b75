package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/student_ledger/internal/models"
	"github.com/SscSPs/student_ledger/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ledgerColumns = `id, transaction_number, transaction_date, student_id, academic_year_id, entry_type,
	debit_amount, credit_amount, balance, reference_type, reference_id, description, remarks,
	idempotency_key, created_by, created_at, is_reversed, reverses_transaction_id,
	reversal_transaction_id, is_locked`

type PgxLedgerRepository struct {
	BaseRepository
	lockTimeout time.Duration
}

func newPgxLedgerRepository(pool *pgxpool.Pool, lockTimeout time.Duration) portsrepo.LedgerRepositoryFacade {
	return &PgxLedgerRepository{
		BaseRepository: BaseRepository{Pool: pool},
		lockTimeout:    lockTimeout,
	}
}

var _ portsrepo.LedgerRepositoryFacade = (*PgxLedgerRepository)(nil)

// NextTransactionSequence runs in its own implicit transaction so the per-year
// counter row is held only for the statement, never for a whole post.
func (r *PgxLedgerRepository) NextTransactionSequence(ctx context.Context, academicYearID string) (int64, error) {
	query := `
		INSERT INTO ledger_sequences (academic_year_id, last_value)
		VALUES ($1, 1)
		ON CONFLICT (academic_year_id) DO UPDATE SET last_value = ledger_sequences.last_value + 1
		RETURNING last_value;
	`
	var seq int64
	if err := r.Pool.QueryRow(ctx, query, academicYearID).Scan(&seq); err != nil {
		return 0, mapPgError("failed to allocate transaction sequence for "+academicYearID, err)
	}
	return seq, nil
}

// WithLedgerLock row-locks the ledger_heads row of key for the life of one database
// transaction. lock_timeout bounds the wait.
func (r *PgxLedgerRepository) WithLedgerLock(ctx context.Context, key domain.LedgerKey, fn func(uow portsrepo.LedgerUnitOfWork) error) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	timeout := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true);`, timeout); err != nil {
		return mapPgError("failed to set lock timeout", err)
	}

	// A head row inserted by a concurrent first post blocks here until that post ends.
	_, err = tx.Exec(ctx,
		`INSERT INTO ledger_heads (student_id, academic_year_id) VALUES ($1, $2) ON CONFLICT DO NOTHING;`,
		key.StudentID, key.AcademicYearID)
	if err == nil {
		var one int
		err = tx.QueryRow(ctx,
			`SELECT 1 FROM ledger_heads WHERE student_id = $1 AND academic_year_id = $2 FOR UPDATE;`,
			key.StudentID, key.AcademicYearID).Scan(&one)
	}
	if err != nil {
		if isLockTimeout(err) {
			return &apperrors.ConcurrencyTimeoutError{Key: key.String(), Waited: r.lockTimeout}
		}
		return mapPgError("failed to lock ledger "+key.String(), err)
	}

	if err := fn(&pgxLedgerUnitOfWork{tx: tx, key: key}); err != nil {
		return err
	}
	return r.Commit(ctx, tx)
}

func (r *PgxLedgerRepository) FindTransactionByID(ctx context.Context, id int64) (*domain.LedgerTransaction, error) {
	return findOneTransaction(ctx, r.Pool, `WHERE id = $1`, strconv.FormatInt(id, 10), id)
}

func (r *PgxLedgerRepository) FindTransactionByNumber(ctx context.Context, transactionNumber string) (*domain.LedgerTransaction, error) {
	return findOneTransaction(ctx, r.Pool, `WHERE transaction_number = $1`, transactionNumber, transactionNumber)
}

func (r *PgxLedgerRepository) FindTransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.LedgerTransaction, error) {
	return findOneTransaction(ctx, r.Pool, `WHERE idempotency_key = $1`, "idempotency key "+idempotencyKey, idempotencyKey)
}

func (r *PgxLedgerRepository) FindLatestTransaction(ctx context.Context, key domain.LedgerKey) (*domain.LedgerTransaction, error) {
	txn, err := latestTransaction(ctx, r.Pool, key)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		return nil, apperrors.NewNotFoundError("ledger", key.String())
	}
	return txn, nil
}

func (r *PgxLedgerRepository) ListTransactionsByKey(ctx context.Context, key domain.LedgerKey) ([]domain.LedgerTransaction, error) {
	return listTransactions(ctx, r.Pool,
		`WHERE student_id = $1 AND academic_year_id = $2 ORDER BY id`,
		key.StudentID, key.AcademicYearID)
}

func (r *PgxLedgerRepository) ListTransactionsByDateRange(ctx context.Context, key domain.LedgerKey, from, to time.Time) ([]domain.LedgerTransaction, error) {
	return listTransactions(ctx, r.Pool,
		`WHERE student_id = $1 AND academic_year_id = $2 AND transaction_date BETWEEN $3 AND $4 ORDER BY id`,
		key.StudentID, key.AcademicYearID, domain.NormalizeDate(from), domain.NormalizeDate(to))
}

func (r *PgxLedgerRepository) ListTransactionsPage(ctx context.Context, key domain.LedgerKey, afterID int64, limit int) ([]domain.LedgerTransaction, error) {
	return listTransactions(ctx, r.Pool,
		`WHERE student_id = $1 AND academic_year_id = $2 AND id > $3 ORDER BY id LIMIT $4`,
		key.StudentID, key.AcademicYearID, afterID, limit)
}

func (r *PgxLedgerRepository) FindTransactionsByReference(ctx context.Context, referenceType domain.ReferenceType, referenceID string) ([]domain.LedgerTransaction, error) {
	return listTransactions(ctx, r.Pool,
		`WHERE reference_type = $1 AND reference_id = $2 ORDER BY id`,
		string(referenceType), referenceID)
}

// pgxLedgerUnitOfWork runs every statement on the transaction holding the head row lock.
type pgxLedgerUnitOfWork struct {
	tx  pgx.Tx
	key domain.LedgerKey
}

var _ portsrepo.LedgerUnitOfWork = (*pgxLedgerUnitOfWork)(nil)

func (u *pgxLedgerUnitOfWork) LatestTransaction(ctx context.Context) (*domain.LedgerTransaction, error) {
	return latestTransaction(ctx, u.tx, u.key)
}

func (u *pgxLedgerUnitOfWork) TransactionForUpdate(ctx context.Context, id int64) (*domain.LedgerTransaction, error) {
	return findOneTransaction(ctx, u.tx, `WHERE id = $1 FOR UPDATE`, strconv.FormatInt(id, 10), id)
}

func (u *pgxLedgerUnitOfWork) TransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.LedgerTransaction, error) {
	return findOneTransaction(ctx, u.tx, `WHERE idempotency_key = $1`, "idempotency key "+idempotencyKey, idempotencyKey)
}

func (u *pgxLedgerUnitOfWork) InsertTransaction(ctx context.Context, txn domain.LedgerTransaction) (*domain.LedgerTransaction, error) {
	if txn.Key() != u.key {
		return nil, apperrors.NewStorageError("insert outside locked ledger "+u.key.String(), nil)
	}
	m := mapping.ToModelLedgerTransaction(txn)
	query := `
		INSERT INTO ledger_transactions (
			transaction_number, transaction_date, student_id, academic_year_id, entry_type,
			debit_amount, credit_amount, balance, reference_type, reference_id, description, remarks,
			idempotency_key, created_by, created_at, reverses_transaction_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id;
	`
	err := u.tx.QueryRow(ctx, query,
		m.TransactionNumber,
		m.TransactionDate,
		m.StudentID,
		m.AcademicYearID,
		m.EntryType,
		m.DebitAmount,
		m.CreditAmount,
		m.Balance,
		m.ReferenceType,
		m.ReferenceID,
		m.Description,
		m.Remarks,
		m.IdempotencyKey,
		m.CreatedBy,
		m.CreatedAt,
		m.ReversesTransactionID,
	).Scan(&txn.ID)
	if err != nil {
		return nil, mapPgError("failed to insert ledger transaction "+m.TransactionNumber, err)
	}
	return &txn, nil
}

func (u *pgxLedgerUnitOfWork) MarkReversed(ctx context.Context, originalID, reversalID int64) error {
	query := `
		UPDATE ledger_transactions
		SET is_reversed = TRUE, reversal_transaction_id = $2
		WHERE id = $1 AND is_reversed = FALSE;
	`
	tag, err := u.tx.Exec(ctx, query, originalID, reversalID)
	if err != nil {
		return mapPgError("failed to link reversal of "+strconv.FormatInt(originalID, 10), err)
	}
	if tag.RowsAffected() == 0 {
		return &apperrors.ReversalError{TransactionID: originalID, Err: apperrors.ErrAlreadyReversed}
	}
	return nil
}

func (u *pgxLedgerUnitOfWork) LockThrough(ctx context.Context, asOfID int64) (int64, error) {
	query := `
		UPDATE ledger_transactions
		SET is_locked = TRUE
		WHERE student_id = $1 AND academic_year_id = $2 AND id <= $3 AND is_locked = FALSE;
	`
	tag, err := u.tx.Exec(ctx, query, u.key.StudentID, u.key.AcademicYearID, asOfID)
	if err != nil {
		return 0, mapPgError("failed to lock ledger "+u.key.String(), err)
	}
	return tag.RowsAffected(), nil
}

func latestTransaction(ctx context.Context, q querier, key domain.LedgerKey) (*domain.LedgerTransaction, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_transactions
		WHERE student_id = $1 AND academic_year_id = $2 ORDER BY id DESC LIMIT 1;`
	txn, err := scanLedgerTransaction(q.QueryRow(ctx, query, key.StudentID, key.AcademicYearID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPgError("failed to read latest entry of "+key.String(), err)
	}
	return &txn, nil
}

func findOneTransaction(ctx context.Context, q querier, where, label string, arg any) (*domain.LedgerTransaction, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_transactions ` + where + `;`
	txn, err := scanLedgerTransaction(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("ledger transaction", label)
		}
		return nil, mapPgError("failed to find ledger transaction "+label, err)
	}
	return &txn, nil
}

func listTransactions(ctx context.Context, q querier, where string, args ...any) ([]domain.LedgerTransaction, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_transactions ` + where + `;`
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, mapPgError("failed to list ledger transactions", err)
	}
	defer rows.Close()

	list := make([]domain.LedgerTransaction, 0)
	for rows.Next() {
		txn, err := scanLedgerTransaction(rows)
		if err != nil {
			return nil, mapPgError("failed to scan ledger transaction", err)
		}
		list = append(list, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError("error iterating ledger rows", err)
	}
	return list, nil
}

func scanLedgerTransaction(row pgx.Row) (domain.LedgerTransaction, error) {
	var m models.LedgerTransaction
	err := row.Scan(
		&m.ID,
		&m.TransactionNumber,
		&m.TransactionDate,
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
		&m.CreatedAt,
		&m.IsReversed,
		&m.ReversesTransactionID,
		&m.ReversalTransactionID,
		&m.IsLocked,
	)
	if err != nil {
		return domain.LedgerTransaction{}, err
	}
	return mapping.ToDomainLedgerTransaction(m), nil
}
