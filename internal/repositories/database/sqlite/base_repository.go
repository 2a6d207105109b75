// Package sqlite implements the repository ports on an embedded SQLite file.
// Amounts are stored as fixed two-place decimal text, dates as YYYY-MM-DD and
// timestamps as RFC 3339 text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	DB *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Begin starts a new database transaction
func (r *BaseRepository) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapSQLiteError("failed to begin transaction", err)
	}
	return tx, nil
}

// Commit commits a transaction
func (r *BaseRepository) Commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return mapSQLiteError("failed to commit transaction", err)
	}
	return nil
}

// Rollback rolls back a transaction
func (r *BaseRepository) Rollback(tx *sql.Tx) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return apperrors.NewAppError(500, "failed to rollback transaction", err)
	}
	return nil
}

// mapSQLiteError converts driver errors into the application's error vocabulary.
func mapSQLiteError(msg string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s: %v", apperrors.ErrDuplicate, msg, sqliteErr)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintNotNull:
			return apperrors.NewAppError(http.StatusBadRequest, msg, err)
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintTrigger,
			sqliteErr.Code == sqlite3.ErrConstraint:
			return apperrors.NewAppError(http.StatusConflict, msg, err)
		case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
			return apperrors.NewAppError(http.StatusServiceUnavailable, msg, err)
		}
	}
	return apperrors.NewAppError(http.StatusInternalServerError, msg, err)
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(domain.AmountScale)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatDate(t time.Time) string {
	return domain.NormalizeDate(t).Format(dateLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed date %q: %w", s, err)
	}
	return t, nil
}
