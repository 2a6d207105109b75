package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/student_ledger/internal/models"
	"github.com/SscSPs/student_ledger/internal/utils/mapping"
)

const feeTypeColumns = `fee_type_id, code, name, description, default_amount, is_active,
	created_at, created_by, last_updated_at, last_updated_by`

type SQLiteFeeTypeRepository struct {
	BaseRepository
}

func newSQLiteFeeTypeRepository(db *sql.DB) portsrepo.FeeTypeRepositoryFacade {
	return &SQLiteFeeTypeRepository{BaseRepository: BaseRepository{DB: db}}
}

var _ portsrepo.FeeTypeRepositoryFacade = (*SQLiteFeeTypeRepository)(nil)

func (r *SQLiteFeeTypeRepository) SaveFeeType(ctx context.Context, feeType domain.FeeType) error {
	m := mapping.ToModelFeeType(feeType)
	query := `INSERT INTO fee_types (` + feeTypeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`
	_, err := r.DB.ExecContext(ctx, query,
		m.FeeTypeID,
		m.Code,
		m.Name,
		m.Description,
		formatAmount(m.DefaultAmount),
		m.IsActive,
		formatTime(m.CreatedAt),
		m.CreatedBy,
		formatTime(m.LastUpdatedAt),
		m.LastUpdatedBy,
	)
	if err != nil {
		return mapSQLiteError("failed to save fee type "+m.Code, err)
	}
	return nil
}

func (r *SQLiteFeeTypeRepository) SetFeeTypeActive(ctx context.Context, feeTypeID string, active bool, userID string, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE fee_types SET is_active = ?, last_updated_at = ?, last_updated_by = ? WHERE fee_type_id = ?;`,
		active, formatTime(now), userID, feeTypeID)
	if err != nil {
		return mapSQLiteError("failed to update fee type "+feeTypeID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("fee type", feeTypeID)
	}
	return nil
}

func (r *SQLiteFeeTypeRepository) FindFeeTypeByID(ctx context.Context, feeTypeID string) (*domain.FeeType, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+feeTypeColumns+` FROM fee_types WHERE fee_type_id = ?;`, feeTypeID)
	ft, err := scanFeeType(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("fee type", feeTypeID)
		}
		return nil, mapSQLiteError("failed to find fee type "+feeTypeID, err)
	}
	return &ft, nil
}

func (r *SQLiteFeeTypeRepository) FindFeeTypesByIDs(ctx context.Context, feeTypeIDs []string) (map[string]domain.FeeType, error) {
	found := make(map[string]domain.FeeType, len(feeTypeIDs))
	if len(feeTypeIDs) == 0 {
		return found, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(feeTypeIDs)), ", ")
	args := make([]any, len(feeTypeIDs))
	for i, id := range feeTypeIDs {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+feeTypeColumns+` FROM fee_types WHERE fee_type_id IN (`+placeholders+`);`, args...)
	if err != nil {
		return nil, mapSQLiteError("failed to find fee types", err)
	}
	defer rows.Close()

	for rows.Next() {
		ft, err := scanFeeType(rows)
		if err != nil {
			return nil, mapSQLiteError("failed to scan fee type", err)
		}
		found[ft.FeeTypeID] = ft
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError("error iterating fee type rows", err)
	}
	return found, nil
}

func (r *SQLiteFeeTypeRepository) ListFeeTypes(ctx context.Context, activeOnly bool) ([]domain.FeeType, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+feeTypeColumns+` FROM fee_types WHERE (? = 0 OR is_active = 1) ORDER BY name, code;`, activeOnly)
	if err != nil {
		return nil, mapSQLiteError("failed to list fee types", err)
	}
	defer rows.Close()

	list := make([]domain.FeeType, 0)
	for rows.Next() {
		ft, err := scanFeeType(rows)
		if err != nil {
			return nil, mapSQLiteError("failed to scan fee type", err)
		}
		list = append(list, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError("error iterating fee type rows", err)
	}
	return list, nil
}

func scanFeeType(row rowScanner) (domain.FeeType, error) {
	var m models.FeeType
	var createdAt, updatedAt string
	err := row.Scan(
		&m.FeeTypeID,
		&m.Code,
		&m.Name,
		&m.Description,
		&m.DefaultAmount,
		&m.IsActive,
		&createdAt,
		&m.CreatedBy,
		&updatedAt,
		&m.LastUpdatedBy,
	)
	if err != nil {
		return domain.FeeType{}, err
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.FeeType{}, err
	}
	if m.LastUpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.FeeType{}, err
	}
	return mapping.ToDomainFeeType(m), nil
}
