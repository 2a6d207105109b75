package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/student_ledger/internal/models"
	"github.com/SscSPs/student_ledger/internal/utils/mapping"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const feeTypeColumns = `fee_type_id, code, name, description, default_amount, is_active,
	created_at, created_by, last_updated_at, last_updated_by`

type PgxFeeTypeRepository struct {
	BaseRepository
}

func newPgxFeeTypeRepository(pool *pgxpool.Pool) portsrepo.FeeTypeRepositoryFacade {
	return &PgxFeeTypeRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.FeeTypeRepositoryFacade = (*PgxFeeTypeRepository)(nil)

func (r *PgxFeeTypeRepository) SaveFeeType(ctx context.Context, feeType domain.FeeType) error {
	m := mapping.ToModelFeeType(feeType)
	query := `
		INSERT INTO fee_types (` + feeTypeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err := r.Pool.Exec(ctx, query,
		m.FeeTypeID,
		m.Code,
		m.Name,
		m.Description,
		m.DefaultAmount,
		m.IsActive,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return mapPgError("failed to save fee type "+m.Code, err)
	}
	return nil
}

func (r *PgxFeeTypeRepository) SetFeeTypeActive(ctx context.Context, feeTypeID string, active bool, userID string, now time.Time) error {
	query := `
		UPDATE fee_types
		SET is_active = $2, last_updated_at = $3, last_updated_by = $4
		WHERE fee_type_id = $1;
	`
	tag, err := r.Pool.Exec(ctx, query, feeTypeID, active, now, userID)
	if err != nil {
		return mapPgError("failed to update fee type "+feeTypeID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("fee type", feeTypeID)
	}
	return nil
}

func (r *PgxFeeTypeRepository) FindFeeTypeByID(ctx context.Context, feeTypeID string) (*domain.FeeType, error) {
	query := `SELECT ` + feeTypeColumns + ` FROM fee_types WHERE fee_type_id = $1;`
	ft, err := scanFeeType(r.Pool.QueryRow(ctx, query, feeTypeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("fee type", feeTypeID)
		}
		return nil, mapPgError("failed to find fee type "+feeTypeID, err)
	}
	return &ft, nil
}

func (r *PgxFeeTypeRepository) FindFeeTypesByIDs(ctx context.Context, feeTypeIDs []string) (map[string]domain.FeeType, error) {
	found := make(map[string]domain.FeeType, len(feeTypeIDs))
	if len(feeTypeIDs) == 0 {
		return found, nil
	}
	query := `SELECT ` + feeTypeColumns + ` FROM fee_types WHERE fee_type_id = ANY($1);`
	rows, err := r.Pool.Query(ctx, query, feeTypeIDs)
	if err != nil {
		return nil, mapPgError("failed to find fee types", err)
	}
	defer rows.Close()

	for rows.Next() {
		ft, err := scanFeeType(rows)
		if err != nil {
			return nil, mapPgError("failed to scan fee type", err)
		}
		found[ft.FeeTypeID] = ft
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError("error iterating fee type rows", err)
	}
	return found, nil
}

func (r *PgxFeeTypeRepository) ListFeeTypes(ctx context.Context, activeOnly bool) ([]domain.FeeType, error) {
	query := `SELECT ` + feeTypeColumns + ` FROM fee_types WHERE ($1 = FALSE OR is_active) ORDER BY name, code;`
	rows, err := r.Pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, mapPgError("failed to list fee types", err)
	}
	defer rows.Close()

	list := make([]domain.FeeType, 0)
	for rows.Next() {
		ft, err := scanFeeType(rows)
		if err != nil {
			return nil, mapPgError("failed to scan fee type", err)
		}
		list = append(list, ft)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError("error iterating fee type rows", err)
	}
	return list, nil
}

func scanFeeType(row pgx.Row) (domain.FeeType, error) {
	var m models.FeeType
	err := row.Scan(
		&m.FeeTypeID,
		&m.Code,
		&m.Name,
		&m.Description,
		&m.DefaultAmount,
		&m.IsActive,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	if err != nil {
		return domain.FeeType{}, err
	}
	return mapping.ToDomainFeeType(m), nil
}
