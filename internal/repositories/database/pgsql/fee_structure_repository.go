package pgsql

import (
	"context"
	"errors"
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

const feeStructureColumns = `structure_id, name, code, academic_year_id, class_ref, description, total_amount,
	created_at, created_by, last_updated_at, last_updated_by`

const componentColumns = `component_id, structure_id, fee_type_id, amount, is_mandatory, display_order, created_at, created_by`

type PgxFeeStructureRepository struct {
	BaseRepository
}

func newPgxFeeStructureRepository(pool *pgxpool.Pool) portsrepo.FeeStructureRepositoryFacade {
	return &PgxFeeStructureRepository{
		BaseRepository: BaseRepository{Pool: pool},
	}
}

var _ portsrepo.FeeStructureRepositoryFacade = (*PgxFeeStructureRepository)(nil)

// SaveFeeStructure inserts the structure row and its components in one transaction.
func (r *PgxFeeStructureRepository) SaveFeeStructure(ctx context.Context, structure domain.FeeStructure) (*domain.FeeStructure, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx)

	structure.RecomputeTotal()
	m := mapping.ToModelFeeStructure(structure)
	query := `
		INSERT INTO fee_structures (` + feeStructureColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err = tx.Exec(ctx, query,
		m.StructureID,
		m.Name,
		m.Code,
		m.AcademicYearID,
		m.ClassRef,
		m.Description,
		m.TotalAmount,
		m.CreatedAt,
		m.CreatedBy,
		m.LastUpdatedAt,
		m.LastUpdatedBy,
	)
	if err != nil {
		return nil, mapPgError("failed to insert fee structure "+m.Code, err)
	}

	for _, c := range structure.Components {
		c.StructureID = structure.StructureID
		if _, err := insertComponent(ctx, tx, c); err != nil {
			return nil, err
		}
	}

	saved, err := loadStructure(ctx, tx, structure.StructureID)
	if err != nil {
		return nil, err
	}
	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *PgxFeeStructureRepository) AddComponent(ctx context.Context, structureID string, component domain.FeeStructureComponent, userID string, now time.Time) (*domain.FeeStructure, error) {
	return r.mutate(ctx, structureID, userID, now, func(tx pgx.Tx) error {
		component.StructureID = structureID
		_, err := insertComponent(ctx, tx, component)
		return err
	})
}

func (r *PgxFeeStructureRepository) UpdateComponent(ctx context.Context, structureID string, component domain.FeeStructureComponent, userID string, now time.Time) (*domain.FeeStructure, error) {
	return r.mutate(ctx, structureID, userID, now, func(tx pgx.Tx) error {
		query := `
			UPDATE fee_structure_components
			SET amount = $3, is_mandatory = $4, display_order = $5
			WHERE structure_id = $1 AND component_id = $2;
		`
		tag, err := tx.Exec(ctx, query, structureID, component.ComponentID, component.Amount, component.IsMandatory, component.DisplayOrder)
		if err != nil {
			return mapPgError("failed to update fee structure component", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NewNotFoundError("fee structure component", strconv.FormatInt(component.ComponentID, 10))
		}
		return nil
	})
}

func (r *PgxFeeStructureRepository) RemoveComponent(ctx context.Context, structureID string, componentID int64, userID string, now time.Time) (*domain.FeeStructure, error) {
	return r.mutate(ctx, structureID, userID, now, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM fee_structure_components WHERE structure_id = $1 AND component_id = $2;`, structureID, componentID)
		if err != nil {
			return mapPgError("failed to delete fee structure component", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NewNotFoundError("fee structure component", strconv.FormatInt(componentID, 10))
		}
		var remaining int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM fee_structure_components WHERE structure_id = $1;`, structureID).Scan(&remaining); err != nil {
			return mapPgError("failed to count fee structure components", err)
		}
		if remaining == 0 {
			return apperrors.NewValidationError("components", "cannot remove the last component of a fee structure")
		}
		return nil
	})
}

// mutate locks the structure row, applies change, rewrites total_amount and returns the result.
func (r *PgxFeeStructureRepository) mutate(ctx context.Context, structureID, userID string, now time.Time, change func(tx pgx.Tx) error) (*domain.FeeStructure, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx)

	var locked string
	err = tx.QueryRow(ctx, `SELECT structure_id FROM fee_structures WHERE structure_id = $1 FOR UPDATE;`, structureID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("fee structure", structureID)
		}
		return nil, mapPgError("failed to lock fee structure "+structureID, err)
	}

	if err := change(tx); err != nil {
		return nil, err
	}

	query := `
		UPDATE fee_structures
		SET total_amount = COALESCE((SELECT SUM(amount) FROM fee_structure_components WHERE structure_id = $1), 0),
		    last_updated_at = $2,
		    last_updated_by = $3
		WHERE structure_id = $1;
	`
	if _, err := tx.Exec(ctx, query, structureID, now, userID); err != nil {
		return nil, mapPgError("failed to recompute fee structure total", err)
	}

	updated, err := loadStructure(ctx, tx, structureID)
	if err != nil {
		return nil, err
	}
	if err := r.Commit(ctx, tx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PgxFeeStructureRepository) DeleteFeeStructure(ctx context.Context, structureID string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM fee_structures WHERE structure_id = $1;`, structureID)
	if err != nil {
		return mapPgError("failed to delete fee structure "+structureID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("fee structure", structureID)
	}
	return nil
}

func (r *PgxFeeStructureRepository) FindFeeStructureByID(ctx context.Context, structureID string) (*domain.FeeStructure, error) {
	return loadStructure(ctx, r.Pool, structureID)
}

func (r *PgxFeeStructureRepository) FindFeeStructureByCode(ctx context.Context, academicYearID, code string) (*domain.FeeStructure, error) {
	var structureID string
	err := r.Pool.QueryRow(ctx,
		`SELECT structure_id FROM fee_structures WHERE academic_year_id = $1 AND code = $2;`,
		academicYearID, code).Scan(&structureID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("fee structure", academicYearID+"/"+code)
		}
		return nil, mapPgError("failed to find fee structure "+code, err)
	}
	return loadStructure(ctx, r.Pool, structureID)
}

func (r *PgxFeeStructureRepository) ListFeeStructures(ctx context.Context, academicYearID string) ([]domain.FeeStructure, error) {
	query := `SELECT ` + feeStructureColumns + ` FROM fee_structures WHERE academic_year_id = $1 ORDER BY code;`
	rows, err := r.Pool.Query(ctx, query, academicYearID)
	if err != nil {
		return nil, mapPgError("failed to list fee structures", err)
	}
	defer rows.Close()

	headers := make([]models.FeeStructure, 0)
	ids := make([]string, 0)
	for rows.Next() {
		m, err := scanFeeStructure(rows)
		if err != nil {
			return nil, mapPgError("failed to scan fee structure", err)
		}
		headers = append(headers, m)
		ids = append(ids, m.StructureID)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError("error iterating fee structure rows", err)
	}
	rows.Close()

	components, err := loadComponents(ctx, r.Pool, ids)
	if err != nil {
		return nil, err
	}
	list := make([]domain.FeeStructure, 0, len(headers))
	for _, h := range headers {
		list = append(list, mapping.ToDomainFeeStructure(h, components[h.StructureID]))
	}
	return list, nil
}

func insertComponent(ctx context.Context, q querier, c domain.FeeStructureComponent) (int64, error) {
	m := mapping.ToModelFeeStructureComponent(c)
	query := `
		INSERT INTO fee_structure_components (structure_id, fee_type_id, amount, is_mandatory, display_order, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING component_id;
	`
	var id int64
	err := q.QueryRow(ctx, query,
		m.StructureID,
		m.FeeTypeID,
		m.Amount,
		m.IsMandatory,
		m.DisplayOrder,
		m.CreatedAt,
		m.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError("failed to insert component for fee type "+m.FeeTypeID, err)
	}
	return id, nil
}

func loadStructure(ctx context.Context, q querier, structureID string) (*domain.FeeStructure, error) {
	query := `SELECT ` + feeStructureColumns + ` FROM fee_structures WHERE structure_id = $1;`
	m, err := scanFeeStructure(q.QueryRow(ctx, query, structureID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("fee structure", structureID)
		}
		return nil, mapPgError("failed to find fee structure "+structureID, err)
	}
	components, err := loadComponents(ctx, q, []string{structureID})
	if err != nil {
		return nil, err
	}
	s := mapping.ToDomainFeeStructure(m, components[structureID])
	return &s, nil
}

func loadComponents(ctx context.Context, q querier, structureIDs []string) (map[string][]models.FeeStructureComponent, error) {
	byStructure := make(map[string][]models.FeeStructureComponent, len(structureIDs))
	if len(structureIDs) == 0 {
		return byStructure, nil
	}
	query := `
		SELECT ` + componentColumns + `
		FROM fee_structure_components
		WHERE structure_id = ANY($1)
		ORDER BY display_order, component_id;
	`
	rows, err := q.Query(ctx, query, structureIDs)
	if err != nil {
		return nil, mapPgError("failed to load fee structure components", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.FeeStructureComponent
		if err := rows.Scan(
			&c.ComponentID,
			&c.StructureID,
			&c.FeeTypeID,
			&c.Amount,
			&c.IsMandatory,
			&c.DisplayOrder,
			&c.CreatedAt,
			&c.CreatedBy,
		); err != nil {
			return nil, mapPgError("failed to scan fee structure component", err)
		}
		byStructure[c.StructureID] = append(byStructure[c.StructureID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError("error iterating component rows", err)
	}
	return byStructure, nil
}

func scanFeeStructure(row pgx.Row) (models.FeeStructure, error) {
	var m models.FeeStructure
	err := row.Scan(
		&m.StructureID,
		&m.Name,
		&m.Code,
		&m.AcademicYearID,
		&m.ClassRef,
		&m.Description,
		&m.TotalAmount,
		&m.CreatedAt,
		&m.CreatedBy,
		&m.LastUpdatedAt,
		&m.LastUpdatedBy,
	)
	return m, err
}
