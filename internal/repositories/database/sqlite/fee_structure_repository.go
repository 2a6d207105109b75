package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/student_ledger/internal/models"
	"github.com/SscSPs/student_ledger/internal/utils/mapping"
)

const feeStructureColumns = `structure_id, name, code, academic_year_id, class_ref, description, total_amount,
	created_at, created_by, last_updated_at, last_updated_by`

const componentColumns = `component_id, structure_id, fee_type_id, amount, is_mandatory, display_order, created_at, created_by`

type SQLiteFeeStructureRepository struct {
	BaseRepository
}

func newSQLiteFeeStructureRepository(db *sql.DB) portsrepo.FeeStructureRepositoryFacade {
	return &SQLiteFeeStructureRepository{BaseRepository: BaseRepository{DB: db}}
}

var _ portsrepo.FeeStructureRepositoryFacade = (*SQLiteFeeStructureRepository)(nil)

func (r *SQLiteFeeStructureRepository) SaveFeeStructure(ctx context.Context, structure domain.FeeStructure) (*domain.FeeStructure, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(tx)

	structure.RecomputeTotal()
	m := mapping.ToModelFeeStructure(structure)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO fee_structures (`+feeStructureColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		m.StructureID,
		m.Name,
		m.Code,
		m.AcademicYearID,
		m.ClassRef,
		m.Description,
		formatAmount(m.TotalAmount),
		formatTime(m.CreatedAt),
		m.CreatedBy,
		formatTime(m.LastUpdatedAt),
		m.LastUpdatedBy,
	)
	if err != nil {
		return nil, mapSQLiteError("failed to insert fee structure "+m.Code, err)
	}
	for _, c := range structure.Components {
		c.StructureID = structure.StructureID
		if err := insertComponent(ctx, tx, c); err != nil {
			return nil, err
		}
	}

	saved, err := loadStructure(ctx, tx, structure.StructureID)
	if err != nil {
		return nil, err
	}
	if err := r.Commit(tx); err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *SQLiteFeeStructureRepository) AddComponent(ctx context.Context, structureID string, component domain.FeeStructureComponent, userID string, now time.Time) (*domain.FeeStructure, error) {
	return r.mutate(ctx, structureID, userID, now, func(tx *sql.Tx) error {
		component.StructureID = structureID
		return insertComponent(ctx, tx, component)
	})
}

func (r *SQLiteFeeStructureRepository) UpdateComponent(ctx context.Context, structureID string, component domain.FeeStructureComponent, userID string, now time.Time) (*domain.FeeStructure, error) {
	return r.mutate(ctx, structureID, userID, now, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE fee_structure_components SET amount = ?, is_mandatory = ?, display_order = ?
			 WHERE structure_id = ? AND component_id = ?;`,
			formatAmount(component.Amount), component.IsMandatory, component.DisplayOrder, structureID, component.ComponentID)
		if err != nil {
			return mapSQLiteError("failed to update fee structure component", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NewNotFoundError("fee structure component", strconv.FormatInt(component.ComponentID, 10))
		}
		return nil
	})
}

func (r *SQLiteFeeStructureRepository) RemoveComponent(ctx context.Context, structureID string, componentID int64, userID string, now time.Time) (*domain.FeeStructure, error) {
	return r.mutate(ctx, structureID, userID, now, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM fee_structure_components WHERE structure_id = ? AND component_id = ?;`, structureID, componentID)
		if err != nil {
			return mapSQLiteError("failed to delete fee structure component", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NewNotFoundError("fee structure component", strconv.FormatInt(componentID, 10))
		}
		var remaining int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM fee_structure_components WHERE structure_id = ?;`, structureID).Scan(&remaining); err != nil {
			return mapSQLiteError("failed to count fee structure components", err)
		}
		if remaining == 0 {
			return apperrors.NewValidationError("components", "cannot remove the last component of a fee structure")
		}
		return nil
	})
}

// mutate applies change and rewrites total_amount in one write transaction.
// The connection is opened with _txlock=immediate, so BEGIN already holds the write lock.
func (r *SQLiteFeeStructureRepository) mutate(ctx context.Context, structureID, userID string, now time.Time, change func(tx *sql.Tx) error) (*domain.FeeStructure, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(tx)

	if _, err := loadStructure(ctx, tx, structureID); err != nil {
		return nil, err
	}
	if err := change(tx); err != nil {
		return nil, err
	}

	// Summed in Go: SQLite would coerce the decimal text to floating point.
	current, err := loadStructure(ctx, tx, structureID)
	if err != nil {
		return nil, err
	}
	current.RecomputeTotal()
	_, err = tx.ExecContext(ctx,
		`UPDATE fee_structures SET total_amount = ?, last_updated_at = ?, last_updated_by = ? WHERE structure_id = ?;`,
		formatAmount(current.TotalAmount), formatTime(now), userID, structureID)
	if err != nil {
		return nil, mapSQLiteError("failed to recompute fee structure total", err)
	}
	current.LastUpdatedAt = now
	current.LastUpdatedBy = userID

	if err := r.Commit(tx); err != nil {
		return nil, err
	}
	return current, nil
}

func (r *SQLiteFeeStructureRepository) DeleteFeeStructure(ctx context.Context, structureID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM fee_structures WHERE structure_id = ?;`, structureID)
	if err != nil {
		return mapSQLiteError("failed to delete fee structure "+structureID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError("fee structure", structureID)
	}
	return nil
}

func (r *SQLiteFeeStructureRepository) FindFeeStructureByID(ctx context.Context, structureID string) (*domain.FeeStructure, error) {
	return loadStructure(ctx, r.DB, structureID)
}

func (r *SQLiteFeeStructureRepository) FindFeeStructureByCode(ctx context.Context, academicYearID, code string) (*domain.FeeStructure, error) {
	var structureID string
	err := r.DB.QueryRowContext(ctx,
		`SELECT structure_id FROM fee_structures WHERE academic_year_id = ? AND code = ?;`, academicYearID, code).Scan(&structureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("fee structure", academicYearID+"/"+code)
		}
		return nil, mapSQLiteError("failed to find fee structure "+code, err)
	}
	return loadStructure(ctx, r.DB, structureID)
}

func (r *SQLiteFeeStructureRepository) ListFeeStructures(ctx context.Context, academicYearID string) ([]domain.FeeStructure, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+feeStructureColumns+` FROM fee_structures WHERE academic_year_id = ? ORDER BY code;`, academicYearID)
	if err != nil {
		return nil, mapSQLiteError("failed to list fee structures", err)
	}
	headers := make([]models.FeeStructure, 0)
	ids := make([]string, 0)
	for rows.Next() {
		m, err := scanFeeStructure(rows)
		if err != nil {
			rows.Close()
			return nil, mapSQLiteError("failed to scan fee structure", err)
		}
		headers = append(headers, m)
		ids = append(ids, m.StructureID)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, mapSQLiteError("error iterating fee structure rows", err)
	}

	components, err := loadComponents(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	list := make([]domain.FeeStructure, 0, len(headers))
	for _, h := range headers {
		list = append(list, mapping.ToDomainFeeStructure(h, components[h.StructureID]))
	}
	return list, nil
}

func insertComponent(ctx context.Context, q querier, c domain.FeeStructureComponent) error {
	m := mapping.ToModelFeeStructureComponent(c)
	_, err := q.ExecContext(ctx,
		`INSERT INTO fee_structure_components (structure_id, fee_type_id, amount, is_mandatory, display_order, created_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?);`,
		m.StructureID,
		m.FeeTypeID,
		formatAmount(m.Amount),
		m.IsMandatory,
		m.DisplayOrder,
		formatTime(m.CreatedAt),
		m.CreatedBy,
	)
	if err != nil {
		return mapSQLiteError("failed to insert component for fee type "+m.FeeTypeID, err)
	}
	return nil
}

func loadStructure(ctx context.Context, q querier, structureID string) (*domain.FeeStructure, error) {
	m, err := scanFeeStructure(q.QueryRowContext(ctx,
		`SELECT `+feeStructureColumns+` FROM fee_structures WHERE structure_id = ?;`, structureID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("fee structure", structureID)
		}
		return nil, mapSQLiteError("failed to find fee structure "+structureID, err)
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
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(structureIDs)), ", ")
	args := make([]any, len(structureIDs))
	for i, id := range structureIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx,
		`SELECT `+componentColumns+` FROM fee_structure_components
		 WHERE structure_id IN (`+placeholders+`) ORDER BY display_order, component_id;`, args...)
	if err != nil {
		return nil, mapSQLiteError("failed to load fee structure components", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.FeeStructureComponent
		var createdAt string
		if err := rows.Scan(
			&c.ComponentID,
			&c.StructureID,
			&c.FeeTypeID,
			&c.Amount,
			&c.IsMandatory,
			&c.DisplayOrder,
			&createdAt,
			&c.CreatedBy,
		); err != nil {
			return nil, mapSQLiteError("failed to scan fee structure component", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, mapSQLiteError("failed to parse component timestamp", err)
		}
		byStructure[c.StructureID] = append(byStructure[c.StructureID], c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapSQLiteError("error iterating component rows", err)
	}
	return byStructure, nil
}

func scanFeeStructure(row rowScanner) (models.FeeStructure, error) {
	var m models.FeeStructure
	var createdAt, updatedAt string
	err := row.Scan(
		&m.StructureID,
		&m.Name,
		&m.Code,
		&m.AcademicYearID,
		&m.ClassRef,
		&m.Description,
		&m.TotalAmount,
		&createdAt,
		&m.CreatedBy,
		&updatedAt,
		&m.LastUpdatedBy,
	)
	if err != nil {
		return m, err
	}
	if m.CreatedAt, err = parseTime(createdAt); err != nil {
		return m, err
	}
	m.LastUpdatedAt, err = parseTime(updatedAt)
	return m, err
}
