package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/student_ledger/internal/core/domain"
)

// FeeStructureReader defines read operations for fee structures.
// Returned structures carry their components ordered by display order, then insertion.
type FeeStructureReader interface {
	FindFeeStructureByID(ctx context.Context, structureID string) (*domain.FeeStructure, error)
	FindFeeStructureByCode(ctx context.Context, academicYearID, code string) (*domain.FeeStructure, error)
	ListFeeStructures(ctx context.Context, academicYearID string) ([]domain.FeeStructure, error)
}

// FeeStructureWriter defines write operations for fee structures.
// Every method that touches components rewrites total_amount in the same database
// transaction and returns the structure as committed.
type FeeStructureWriter interface {
	// SaveFeeStructure inserts the structure together with its components.
	SaveFeeStructure(ctx context.Context, structure domain.FeeStructure) (*domain.FeeStructure, error)

	// AddComponent appends a component. The same fee type twice yields apperrors.ErrDuplicate.
	AddComponent(ctx context.Context, structureID string, component domain.FeeStructureComponent, userID string, now time.Time) (*domain.FeeStructure, error)

	// UpdateComponent rewrites amount, mandatory flag and display order of a component.
	UpdateComponent(ctx context.Context, structureID string, component domain.FeeStructureComponent, userID string, now time.Time) (*domain.FeeStructure, error)

	// RemoveComponent deletes a component. Removing the last one is a validation error.
	RemoveComponent(ctx context.Context, structureID string, componentID int64, userID string, now time.Time) (*domain.FeeStructure, error)

	// DeleteFeeStructure deletes the structure and, by cascade, its components.
	DeleteFeeStructure(ctx context.Context, structureID string) error
}

// FeeStructureRepositoryFacade combines all fee structure repository interfaces
type FeeStructureRepositoryFacade interface {
	FeeStructureReader
	FeeStructureWriter
}
