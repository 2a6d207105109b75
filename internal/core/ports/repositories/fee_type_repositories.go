package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/student_ledger/internal/core/domain"
)

// FeeTypeReader defines read operations for fee types
type FeeTypeReader interface {
	// FindFeeTypeByID retrieves a fee type regardless of its active flag.
	FindFeeTypeByID(ctx context.Context, feeTypeID string) (*domain.FeeType, error)

	// FindFeeTypesByIDs retrieves the fee types that exist among ids, keyed by id.
	// Missing ids are simply absent from the map.
	FindFeeTypesByIDs(ctx context.Context, feeTypeIDs []string) (map[string]domain.FeeType, error)

	// ListFeeTypes lists fee types ordered by name.
	ListFeeTypes(ctx context.Context, activeOnly bool) ([]domain.FeeType, error)
}

// FeeTypeWriter defines write operations for fee types
type FeeTypeWriter interface {
	// SaveFeeType inserts a new fee type. A duplicate code yields apperrors.ErrDuplicate.
	SaveFeeType(ctx context.Context, feeType domain.FeeType) error

	// SetFeeTypeActive flips the soft active flag. Fee types are never deleted.
	SetFeeTypeActive(ctx context.Context, feeTypeID string, active bool, userID string, now time.Time) error
}

// FeeTypeRepositoryFacade combines all fee type repository interfaces
type FeeTypeRepositoryFacade interface {
	FeeTypeReader
	FeeTypeWriter
}
