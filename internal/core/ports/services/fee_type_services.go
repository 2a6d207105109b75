package services

import (
	"context"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/SscSPs/student_ledger/internal/dto"
)

// FeeTypeReaderSvc defines read operations for fee types
type FeeTypeReaderSvc interface {
	GetFeeType(ctx context.Context, feeTypeID string) (*domain.FeeType, error)
	ListFeeTypes(ctx context.Context, activeOnly bool) ([]domain.FeeType, error)
}

// FeeTypeWriterSvc defines write operations for fee types
type FeeTypeWriterSvc interface {
	CreateFeeType(ctx context.Context, req dto.CreateFeeTypeRequest, creatorUserID string) (*domain.FeeType, error)

	// DeactivateFeeType soft-deactivates a fee type. It is permitted even while
	// structures still reference it; those references stay resolvable.
	DeactivateFeeType(ctx context.Context, feeTypeID string, userID string) error

	ActivateFeeType(ctx context.Context, feeTypeID string, userID string) error
}

// FeeTypeSvcFacade combines all fee type service interfaces
type FeeTypeSvcFacade interface {
	FeeTypeReaderSvc
	FeeTypeWriterSvc
}
