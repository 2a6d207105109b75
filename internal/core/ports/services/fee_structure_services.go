package services

import (
	"context"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/SscSPs/student_ledger/internal/dto"
	"github.com/shopspring/decimal"
)

// FeeStructureReaderSvc defines read operations for fee structures
type FeeStructureReaderSvc interface {
	GetStructure(ctx context.Context, structureID string) (*domain.FeeStructure, error)
	ListStructures(ctx context.Context, academicYearID string) ([]domain.FeeStructure, error)

	// GetEffectiveTotal returns the live sum of the structure's components.
	GetEffectiveTotal(ctx context.Context, structureID string) (decimal.Decimal, error)

	// GetMandatoryTotal returns the live sum of mandatory components.
	GetMandatoryTotal(ctx context.Context, structureID string) (decimal.Decimal, error)
}

// FeeStructureWriterSvc defines write operations for fee structures
type FeeStructureWriterSvc interface {
	CreateStructure(ctx context.Context, req dto.CreateFeeStructureRequest, creatorUserID string) (*domain.FeeStructure, error)
	AddComponent(ctx context.Context, structureID string, req dto.FeeStructureComponentRequest, userID string) (*domain.FeeStructure, error)
	UpdateComponent(ctx context.Context, structureID string, componentID int64, req dto.UpdateFeeStructureComponentRequest, userID string) (*domain.FeeStructure, error)
	RemoveComponent(ctx context.Context, structureID string, componentID int64, userID string) (*domain.FeeStructure, error)
	DeleteStructure(ctx context.Context, structureID string, userID string) error
}

// FeeStructureSvcFacade combines all fee structure service interfaces
type FeeStructureSvcFacade interface {
	FeeStructureReaderSvc
	FeeStructureWriterSvc
}
