package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/dto"
)

// feeTypeService is the fee type registry.
type feeTypeService struct {
	BaseService
	feeTypeRepo portsrepo.FeeTypeRepositoryFacade
}

// NewFeeTypeService creates a new FeeTypeService.
func NewFeeTypeService(feeTypeRepo portsrepo.FeeTypeRepositoryFacade) portssvc.FeeTypeSvcFacade {
	return &feeTypeService{feeTypeRepo: feeTypeRepo}
}

var _ portssvc.FeeTypeSvcFacade = (*feeTypeService)(nil)

func (s *feeTypeService) CreateFeeType(ctx context.Context, req dto.CreateFeeTypeRequest, creatorUserID string) (*domain.FeeType, error) {
	code := strings.ToLower(strings.TrimSpace(req.Code))
	name := strings.TrimSpace(req.Name)
	if code == "" {
		return nil, apperrors.NewValidationError("code", "is required")
	}
	if name == "" {
		return nil, apperrors.NewValidationError("name", "is required")
	}
	if err := domain.ValidateNonNegativeAmount(req.DefaultAmount); err != nil {
		return nil, err
	}

	feeType := domain.FeeType{
		FeeTypeID:     uuid.NewString(),
		Code:          code,
		Name:          name,
		Description:   req.Description,
		DefaultAmount: req.DefaultAmount,
		IsActive:      true,
		AuditFields:   domain.NewAuditFields(creatorUserID, s.Now()),
	}
	if err := s.feeTypeRepo.SaveFeeType(ctx, feeType); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			s.LogWarn(ctx, err, "Fee type code already registered", slog.String("code", code))
			return nil, err
		}
		s.LogError(ctx, err, "Failed to save fee type", slog.String("code", code))
		return nil, err
	}

	s.LogInfo(ctx, "Fee type created", slog.String("fee_type_id", feeType.FeeTypeID), slog.String("code", code))
	return &feeType, nil
}

func (s *feeTypeService) GetFeeType(ctx context.Context, feeTypeID string) (*domain.FeeType, error) {
	return s.feeTypeRepo.FindFeeTypeByID(ctx, feeTypeID)
}

func (s *feeTypeService) ListFeeTypes(ctx context.Context, activeOnly bool) ([]domain.FeeType, error) {
	return s.feeTypeRepo.ListFeeTypes(ctx, activeOnly)
}

// DeactivateFeeType never refuses a referenced fee type; components keep resolving it.
func (s *feeTypeService) DeactivateFeeType(ctx context.Context, feeTypeID string, userID string) error {
	return s.setActive(ctx, feeTypeID, false, userID)
}

func (s *feeTypeService) ActivateFeeType(ctx context.Context, feeTypeID string, userID string) error {
	return s.setActive(ctx, feeTypeID, true, userID)
}

func (s *feeTypeService) setActive(ctx context.Context, feeTypeID string, active bool, userID string) error {
	current, err := s.feeTypeRepo.FindFeeTypeByID(ctx, feeTypeID)
	if err != nil {
		return err
	}
	if current.IsActive == active {
		return nil
	}
	if err := s.feeTypeRepo.SetFeeTypeActive(ctx, feeTypeID, active, userID, s.Now()); err != nil {
		s.LogError(ctx, err, "Failed to change fee type status", slog.String("fee_type_id", feeTypeID))
		return err
	}
	s.LogInfo(ctx, "Fee type status changed", slog.String("fee_type_id", feeTypeID), slog.Bool("active", active))
	return nil
}
