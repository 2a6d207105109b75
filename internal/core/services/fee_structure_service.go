package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/dto"
)

// feeStructureService composes fee structures from registered fee types.
type feeStructureService struct {
	BaseService
	structureRepo portsrepo.FeeStructureRepositoryFacade
	feeTypeRepo   portsrepo.FeeTypeReader
}

// NewFeeStructureService creates a new FeeStructureService.
func NewFeeStructureService(structureRepo portsrepo.FeeStructureRepositoryFacade, feeTypeRepo portsrepo.FeeTypeReader) portssvc.FeeStructureSvcFacade {
	return &feeStructureService{
		structureRepo: structureRepo,
		feeTypeRepo:   feeTypeRepo,
	}
}

var _ portssvc.FeeStructureSvcFacade = (*feeStructureService)(nil)

func (s *feeStructureService) CreateStructure(ctx context.Context, req dto.CreateFeeStructureRequest, creatorUserID string) (*domain.FeeStructure, error) {
	name := strings.TrimSpace(req.Name)
	code := strings.TrimSpace(req.Code)
	year := strings.TrimSpace(req.AcademicYearID)
	attrs := []any{slog.String("code", code), slog.String("academic_year_id", year)}

	switch {
	case name == "":
		return nil, apperrors.NewValidationError("name", "is required")
	case code == "":
		return nil, apperrors.NewValidationError("code", "is required")
	case year == "":
		return nil, apperrors.NewValidationError("academic_year_id", "is required")
	case len(req.Components) == 0:
		return nil, apperrors.NewValidationError("components", "at least one component is required")
	}

	seen := make(map[string]bool, len(req.Components))
	feeTypeIDs := make([]string, 0, len(req.Components))
	for i, c := range req.Components {
		if err := validateComponentRequest(c); err != nil {
			return nil, fmt.Errorf("component %d: %w", i, err)
		}
		if seen[c.FeeTypeID] {
			return nil, apperrors.NewValidationError("components", fmt.Sprintf("fee type %s appears more than once", c.FeeTypeID))
		}
		seen[c.FeeTypeID] = true
		feeTypeIDs = append(feeTypeIDs, c.FeeTypeID)
	}
	if err := s.requireActiveFeeTypes(ctx, feeTypeIDs); err != nil {
		s.LogWarn(ctx, err, "Rejected fee structure", attrs...)
		return nil, err
	}

	if _, err := s.structureRepo.FindFeeStructureByCode(ctx, year, code); err == nil {
		return nil, apperrors.NewValidationError("code", fmt.Sprintf("code %s already used in academic year %s", code, year))
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		s.LogError(ctx, err, "Failed to check fee structure code", attrs...)
		return nil, err
	}

	now := s.Now()
	structure := domain.FeeStructure{
		StructureID:    uuid.NewString(),
		Name:           name,
		Code:           code,
		AcademicYearID: year,
		ClassRef:       strings.TrimSpace(req.ClassRef),
		Description:    req.Description,
		Components:     make([]domain.FeeStructureComponent, 0, len(req.Components)),
		AuditFields:    domain.NewAuditFields(creatorUserID, now),
	}
	for _, c := range req.Components {
		structure.Components = append(structure.Components, domain.FeeStructureComponent{
			FeeTypeID:    c.FeeTypeID,
			Amount:       c.Amount,
			IsMandatory:  c.IsMandatory,
			DisplayOrder: c.DisplayOrder,
			CreatedAt:    now,
			CreatedBy:    creatorUserID,
		})
	}
	structure.RecomputeTotal()

	saved, err := s.structureRepo.SaveFeeStructure(ctx, structure)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			// Lost a race with a concurrent create of the same code.
			return nil, apperrors.NewValidationError("code", fmt.Sprintf("code %s already used in academic year %s", code, year))
		}
		s.LogError(ctx, err, "Failed to save fee structure", attrs...)
		return nil, err
	}

	s.LogInfo(ctx, "Fee structure created", append(attrs,
		slog.String("structure_id", saved.StructureID),
		slog.String("total", saved.TotalAmount.String()))...)
	return saved, nil
}

func (s *feeStructureService) GetStructure(ctx context.Context, structureID string) (*domain.FeeStructure, error) {
	return s.structureRepo.FindFeeStructureByID(ctx, structureID)
}

func (s *feeStructureService) ListStructures(ctx context.Context, academicYearID string) ([]domain.FeeStructure, error) {
	if strings.TrimSpace(academicYearID) == "" {
		return nil, apperrors.NewValidationError("academic_year_id", "is required")
	}
	return s.structureRepo.ListFeeStructures(ctx, academicYearID)
}

// GetEffectiveTotal recomputes the sum from components rather than trusting the cached total.
func (s *feeStructureService) GetEffectiveTotal(ctx context.Context, structureID string) (decimal.Decimal, error) {
	structure, err := s.structureRepo.FindFeeStructureByID(ctx, structureID)
	if err != nil {
		return decimal.Zero, err
	}
	live := structure.ComponentsTotal()
	if !structure.IsTotalConsistent() {
		s.GetLogger(ctx).Warn("Cached fee structure total diverges from components",
			slog.String("structure_id", structureID),
			slog.String("cached", structure.TotalAmount.String()),
			slog.String("live", live.String()))
	}
	return live, nil
}

func (s *feeStructureService) GetMandatoryTotal(ctx context.Context, structureID string) (decimal.Decimal, error) {
	structure, err := s.structureRepo.FindFeeStructureByID(ctx, structureID)
	if err != nil {
		return decimal.Zero, err
	}
	return structure.MandatoryTotal(), nil
}

func (s *feeStructureService) AddComponent(ctx context.Context, structureID string, req dto.FeeStructureComponentRequest, userID string) (*domain.FeeStructure, error) {
	if err := validateComponentRequest(req); err != nil {
		return nil, err
	}
	if err := s.requireActiveFeeTypes(ctx, []string{req.FeeTypeID}); err != nil {
		s.LogWarn(ctx, err, "Rejected fee structure component", slog.String("structure_id", structureID))
		return nil, err
	}

	now := s.Now()
	component := domain.FeeStructureComponent{
		StructureID:  structureID,
		FeeTypeID:    req.FeeTypeID,
		Amount:       req.Amount,
		IsMandatory:  req.IsMandatory,
		DisplayOrder: req.DisplayOrder,
		CreatedAt:    now,
		CreatedBy:    userID,
	}
	updated, err := s.structureRepo.AddComponent(ctx, structureID, component, userID, now)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, apperrors.NewValidationError("fee_type_id", fmt.Sprintf("fee type %s is already part of the structure", req.FeeTypeID))
		}
		s.logRepoFailure(ctx, err, "Failed to add fee structure component", structureID)
		return nil, err
	}
	return updated, nil
}

func (s *feeStructureService) UpdateComponent(ctx context.Context, structureID string, componentID int64, req dto.UpdateFeeStructureComponentRequest, userID string) (*domain.FeeStructure, error) {
	structure, err := s.structureRepo.FindFeeStructureByID(ctx, structureID)
	if err != nil {
		return nil, err
	}
	component, ok := structure.FindComponent(componentID)
	if !ok {
		return nil, apperrors.NewNotFoundError("fee structure component", fmt.Sprint(componentID))
	}

	if req.Amount != nil {
		if err := domain.ValidateNonNegativeAmount(*req.Amount); err != nil {
			return nil, err
		}
		component.Amount = *req.Amount
	}
	if req.IsMandatory != nil {
		component.IsMandatory = *req.IsMandatory
	}
	if req.DisplayOrder != nil {
		if *req.DisplayOrder < 0 {
			return nil, apperrors.NewValidationError("display_order", "must not be negative")
		}
		component.DisplayOrder = *req.DisplayOrder
	}

	updated, err := s.structureRepo.UpdateComponent(ctx, structureID, component, userID, s.Now())
	if err != nil {
		s.logRepoFailure(ctx, err, "Failed to update fee structure component", structureID)
		return nil, err
	}
	return updated, nil
}

func (s *feeStructureService) RemoveComponent(ctx context.Context, structureID string, componentID int64, userID string) (*domain.FeeStructure, error) {
	updated, err := s.structureRepo.RemoveComponent(ctx, structureID, componentID, userID, s.Now())
	if err != nil {
		s.logRepoFailure(ctx, err, "Failed to remove fee structure component", structureID)
		return nil, err
	}
	return updated, nil
}

func (s *feeStructureService) DeleteStructure(ctx context.Context, structureID string, userID string) error {
	if err := s.structureRepo.DeleteFeeStructure(ctx, structureID); err != nil {
		s.logRepoFailure(ctx, err, "Failed to delete fee structure", structureID)
		return err
	}
	s.LogInfo(ctx, "Fee structure deleted", slog.String("structure_id", structureID), slog.String("user_id", userID))
	return nil
}

// requireActiveFeeTypes fails with a ValidationError naming the first unknown or inactive fee type.
func (s *feeStructureService) requireActiveFeeTypes(ctx context.Context, feeTypeIDs []string) error {
	found, err := s.feeTypeRepo.FindFeeTypesByIDs(ctx, feeTypeIDs)
	if err != nil {
		return err
	}
	for _, id := range feeTypeIDs {
		ft, ok := found[id]
		if !ok {
			return apperrors.NewValidationError("fee_type_id", fmt.Sprintf("fee type %s does not exist", id))
		}
		if !ft.IsActive {
			return apperrors.NewValidationError("fee_type_id", fmt.Sprintf("fee type %s is inactive", id))
		}
	}
	return nil
}

func (s *feeStructureService) logRepoFailure(ctx context.Context, err error, msg, structureID string) {
	if isDomainError(err) {
		s.LogWarn(ctx, err, msg, slog.String("structure_id", structureID))
		return
	}
	s.LogError(ctx, err, msg, slog.String("structure_id", structureID))
}

func validateComponentRequest(c dto.FeeStructureComponentRequest) error {
	if strings.TrimSpace(c.FeeTypeID) == "" {
		return apperrors.NewValidationError("fee_type_id", "is required")
	}
	if err := domain.ValidateNonNegativeAmount(c.Amount); err != nil {
		return err
	}
	if c.DisplayOrder < 0 {
		return apperrors.NewValidationError("display_order", "must not be negative")
	}
	return nil
}
