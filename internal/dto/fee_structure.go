package dto

import (
	"time"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// FeeStructureComponentRequest defines one component of a structure.
type FeeStructureComponentRequest struct {
	FeeTypeID    string          `json:"feeTypeID" binding:"required"`
	Amount       decimal.Decimal `json:"amount" binding:"decimal_gte0" swaggertype:"string"`
	IsMandatory  bool            `json:"isMandatory"`
	DisplayOrder int             `json:"displayOrder" binding:"gte=0"`
}

// CreateFeeStructureRequest defines the data needed to compose a fee structure.
type CreateFeeStructureRequest struct {
	Name           string                         `json:"name" binding:"required,max=150"`
	Code           string                         `json:"code" binding:"required,max=50"`
	AcademicYearID string                         `json:"academicYearID" binding:"required,max=32"`
	ClassRef       string                         `json:"classRef" binding:"max=64"`
	Description    string                         `json:"description" binding:"max=500"`
	Components     []FeeStructureComponentRequest `json:"components" binding:"required,min=1,dive"`
}

// UpdateFeeStructureComponentRequest changes a component. Nil fields are left as they are.
type UpdateFeeStructureComponentRequest struct {
	Amount       *decimal.Decimal `json:"amount,omitempty" swaggertype:"string"`
	IsMandatory  *bool            `json:"isMandatory,omitempty"`
	DisplayOrder *int             `json:"displayOrder,omitempty" binding:"omitempty,gte=0"`
}

// ListFeeStructuresParams defines the query parameters for listing structures.
type ListFeeStructuresParams struct {
	AcademicYearID string `form:"academicYearID" binding:"required"`
}

// FeeStructureComponentResponse defines the data returned for a component.
type FeeStructureComponentResponse struct {
	ComponentID  int64           `json:"componentID"`
	FeeTypeID    string          `json:"feeTypeID"`
	Amount       decimal.Decimal `json:"amount" swaggertype:"string"`
	IsMandatory  bool            `json:"isMandatory"`
	DisplayOrder int             `json:"displayOrder"`
}

// FeeStructureResponse defines the data returned for a fee structure.
type FeeStructureResponse struct {
	StructureID    string                          `json:"structureID"`
	Name           string                          `json:"name"`
	Code           string                          `json:"code"`
	AcademicYearID string                          `json:"academicYearID"`
	ClassRef       string                          `json:"classRef"`
	Description    string                          `json:"description"`
	TotalAmount    decimal.Decimal                 `json:"totalAmount" swaggertype:"string"`
	MandatoryTotal decimal.Decimal                 `json:"mandatoryTotal" swaggertype:"string"`
	Components     []FeeStructureComponentResponse `json:"components"`
	CreatedAt      time.Time                       `json:"createdAt"`
	CreatedBy      string                          `json:"createdBy"`
	LastUpdatedAt  time.Time                       `json:"lastUpdatedAt"`
	LastUpdatedBy  string                          `json:"lastUpdatedBy"`
}

// ListFeeStructuresResponse wraps a list of structures.
type ListFeeStructuresResponse struct {
	FeeStructures []FeeStructureResponse `json:"feeStructures"`
}

// EffectiveTotalResponse is the live component sum of a structure.
type EffectiveTotalResponse struct {
	StructureID    string          `json:"structureID"`
	Total          decimal.Decimal `json:"total" swaggertype:"string"`
	MandatoryTotal decimal.Decimal `json:"mandatoryTotal" swaggertype:"string"`
}

// ToFeeStructureResponse converts a domain.FeeStructure. The total is the live sum.
func ToFeeStructureResponse(s *domain.FeeStructure) FeeStructureResponse {
	components := make([]FeeStructureComponentResponse, len(s.Components))
	for i, c := range s.Components {
		components[i] = FeeStructureComponentResponse{
			ComponentID:  c.ComponentID,
			FeeTypeID:    c.FeeTypeID,
			Amount:       c.Amount,
			IsMandatory:  c.IsMandatory,
			DisplayOrder: c.DisplayOrder,
		}
	}
	return FeeStructureResponse{
		StructureID:    s.StructureID,
		Name:           s.Name,
		Code:           s.Code,
		AcademicYearID: s.AcademicYearID,
		ClassRef:       s.ClassRef,
		Description:    s.Description,
		TotalAmount:    s.ComponentsTotal(),
		MandatoryTotal: s.MandatoryTotal(),
		Components:     components,
		CreatedAt:      s.CreatedAt,
		CreatedBy:      s.CreatedBy,
		LastUpdatedAt:  s.LastUpdatedAt,
		LastUpdatedBy:  s.LastUpdatedBy,
	}
}

// ToListFeeStructuresResponse converts a slice of domain.FeeStructure.
func ToListFeeStructuresResponse(structures []domain.FeeStructure) ListFeeStructuresResponse {
	list := make([]FeeStructureResponse, len(structures))
	for i := range structures {
		list[i] = ToFeeStructureResponse(&structures[i])
	}
	return ListFeeStructuresResponse{FeeStructures: list}
}
