package dto

import (
	"time"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateFeeTypeRequest defines the data needed to register a fee type.
type CreateFeeTypeRequest struct {
	Code          string          `json:"code" yaml:"code" binding:"required,max=32"`
	Name          string          `json:"name" yaml:"name" binding:"required,max=100"`
	Description   string          `json:"description" yaml:"description" binding:"max=500"`
	DefaultAmount decimal.Decimal `json:"defaultAmount" yaml:"defaultAmount" binding:"decimal_gte0" swaggertype:"string"`
}

// ListFeeTypesParams defines the query parameters for listing fee types.
type ListFeeTypesParams struct {
	ActiveOnly bool `form:"activeOnly"`
}

// FeeTypeResponse defines the data returned for a fee type.
type FeeTypeResponse struct {
	FeeTypeID     string          `json:"feeTypeID"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	DefaultAmount decimal.Decimal `json:"defaultAmount" swaggertype:"string"`
	IsActive      bool            `json:"isActive"`
	CreatedAt     time.Time       `json:"createdAt"`
	CreatedBy     string          `json:"createdBy"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
	LastUpdatedBy string          `json:"lastUpdatedBy"`
}

// ListFeeTypesResponse wraps a list of fee types.
type ListFeeTypesResponse struct {
	FeeTypes []FeeTypeResponse `json:"feeTypes"`
}

// ToFeeTypeResponse converts a domain.FeeType to FeeTypeResponse DTO.
func ToFeeTypeResponse(ft *domain.FeeType) FeeTypeResponse {
	return FeeTypeResponse{
		FeeTypeID:     ft.FeeTypeID,
		Code:          ft.Code,
		Name:          ft.Name,
		Description:   ft.Description,
		DefaultAmount: ft.DefaultAmount,
		IsActive:      ft.IsActive,
		CreatedAt:     ft.CreatedAt,
		CreatedBy:     ft.CreatedBy,
		LastUpdatedAt: ft.LastUpdatedAt,
		LastUpdatedBy: ft.LastUpdatedBy,
	}
}

// ToListFeeTypesResponse converts a slice of domain.FeeType.
func ToListFeeTypesResponse(feeTypes []domain.FeeType) ListFeeTypesResponse {
	list := make([]FeeTypeResponse, len(feeTypes))
	for i := range feeTypes {
		list[i] = ToFeeTypeResponse(&feeTypes[i])
	}
	return ListFeeTypesResponse{FeeTypes: list}
}
