package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeType is a row of fee_types.
type FeeType struct {
	FeeTypeID     string
	Code          string
	Name          string
	Description   string
	DefaultAmount decimal.Decimal
	IsActive      bool
	AuditFields
}

// FeeStructure is a row of fee_structures.
type FeeStructure struct {
	StructureID    string
	Name           string
	Code           string
	AcademicYearID string
	ClassRef       string
	Description    string
	TotalAmount    decimal.Decimal
	AuditFields
}

// FeeStructureComponent is a row of fee_structure_components.
type FeeStructureComponent struct {
	ComponentID  int64
	StructureID  string
	FeeTypeID    string
	Amount       decimal.Decimal
	IsMandatory  bool
	DisplayOrder int
	CreatedAt    time.Time
	CreatedBy    string
}
