package mapping

import (
	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/SscSPs/student_ledger/internal/models"
)

func ToModelFeeType(d domain.FeeType) models.FeeType {
	return models.FeeType{
		FeeTypeID:     d.FeeTypeID,
		Code:          d.Code,
		Name:          d.Name,
		Description:   d.Description,
		DefaultAmount: d.DefaultAmount,
		IsActive:      d.IsActive,
		AuditFields:   ToModelAuditFields(d.AuditFields),
	}
}

func ToDomainFeeType(m models.FeeType) domain.FeeType {
	return domain.FeeType{
		FeeTypeID:     m.FeeTypeID,
		Code:          m.Code,
		Name:          m.Name,
		Description:   m.Description,
		DefaultAmount: m.DefaultAmount,
		IsActive:      m.IsActive,
		AuditFields:   ToDomainAuditFields(m.AuditFields),
	}
}

func ToModelFeeStructure(d domain.FeeStructure) models.FeeStructure {
	return models.FeeStructure{
		StructureID:    d.StructureID,
		Name:           d.Name,
		Code:           d.Code,
		AcademicYearID: d.AcademicYearID,
		ClassRef:       d.ClassRef,
		Description:    d.Description,
		TotalAmount:    d.TotalAmount,
		AuditFields:    ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainFeeStructure assembles a structure from its row and component rows.
// Components are sorted for presentation.
func ToDomainFeeStructure(m models.FeeStructure, components []models.FeeStructureComponent) domain.FeeStructure {
	s := domain.FeeStructure{
		StructureID:    m.StructureID,
		Name:           m.Name,
		Code:           m.Code,
		AcademicYearID: m.AcademicYearID,
		ClassRef:       m.ClassRef,
		Description:    m.Description,
		TotalAmount:    m.TotalAmount,
		Components:     make([]domain.FeeStructureComponent, 0, len(components)),
		AuditFields:    ToDomainAuditFields(m.AuditFields),
	}
	for _, c := range components {
		s.Components = append(s.Components, ToDomainFeeStructureComponent(c))
	}
	s.SortComponents()
	return s
}

func ToModelFeeStructureComponent(d domain.FeeStructureComponent) models.FeeStructureComponent {
	return models.FeeStructureComponent{
		ComponentID:  d.ComponentID,
		StructureID:  d.StructureID,
		FeeTypeID:    d.FeeTypeID,
		Amount:       d.Amount,
		IsMandatory:  d.IsMandatory,
		DisplayOrder: d.DisplayOrder,
		CreatedAt:    d.CreatedAt,
		CreatedBy:    d.CreatedBy,
	}
}

func ToDomainFeeStructureComponent(m models.FeeStructureComponent) domain.FeeStructureComponent {
	return domain.FeeStructureComponent{
		ComponentID:  m.ComponentID,
		StructureID:  m.StructureID,
		FeeTypeID:    m.FeeTypeID,
		Amount:       m.Amount,
		IsMandatory:  m.IsMandatory,
		DisplayOrder: m.DisplayOrder,
		CreatedAt:    m.CreatedAt,
		CreatedBy:    m.CreatedBy,
	}
}
