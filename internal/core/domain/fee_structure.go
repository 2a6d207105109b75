package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// FeeStructure is a named bundle of fee-type amounts for a class in an academic year.
// TotalAmount is a cache of the component sum, rewritten with every component change.
type FeeStructure struct {
	StructureID    string                  `json:"structureID"`
	Name           string                  `json:"name"`
	Code           string                  `json:"code"`
	AcademicYearID string                  `json:"academicYearID"`
	ClassRef       string                  `json:"classRef"`
	Description    string                  `json:"description"`
	TotalAmount    decimal.Decimal         `json:"totalAmount"`
	Components     []FeeStructureComponent `json:"components"`
	AuditFields
}

// FeeStructureComponent is one fee type's amount inside a structure.
// DisplayOrder is presentation only; ties are broken by ComponentID, which grows with insertion.
type FeeStructureComponent struct {
	ComponentID  int64           `json:"componentID"`
	StructureID  string          `json:"structureID"`
	FeeTypeID    string          `json:"feeTypeID"`
	Amount       decimal.Decimal `json:"amount"`
	IsMandatory  bool            `json:"isMandatory"`
	DisplayOrder int             `json:"displayOrder"`
	CreatedAt    time.Time       `json:"createdAt"`
	CreatedBy    string          `json:"createdBy"`
}

// ComponentsTotal is the live sum of component amounts.
func (s *FeeStructure) ComponentsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range s.Components {
		total = total.Add(c.Amount)
	}
	return total
}

// MandatoryTotal is the sum of mandatory component amounts.
func (s *FeeStructure) MandatoryTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range s.Components {
		if c.IsMandatory {
			total = total.Add(c.Amount)
		}
	}
	return total
}

// RecomputeTotal rewrites the cached total from the components.
func (s *FeeStructure) RecomputeTotal() {
	s.TotalAmount = s.ComponentsTotal()
}

// IsTotalConsistent reports whether the cached total matches the live sum.
func (s *FeeStructure) IsTotalConsistent() bool {
	return s.TotalAmount.Equal(s.ComponentsTotal())
}

// SortComponents orders components by display order, then insertion.
func (s *FeeStructure) SortComponents() {
	sort.SliceStable(s.Components, func(i, j int) bool {
		a, b := s.Components[i], s.Components[j]
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.ComponentID < b.ComponentID
	})
}

// FindComponent returns the component with the given id.
func (s *FeeStructure) FindComponent(componentID int64) (FeeStructureComponent, bool) {
	for _, c := range s.Components {
		if c.ComponentID == componentID {
			return c, true
		}
	}
	return FeeStructureComponent{}, false
}

// HasFeeType reports whether any component references feeTypeID.
func (s *FeeStructure) HasFeeType(feeTypeID string) bool {
	for _, c := range s.Components {
		if c.FeeTypeID == feeTypeID {
			return true
		}
	}
	return false
}
