package domain_test

import (
	"testing"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFeeStructure_Totals(t *testing.T) {
	s := domain.FeeStructure{
		Components: []domain.FeeStructureComponent{
			{ComponentID: 1, FeeTypeID: "tuition", Amount: decimal.RequireFromString("1200.50"), IsMandatory: true},
			{ComponentID: 2, FeeTypeID: "transport", Amount: decimal.RequireFromString("300.25")},
			{ComponentID: 3, FeeTypeID: "lab", Amount: decimal.RequireFromString("99.25"), IsMandatory: true},
		},
	}

	assert.False(t, s.IsTotalConsistent(), "zero cache is stale")
	s.RecomputeTotal()
	assert.True(t, s.TotalAmount.Equal(decimal.RequireFromString("1600.00")))
	assert.True(t, s.IsTotalConsistent())
	assert.True(t, s.MandatoryTotal().Equal(decimal.RequireFromString("1299.75")))
	assert.True(t, s.HasFeeType("lab"))
	assert.False(t, s.HasFeeType("library"))
}

func TestFeeStructure_SortComponents(t *testing.T) {
	s := domain.FeeStructure{
		Components: []domain.FeeStructureComponent{
			{ComponentID: 4, DisplayOrder: 2},
			{ComponentID: 2, DisplayOrder: 1},
			{ComponentID: 3, DisplayOrder: 0},
			{ComponentID: 1, DisplayOrder: 1},
		},
	}

	s.SortComponents()

	ids := make([]int64, 0, len(s.Components))
	for _, c := range s.Components {
		ids = append(ids, c.ComponentID)
	}
	assert.Equal(t, []int64{3, 1, 2, 4}, ids, "display order first, insertion order breaks ties")

	c, ok := s.FindComponent(2)
	assert.True(t, ok)
	assert.Equal(t, 1, c.DisplayOrder)
	_, ok = s.FindComponent(99)
	assert.False(t, ok)
}
