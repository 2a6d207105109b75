package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/core/services"
	"github.com/SscSPs/student_ledger/internal/dto"
	"github.com/SscSPs/student_ledger/internal/repositories/memory"
)

// newFeeServices wires both fee services onto one memory store and registers
// the named fee types.
func newFeeServices(t *testing.T, codes ...string) (portssvc.FeeTypeSvcFacade, portssvc.FeeStructureSvcFacade, map[string]string) {
	t.Helper()
	repos := memory.NewRepositoryProvider(memory.NewStore(time.Second))
	feeTypes := services.NewFeeTypeService(repos.FeeTypeRepo)
	structures := services.NewFeeStructureService(repos.FeeStructureRepo, repos.FeeTypeRepo)

	ids := make(map[string]string, len(codes))
	for _, code := range codes {
		ft, err := feeTypes.CreateFeeType(context.Background(), dto.CreateFeeTypeRequest{Code: code, Name: code}, testClerk)
		require.NoError(t, err)
		ids[code] = ft.FeeTypeID
	}
	return feeTypes, structures, ids
}

func component(feeTypeID, value string, mandatory bool) dto.FeeStructureComponentRequest {
	return dto.FeeStructureComponentRequest{
		FeeTypeID:   feeTypeID,
		Amount:      decimal.RequireFromString(value),
		IsMandatory: mandatory,
	}
}

func TestFeeStructureService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	_, svc, ids := newFeeServices(t, "tuition", "transport", "lab", "library")

	structure, err := svc.CreateStructure(ctx, dto.CreateFeeStructureRequest{
		Name:           "Grade 5 Annual",
		Code:           "G5-ANNUAL",
		AcademicYearID: testYear,
		ClassRef:       "grade-5",
		Components:     []dto.FeeStructureComponentRequest{component(ids["tuition"], "12000", true)},
	}, testClerk)
	require.NoError(t, err)
	assert.True(t, structure.TotalAmount.Equal(decimal.RequireFromString("12000")))

	for _, c := range []dto.FeeStructureComponentRequest{
		component(ids["transport"], "2400.50", false),
		component(ids["lab"], "800", true),
		component(ids["library"], "150.25", false),
	} {
		structure, err = svc.AddComponent(ctx, structure.StructureID, c, testClerk)
		require.NoError(t, err)
		assert.True(t, structure.IsTotalConsistent())
	}
	assert.Len(t, structure.Components, 4)
	assert.True(t, structure.TotalAmount.Equal(decimal.RequireFromString("15350.75")))

	var transportID int64
	for _, c := range structure.Components {
		if c.FeeTypeID == ids["transport"] {
			transportID = c.ComponentID
		}
	}
	structure, err = svc.RemoveComponent(ctx, structure.StructureID, transportID, testClerk)
	require.NoError(t, err)
	assert.Len(t, structure.Components, 3)
	assert.True(t, structure.TotalAmount.Equal(decimal.RequireFromString("12950.25")))

	total, err := svc.GetEffectiveTotal(ctx, structure.StructureID)
	require.NoError(t, err)
	assert.True(t, total.Equal(structure.ComponentsTotal()))

	mandatory, err := svc.GetMandatoryTotal(ctx, structure.StructureID)
	require.NoError(t, err)
	assert.True(t, mandatory.Equal(decimal.RequireFromString("12800")))

	stored, err := svc.GetStructure(ctx, structure.StructureID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(total), "cached total committed with the component change")
}

func TestFeeStructureService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	feeTypes, svc, ids := newFeeServices(t, "tuition", "transport")
	require.NoError(t, feeTypes.DeactivateFeeType(ctx, ids["transport"], testBursar))

	valid := dto.CreateFeeStructureRequest{
		Name:           "Grade 1",
		Code:           "G1",
		AcademicYearID: testYear,
		Components:     []dto.FeeStructureComponentRequest{component(ids["tuition"], "100", true)},
	}
	_, err := svc.CreateStructure(ctx, valid, testClerk)
	require.NoError(t, err)

	tests := []struct {
		name      string
		mutate    func(r *dto.CreateFeeStructureRequest)
		wantErr   error
		wantField string
	}{
		{
			name:      "no components",
			mutate:    func(r *dto.CreateFeeStructureRequest) { r.Components = nil },
			wantErr:   apperrors.ErrValidation,
			wantField: "components",
		},
		{
			name: "negative amount",
			mutate: func(r *dto.CreateFeeStructureRequest) {
				r.Components = []dto.FeeStructureComponentRequest{component(ids["tuition"], "-1", true)}
			},
			wantErr: apperrors.ErrInvalidAmount,
		},
		{
			name: "unknown fee type",
			mutate: func(r *dto.CreateFeeStructureRequest) {
				r.Components = []dto.FeeStructureComponentRequest{component("nope", "10", true)}
			},
			wantErr:   apperrors.ErrValidation,
			wantField: "fee_type_id",
		},
		{
			name: "inactive fee type",
			mutate: func(r *dto.CreateFeeStructureRequest) {
				r.Components = []dto.FeeStructureComponentRequest{component(ids["transport"], "10", false)}
			},
			wantErr:   apperrors.ErrValidation,
			wantField: "fee_type_id",
		},
		{
			name: "fee type twice",
			mutate: func(r *dto.CreateFeeStructureRequest) {
				r.Components = []dto.FeeStructureComponentRequest{
					component(ids["tuition"], "10", true),
					component(ids["tuition"], "20", true),
				}
			},
			wantErr:   apperrors.ErrValidation,
			wantField: "components",
		},
		{
			name:      "code taken in the same year",
			mutate:    func(r *dto.CreateFeeStructureRequest) {},
			wantErr:   apperrors.ErrValidation,
			wantField: "code",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := svc.CreateStructure(ctx, req, testClerk)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantField != "" {
				var vErr *apperrors.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantField, vErr.Field)
			}
		})
	}

	t.Run("same code in another year", func(t *testing.T) {
		req := valid
		req.AcademicYearID = "2026"
		_, err := svc.CreateStructure(ctx, req, testClerk)
		assert.NoError(t, err)
	})
}

func TestFeeStructureService_ComponentRules(t *testing.T) {
	ctx := context.Background()
	_, svc, ids := newFeeServices(t, "tuition", "lab")

	structure, err := svc.CreateStructure(ctx, dto.CreateFeeStructureRequest{
		Name:           "Grade 2",
		Code:           "G2",
		AcademicYearID: testYear,
		Components:     []dto.FeeStructureComponentRequest{component(ids["tuition"], "500", true)},
	}, testClerk)
	require.NoError(t, err)
	onlyID := structure.Components[0].ComponentID

	_, err = svc.AddComponent(ctx, structure.StructureID, component(ids["tuition"], "1", true), testClerk)
	assert.ErrorIs(t, err, apperrors.ErrValidation, "a fee type appears once per structure")

	_, err = svc.RemoveComponent(ctx, structure.StructureID, onlyID, testClerk)
	assert.ErrorIs(t, err, apperrors.ErrValidation, "the last component cannot be removed")

	_, err = svc.RemoveComponent(ctx, structure.StructureID, 9999, testClerk)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	newAmount := decimal.RequireFromString("650")
	order := 3
	updated, err := svc.UpdateComponent(ctx, structure.StructureID, onlyID, dto.UpdateFeeStructureComponentRequest{
		Amount:       &newAmount,
		DisplayOrder: &order,
	}, testBursar)
	require.NoError(t, err)
	assert.True(t, updated.TotalAmount.Equal(newAmount))
	assert.Equal(t, 3, updated.Components[0].DisplayOrder)
	assert.Equal(t, testBursar, updated.LastUpdatedBy)

	negative := decimal.NewFromInt(-5)
	_, err = svc.UpdateComponent(ctx, structure.StructureID, onlyID, dto.UpdateFeeStructureComponentRequest{Amount: &negative}, testBursar)
	assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)

	_, err = svc.UpdateComponent(ctx, structure.StructureID, 9999, dto.UpdateFeeStructureComponentRequest{Amount: &newAmount}, testBursar)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.DeleteStructure(ctx, structure.StructureID, testBursar))
	_, err = svc.GetStructure(ctx, structure.StructureID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFeeStructureService_GetEffectiveTotalIgnoresStaleCache(t *testing.T) {
	ctx := context.Background()
	structureRepo := new(MockFeeStructureRepository)
	feeTypeRepo := new(MockFeeTypeRepository)
	svc := services.NewFeeStructureService(structureRepo, feeTypeRepo)

	stale := &domain.FeeStructure{
		StructureID: "fs-1",
		TotalAmount: decimal.RequireFromString("999"),
		Components: []domain.FeeStructureComponent{
			{ComponentID: 1, Amount: decimal.RequireFromString("100"), IsMandatory: true},
			{ComponentID: 2, Amount: decimal.RequireFromString("50")},
		},
	}
	structureRepo.On("FindFeeStructureByID", ctx, "fs-1").Return(stale, nil)

	total, err := svc.GetEffectiveTotal(ctx, "fs-1")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("150")))

	mandatory, err := svc.GetMandatoryTotal(ctx, "fs-1")
	require.NoError(t, err)
	assert.True(t, mandatory.Equal(decimal.RequireFromString("100")))
}

func TestFeeStructureService_SaveRaceMapsToCodeError(t *testing.T) {
	ctx := context.Background()
	structureRepo := new(MockFeeStructureRepository)
	feeTypeRepo := new(MockFeeTypeRepository)
	svc := services.NewFeeStructureService(structureRepo, feeTypeRepo)

	feeTypeRepo.On("FindFeeTypesByIDs", ctx, []string{"ft-1"}).
		Return(map[string]domain.FeeType{"ft-1": {FeeTypeID: "ft-1", IsActive: true}}, nil)
	structureRepo.On("FindFeeStructureByCode", ctx, testYear, "G3").
		Return(nil, apperrors.NewNotFoundError("fee structure", "G3"))
	structureRepo.On("SaveFeeStructure", ctx, mock.MatchedBy(func(s domain.FeeStructure) bool {
		return s.IsTotalConsistent() && s.TotalAmount.Equal(decimal.RequireFromString("40"))
	})).Return(nil, apperrors.ErrDuplicate)

	_, err := svc.CreateStructure(ctx, dto.CreateFeeStructureRequest{
		Name:           "Grade 3",
		Code:           "G3",
		AcademicYearID: testYear,
		Components:     []dto.FeeStructureComponentRequest{component("ft-1", "40", true)},
	}, testClerk)

	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "code", vErr.Field)
	structureRepo.AssertExpectations(t)
}

func TestFeeStructureService_ListRequiresYear(t *testing.T) {
	_, svc, _ := newFeeServices(t)
	_, err := svc.ListStructures(context.Background(), " ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
