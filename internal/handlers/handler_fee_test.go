package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/SscSPs/student_ledger/internal/dto"
	"github.com/SscSPs/student_ledger/internal/handlers"
	"github.com/SscSPs/student_ledger/internal/middleware"
)

// --- Test Suite Setup ---
type FeeHandlerTestSuite struct {
	suite.Suite
	router           *gin.Engine
	mockFeeTypes     *MockFeeTypeService
	mockFeeStructure *MockFeeStructureService
	clerkToken       string
	bursarToken      string
}

func (suite *FeeHandlerTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	handlers.RegisterValidators()
}

func (suite *FeeHandlerTestSuite) SetupTest() {
	suite.router = gin.New()
	suite.router.Use(middleware.AuthMiddleware(testJWTSecret))
	suite.mockFeeTypes = new(MockFeeTypeService)
	suite.mockFeeStructure = new(MockFeeStructureService)
	v1 := suite.router.Group("/api/v1")
	handlers.RegisterFeeTypeRoutes(v1, suite.mockFeeTypes)
	handlers.RegisterFeeStructureRoutes(v1, suite.mockFeeStructure)

	suite.clerkToken = generateTestToken(suite.T(), "clerk-1")
	suite.bursarToken = generateTestToken(suite.T(), "bursar-1", middleware.RoleBursar)
}

func (suite *FeeHandlerTestSuite) TearDownTest() {
	suite.mockFeeTypes.AssertExpectations(suite.T())
	suite.mockFeeStructure.AssertExpectations(suite.T())
}

func tuitionStructure() *domain.FeeStructure {
	return &domain.FeeStructure{
		StructureID:    "fs-1",
		Name:           "Senior One",
		Code:           "S1-2025",
		AcademicYearID: "2025",
		TotalAmount:    decimal.RequireFromString("999"), // stale cache, never returned
		Components: []domain.FeeStructureComponent{
			{ComponentID: 1, FeeTypeID: "ft-tuition", Amount: decimal.RequireFromString("12000.50"), IsMandatory: true},
			{ComponentID: 2, FeeTypeID: "ft-transport", Amount: decimal.RequireFromString("2400.25"), DisplayOrder: 1},
		},
	}
}

// --- Fee types ---

func (suite *FeeHandlerTestSuite) TestCreateFeeType() {
	body := `{"code":"Tuition","name":"Tuition","defaultAmount":"12000.00"}`

	w := doRequest(suite.router, http.MethodPost, "/api/v1/fee-types", suite.clerkToken, body)
	suite.Equal(http.StatusForbidden, w.Code)

	w = doRequest(suite.router, http.MethodPost, "/api/v1/fee-types", suite.bursarToken, `{"code":"lab","name":"Lab","defaultAmount":"-1"}`)
	suite.Equal(http.StatusBadRequest, w.Code)

	created := &domain.FeeType{FeeTypeID: "ft-tuition", Code: "tuition", Name: "Tuition", DefaultAmount: decimal.RequireFromString("12000"), IsActive: true}
	suite.mockFeeTypes.On("CreateFeeType", mock.Anything, mock.MatchedBy(func(req dto.CreateFeeTypeRequest) bool {
		return req.Code == "Tuition" && req.DefaultAmount.Equal(decimal.NewFromInt(12000))
	}), "bursar-1").Return(created, nil).Once()
	w = doRequest(suite.router, http.MethodPost, "/api/v1/fee-types", suite.bursarToken, body)
	suite.Equal(http.StatusCreated, w.Code)
	suite.Equal("tuition", decodeBody(suite.T(), w)["code"])

	suite.mockFeeTypes.On("CreateFeeType", mock.Anything, mock.Anything, "bursar-1").
		Return(nil, apperrors.NewAppError(http.StatusConflict, "fee type code already registered", apperrors.ErrDuplicate)).Once()
	w = doRequest(suite.router, http.MethodPost, "/api/v1/fee-types", suite.bursarToken, body)
	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *FeeHandlerTestSuite) TestListAndGetFeeTypes() {
	suite.mockFeeTypes.On("ListFeeTypes", mock.Anything, true).Return([]domain.FeeType{
		{FeeTypeID: "ft-tuition", Code: "tuition", IsActive: true},
	}, nil).Once()
	w := doRequest(suite.router, http.MethodGet, "/api/v1/fee-types?activeOnly=true", suite.clerkToken, "")
	suite.Equal(http.StatusOK, w.Code)
	suite.Len(decodeBody(suite.T(), w)["feeTypes"], 1)

	suite.mockFeeTypes.On("GetFeeType", mock.Anything, "ft-missing").Return(nil, apperrors.NewNotFoundError("fee type", "ft-missing")).Once()
	w = doRequest(suite.router, http.MethodGet, "/api/v1/fee-types/ft-missing", suite.clerkToken, "")
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *FeeHandlerTestSuite) TestToggleFeeType() {
	suite.mockFeeTypes.On("DeactivateFeeType", mock.Anything, "ft-transport", "bursar-1").Return(nil).Once()
	w := doRequest(suite.router, http.MethodPost, "/api/v1/fee-types/ft-transport/deactivate", suite.bursarToken, "")
	suite.Equal(http.StatusNoContent, w.Code)

	suite.mockFeeTypes.On("ActivateFeeType", mock.Anything, "ft-transport", "bursar-1").Return(nil).Once()
	w = doRequest(suite.router, http.MethodPost, "/api/v1/fee-types/ft-transport/activate", suite.bursarToken, "")
	suite.Equal(http.StatusNoContent, w.Code)

	w = doRequest(suite.router, http.MethodPost, "/api/v1/fee-types/ft-transport/deactivate", suite.clerkToken, "")
	suite.Equal(http.StatusForbidden, w.Code)
}

// --- Fee structures ---

func (suite *FeeHandlerTestSuite) TestCreateStructure() {
	body := `{"name":"Senior One","code":"S1-2025","academicYearID":"2025",
		"components":[{"feeTypeID":"ft-tuition","amount":"12000.50","isMandatory":true},{"feeTypeID":"ft-transport","amount":"2400.25","displayOrder":1}]}`

	w := doRequest(suite.router, http.MethodPost, "/api/v1/fee-structures", suite.bursarToken,
		`{"name":"Empty","code":"E","academicYearID":"2025","components":[]}`)
	suite.Equal(http.StatusBadRequest, w.Code)

	suite.mockFeeStructure.On("CreateStructure", mock.Anything, mock.MatchedBy(func(req dto.CreateFeeStructureRequest) bool {
		return len(req.Components) == 2 && req.Components[0].IsMandatory
	}), "bursar-1").Return(tuitionStructure(), nil).Once()
	w = doRequest(suite.router, http.MethodPost, "/api/v1/fee-structures", suite.bursarToken, body)

	suite.Equal(http.StatusCreated, w.Code)
	resp := decodeBody(suite.T(), w)
	suite.Equal("14400.75", resp["totalAmount"])
	suite.Equal("12000.5", resp["mandatoryTotal"])
}

func (suite *FeeHandlerTestSuite) TestEffectiveTotal() {
	suite.mockFeeStructure.On("GetEffectiveTotal", mock.Anything, "fs-1").Return(decimal.RequireFromString("14400.75"), nil).Once()
	suite.mockFeeStructure.On("GetMandatoryTotal", mock.Anything, "fs-1").Return(decimal.RequireFromString("12000.50"), nil).Once()

	w := doRequest(suite.router, http.MethodGet, "/api/v1/fee-structures/fs-1/total", suite.clerkToken, "")

	suite.Equal(http.StatusOK, w.Code)
	resp := decodeBody(suite.T(), w)
	suite.Equal("14400.75", resp["total"])
	suite.Equal("12000.5", resp["mandatoryTotal"])
}

func (suite *FeeHandlerTestSuite) TestComponents() {
	structure := tuitionStructure()

	suite.Run("add duplicate fee type", func() {
		suite.mockFeeStructure.On("AddComponent", mock.Anything, "fs-1", mock.Anything, "bursar-1").
			Return(nil, apperrors.NewAppError(http.StatusConflict, "fee type already in structure", apperrors.ErrDuplicate)).Once()
		w := doRequest(suite.router, http.MethodPost, "/api/v1/fee-structures/fs-1/components", suite.bursarToken,
			`{"feeTypeID":"ft-tuition","amount":"100"}`)
		suite.Equal(http.StatusConflict, w.Code)
	})
	suite.Run("update amount", func() {
		suite.mockFeeStructure.On("UpdateComponent", mock.Anything, "fs-1", int64(2), mock.MatchedBy(func(req dto.UpdateFeeStructureComponentRequest) bool {
			return req.Amount != nil && req.Amount.Equal(decimal.NewFromInt(2000)) && req.IsMandatory == nil
		}), "bursar-1").Return(structure, nil).Once()
		w := doRequest(suite.router, http.MethodPatch, "/api/v1/fee-structures/fs-1/components/2", suite.bursarToken, `{"amount":"2000"}`)
		suite.Equal(http.StatusOK, w.Code)
	})
	suite.Run("bad component id", func() {
		w := doRequest(suite.router, http.MethodDelete, "/api/v1/fee-structures/fs-1/components/x", suite.bursarToken, "")
		suite.Equal(http.StatusBadRequest, w.Code)
	})
	suite.Run("remove", func() {
		suite.mockFeeStructure.On("RemoveComponent", mock.Anything, "fs-1", int64(2), "bursar-1").Return(structure, nil).Once()
		w := doRequest(suite.router, http.MethodDelete, "/api/v1/fee-structures/fs-1/components/2", suite.bursarToken, "")
		suite.Equal(http.StatusOK, w.Code)
	})
	suite.Run("clerk cannot edit", func() {
		w := doRequest(suite.router, http.MethodDelete, "/api/v1/fee-structures/fs-1/components/2", suite.clerkToken, "")
		suite.Equal(http.StatusForbidden, w.Code)
	})
}

func (suite *FeeHandlerTestSuite) TestListStructures() {
	w := doRequest(suite.router, http.MethodGet, "/api/v1/fee-structures", suite.clerkToken, "")
	suite.Equal(http.StatusBadRequest, w.Code)

	suite.mockFeeStructure.On("ListStructures", mock.Anything, "2025").Return([]domain.FeeStructure{*tuitionStructure()}, nil).Once()
	w = doRequest(suite.router, http.MethodGet, "/api/v1/fee-structures?academicYearID=2025", suite.clerkToken, "")
	suite.Equal(http.StatusOK, w.Code)
	suite.Len(decodeBody(suite.T(), w)["feeStructures"], 1)
}

func (suite *FeeHandlerTestSuite) TestDeleteStructure() {
	suite.mockFeeStructure.On("DeleteStructure", mock.Anything, "fs-1", "bursar-1").Return(nil).Once()
	w := doRequest(suite.router, http.MethodDelete, "/api/v1/fee-structures/fs-1", suite.bursarToken, "")
	suite.Equal(http.StatusNoContent, w.Code)
}

// --- Run Test Suite ---
func TestFeeHandler(t *testing.T) {
	suite.Run(t, new(FeeHandlerTestSuite))
}
