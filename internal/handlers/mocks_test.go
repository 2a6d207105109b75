package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/student_ledger/internal/core/ports/services"
	"github.com/SscSPs/student_ledger/internal/dto"
	"github.com/SscSPs/student_ledger/internal/middleware"
)

const testJWTSecret = "test-secret-for-handler-tests"

// --- Mock FeeTypeService ---
type MockFeeTypeService struct {
	mock.Mock
}

func (m *MockFeeTypeService) GetFeeType(ctx context.Context, feeTypeID string) (*domain.FeeType, error) {
	args := m.Called(ctx, feeTypeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeType), args.Error(1)
}
func (m *MockFeeTypeService) ListFeeTypes(ctx context.Context, activeOnly bool) ([]domain.FeeType, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FeeType), args.Error(1)
}
func (m *MockFeeTypeService) CreateFeeType(ctx context.Context, req dto.CreateFeeTypeRequest, creatorUserID string) (*domain.FeeType, error) {
	args := m.Called(ctx, req, creatorUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeType), args.Error(1)
}
func (m *MockFeeTypeService) DeactivateFeeType(ctx context.Context, feeTypeID string, userID string) error {
	return m.Called(ctx, feeTypeID, userID).Error(0)
}
func (m *MockFeeTypeService) ActivateFeeType(ctx context.Context, feeTypeID string, userID string) error {
	return m.Called(ctx, feeTypeID, userID).Error(0)
}

var _ portssvc.FeeTypeSvcFacade = (*MockFeeTypeService)(nil)

// --- Mock FeeStructureService ---
type MockFeeStructureService struct {
	mock.Mock
}

func (m *MockFeeStructureService) GetStructure(ctx context.Context, structureID string) (*domain.FeeStructure, error) {
	args := m.Called(ctx, structureID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}
func (m *MockFeeStructureService) ListStructures(ctx context.Context, academicYearID string) ([]domain.FeeStructure, error) {
	args := m.Called(ctx, academicYearID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FeeStructure), args.Error(1)
}
func (m *MockFeeStructureService) GetEffectiveTotal(ctx context.Context, structureID string) (decimal.Decimal, error) {
	args := m.Called(ctx, structureID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
func (m *MockFeeStructureService) GetMandatoryTotal(ctx context.Context, structureID string) (decimal.Decimal, error) {
	args := m.Called(ctx, structureID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
func (m *MockFeeStructureService) CreateStructure(ctx context.Context, req dto.CreateFeeStructureRequest, creatorUserID string) (*domain.FeeStructure, error) {
	args := m.Called(ctx, req, creatorUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}
func (m *MockFeeStructureService) AddComponent(ctx context.Context, structureID string, req dto.FeeStructureComponentRequest, userID string) (*domain.FeeStructure, error) {
	args := m.Called(ctx, structureID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}
func (m *MockFeeStructureService) UpdateComponent(ctx context.Context, structureID string, componentID int64, req dto.UpdateFeeStructureComponentRequest, userID string) (*domain.FeeStructure, error) {
	args := m.Called(ctx, structureID, componentID, req, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}
func (m *MockFeeStructureService) RemoveComponent(ctx context.Context, structureID string, componentID int64, userID string) (*domain.FeeStructure, error) {
	args := m.Called(ctx, structureID, componentID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}
func (m *MockFeeStructureService) DeleteStructure(ctx context.Context, structureID string, userID string) error {
	return m.Called(ctx, structureID, userID).Error(0)
}

var _ portssvc.FeeStructureSvcFacade = (*MockFeeStructureService)(nil)

// --- Mock LedgerEngine ---
type MockLedgerEngine struct {
	mock.Mock
}

func (m *MockLedgerEngine) Post(ctx context.Context, entry domain.PostEntry) (*domain.LedgerTransaction, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerTransaction), args.Error(1)
}
func (m *MockLedgerEngine) Reverse(ctx context.Context, transactionID int64, reason string, createdBy string) (*domain.LedgerTransaction, error) {
	args := m.Called(ctx, transactionID, reason, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerTransaction), args.Error(1)
}
func (m *MockLedgerEngine) Lock(ctx context.Context, studentID, academicYearID string, asOfTransactionID int64, userID string) (int64, error) {
	args := m.Called(ctx, studentID, academicYearID, asOfTransactionID, userID)
	return args.Get(0).(int64), args.Error(1)
}

var _ portssvc.LedgerEngineSvc = (*MockLedgerEngine)(nil)

// --- Mock BalanceProjector ---
type MockBalanceProjector struct {
	mock.Mock
}

func (m *MockBalanceProjector) CurrentBalance(ctx context.Context, studentID, academicYearID string) (decimal.Decimal, error) {
	args := m.Called(ctx, studentID, academicYearID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
func (m *MockBalanceProjector) StatementFor(ctx context.Context, studentID, academicYearID string, from, to time.Time) ([]domain.LedgerTransaction, error) {
	args := m.Called(ctx, studentID, academicYearID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerTransaction), args.Error(1)
}
func (m *MockBalanceProjector) Reconcile(ctx context.Context, studentID, academicYearID string) (domain.ReconcileResult, error) {
	args := m.Called(ctx, studentID, academicYearID)
	return args.Get(0).(domain.ReconcileResult), args.Error(1)
}
func (m *MockBalanceProjector) Summary(ctx context.Context, studentID, academicYearID string) (domain.LedgerSummary, error) {
	args := m.Called(ctx, studentID, academicYearID)
	return args.Get(0).(domain.LedgerSummary), args.Error(1)
}
func (m *MockBalanceProjector) ListTransactions(ctx context.Context, studentID, academicYearID string, params dto.ListLedgerTransactionsParams) (*dto.ListLedgerTransactionsResponse, error) {
	args := m.Called(ctx, studentID, academicYearID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListLedgerTransactionsResponse), args.Error(1)
}
func (m *MockBalanceProjector) GetTransaction(ctx context.Context, transactionID int64) (*domain.LedgerTransaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerTransaction), args.Error(1)
}
func (m *MockBalanceProjector) GetTransactionByNumber(ctx context.Context, transactionNumber string) (*domain.LedgerTransaction, error) {
	args := m.Called(ctx, transactionNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerTransaction), args.Error(1)
}
func (m *MockBalanceProjector) GetTransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.LedgerTransaction, error) {
	args := m.Called(ctx, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerTransaction), args.Error(1)
}
func (m *MockBalanceProjector) FindByReference(ctx context.Context, referenceType domain.ReferenceType, referenceID string) ([]domain.LedgerTransaction, error) {
	args := m.Called(ctx, referenceType, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerTransaction), args.Error(1)
}

var _ portssvc.BalanceProjectorSvc = (*MockBalanceProjector)(nil)

// --- Helpers ---

// generateTestToken signs a token for userID carrying roles.
func generateTestToken(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	claims := middleware.LedgerClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

// doRequest serves one request through router and returns the recorder.
func doRequest(router *gin.Engine, method, url, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, url, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
