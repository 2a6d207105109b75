package services_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
)

// MockFeeTypeRepository is a mock implementation of portsrepo.FeeTypeRepositoryFacade
type MockFeeTypeRepository struct {
	mock.Mock
}

func (m *MockFeeTypeRepository) FindFeeTypeByID(ctx context.Context, feeTypeID string) (*domain.FeeType, error) {
	args := m.Called(ctx, feeTypeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeType), args.Error(1)
}

func (m *MockFeeTypeRepository) FindFeeTypesByIDs(ctx context.Context, feeTypeIDs []string) (map[string]domain.FeeType, error) {
	args := m.Called(ctx, feeTypeIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]domain.FeeType), args.Error(1)
}

func (m *MockFeeTypeRepository) ListFeeTypes(ctx context.Context, activeOnly bool) ([]domain.FeeType, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FeeType), args.Error(1)
}

func (m *MockFeeTypeRepository) SaveFeeType(ctx context.Context, feeType domain.FeeType) error {
	args := m.Called(ctx, feeType)
	return args.Error(0)
}

func (m *MockFeeTypeRepository) SetFeeTypeActive(ctx context.Context, feeTypeID string, active bool, userID string, now time.Time) error {
	args := m.Called(ctx, feeTypeID, active, userID, now)
	return args.Error(0)
}

var _ portsrepo.FeeTypeRepositoryFacade = (*MockFeeTypeRepository)(nil)

// MockFeeStructureRepository is a mock implementation of portsrepo.FeeStructureRepositoryFacade
type MockFeeStructureRepository struct {
	mock.Mock
}

func (m *MockFeeStructureRepository) FindFeeStructureByID(ctx context.Context, structureID string) (*domain.FeeStructure, error) {
	args := m.Called(ctx, structureID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) FindFeeStructureByCode(ctx context.Context, academicYearID, code string) (*domain.FeeStructure, error) {
	args := m.Called(ctx, academicYearID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) ListFeeStructures(ctx context.Context, academicYearID string) ([]domain.FeeStructure, error) {
	args := m.Called(ctx, academicYearID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) SaveFeeStructure(ctx context.Context, structure domain.FeeStructure) (*domain.FeeStructure, error) {
	args := m.Called(ctx, structure)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) AddComponent(ctx context.Context, structureID string, component domain.FeeStructureComponent, userID string, now time.Time) (*domain.FeeStructure, error) {
	args := m.Called(ctx, structureID, component, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) UpdateComponent(ctx context.Context, structureID string, component domain.FeeStructureComponent, userID string, now time.Time) (*domain.FeeStructure, error) {
	args := m.Called(ctx, structureID, component, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) RemoveComponent(ctx context.Context, structureID string, componentID int64, userID string, now time.Time) (*domain.FeeStructure, error) {
	args := m.Called(ctx, structureID, componentID, userID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) DeleteFeeStructure(ctx context.Context, structureID string) error {
	args := m.Called(ctx, structureID)
	return args.Error(0)
}

var _ portsrepo.FeeStructureRepositoryFacade = (*MockFeeStructureRepository)(nil)

// MockLedgerReader is a mock implementation of portsrepo.LedgerReader
type MockLedgerReader struct {
	mock.Mock
}

func (m *MockLedgerReader) FindTransactionByID(ctx context.Context, id int64) (*domain.LedgerTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerTransaction), args.Error(1)
}

func (m *MockLedgerReader) FindTransactionByNumber(ctx context.Context, transactionNumber string) (*domain.LedgerTransaction, error) {
	args := m.Called(ctx, transactionNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerTransaction), args.Error(1)
}

func (m *MockLedgerReader) FindTransactionByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.LedgerTransaction, error) {
	args := m.Called(ctx, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerTransaction), args.Error(1)
}

func (m *MockLedgerReader) FindLatestTransaction(ctx context.Context, key domain.LedgerKey) (*domain.LedgerTransaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerTransaction), args.Error(1)
}

func (m *MockLedgerReader) ListTransactionsByKey(ctx context.Context, key domain.LedgerKey) ([]domain.LedgerTransaction, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerTransaction), args.Error(1)
}

func (m *MockLedgerReader) ListTransactionsByDateRange(ctx context.Context, key domain.LedgerKey, from, to time.Time) ([]domain.LedgerTransaction, error) {
	args := m.Called(ctx, key, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerTransaction), args.Error(1)
}

func (m *MockLedgerReader) ListTransactionsPage(ctx context.Context, key domain.LedgerKey, afterID int64, limit int) ([]domain.LedgerTransaction, error) {
	args := m.Called(ctx, key, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerTransaction), args.Error(1)
}

func (m *MockLedgerReader) FindTransactionsByReference(ctx context.Context, referenceType domain.ReferenceType, referenceID string) ([]domain.LedgerTransaction, error) {
	args := m.Called(ctx, referenceType, referenceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerTransaction), args.Error(1)
}

var _ portsrepo.LedgerReader = (*MockLedgerReader)(nil)

// channelPublisher forwards every event to a buffered channel.
type channelPublisher struct {
	events chan domain.LedgerEvent
	err    error
}

func newChannelPublisher(err error) *channelPublisher {
	return &channelPublisher{events: make(chan domain.LedgerEvent, 64), err: err}
}

func (p *channelPublisher) Publish(_ context.Context, event domain.LedgerEvent) error {
	p.events <- event
	return p.err
}

func (p *channelPublisher) next(timeout time.Duration) (domain.LedgerEvent, bool) {
	select {
	case e := <-p.events:
		return e, true
	case <-time.After(timeout):
		return domain.LedgerEvent{}, false
	}
}
