// Package memory implements the repository ports in process memory.
// It backs tests and single-process development; state is lost on exit.
package memory

import (
	"sync"
	"time"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/student_ledger/internal/platform/keylock"
)

type structureCodeKey struct {
	AcademicYearID string
	Code           string
}

// Store holds all tables. Short critical sections use mu; ledger units
// additionally hold a per-key slot from locks for their whole duration.
type Store struct {
	mu sync.RWMutex

	feeTypes     map[string]domain.FeeType
	feeTypeCodes map[string]string

	structures      map[string]domain.FeeStructure
	structureCodes  map[structureCodeKey]string
	nextComponentID int64

	transactions  map[int64]domain.LedgerTransaction
	byKey         map[domain.LedgerKey][]int64
	byNumber      map[string]int64
	byIdempotency map[string]int64
	nextTxnID     int64
	sequences     map[string]int64

	locks       *keylock.Locker
	lockTimeout time.Duration
}

// NewStore creates an empty store. lockTimeout bounds the wait for a ledger lock.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		feeTypes:       make(map[string]domain.FeeType),
		feeTypeCodes:   make(map[string]string),
		structures:     make(map[string]domain.FeeStructure),
		structureCodes: make(map[structureCodeKey]string),
		transactions:   make(map[int64]domain.LedgerTransaction),
		byKey:          make(map[domain.LedgerKey][]int64),
		byNumber:       make(map[string]int64),
		byIdempotency:  make(map[string]int64),
		sequences:      make(map[string]int64),
		locks:          keylock.New(),
		lockTimeout:    lockTimeout,
	}
}

// NewRepositoryProvider wires every memory repository onto one store.
func NewRepositoryProvider(store *Store) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		FeeTypeRepo:      newFeeTypeRepository(store),
		FeeStructureRepo: newFeeStructureRepository(store),
		LedgerRepo:       newLedgerRepository(store),
	}
}

func cloneStructure(s domain.FeeStructure) domain.FeeStructure {
	components := make([]domain.FeeStructureComponent, len(s.Components))
	copy(components, s.Components)
	s.Components = components
	return s
}
