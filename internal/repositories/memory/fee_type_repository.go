package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
)

type FeeTypeRepository struct {
	store *Store
}

func newFeeTypeRepository(store *Store) *FeeTypeRepository {
	return &FeeTypeRepository{store: store}
}

var _ portsrepo.FeeTypeRepositoryFacade = (*FeeTypeRepository)(nil)

func (r *FeeTypeRepository) SaveFeeType(_ context.Context, feeType domain.FeeType) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.feeTypes[feeType.FeeTypeID]; exists {
		return fmt.Errorf("%w: fee type id %s", apperrors.ErrDuplicate, feeType.FeeTypeID)
	}
	if _, exists := r.store.feeTypeCodes[feeType.Code]; exists {
		return fmt.Errorf("%w: fee type code %s", apperrors.ErrDuplicate, feeType.Code)
	}
	r.store.feeTypes[feeType.FeeTypeID] = feeType
	r.store.feeTypeCodes[feeType.Code] = feeType.FeeTypeID
	return nil
}

func (r *FeeTypeRepository) SetFeeTypeActive(_ context.Context, feeTypeID string, active bool, userID string, now time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	ft, ok := r.store.feeTypes[feeTypeID]
	if !ok {
		return apperrors.NewNotFoundError("fee type", feeTypeID)
	}
	ft.IsActive = active
	ft.Touch(userID, now)
	r.store.feeTypes[feeTypeID] = ft
	return nil
}

func (r *FeeTypeRepository) FindFeeTypeByID(_ context.Context, feeTypeID string) (*domain.FeeType, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ft, ok := r.store.feeTypes[feeTypeID]
	if !ok {
		return nil, apperrors.NewNotFoundError("fee type", feeTypeID)
	}
	return &ft, nil
}

func (r *FeeTypeRepository) FindFeeTypesByIDs(_ context.Context, feeTypeIDs []string) (map[string]domain.FeeType, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	found := make(map[string]domain.FeeType, len(feeTypeIDs))
	for _, id := range feeTypeIDs {
		if ft, ok := r.store.feeTypes[id]; ok {
			found[id] = ft
		}
	}
	return found, nil
}

func (r *FeeTypeRepository) ListFeeTypes(_ context.Context, activeOnly bool) ([]domain.FeeType, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	list := make([]domain.FeeType, 0, len(r.store.feeTypes))
	for _, ft := range r.store.feeTypes {
		if activeOnly && !ft.IsActive {
			continue
		}
		list = append(list, ft)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].FeeTypeID < list[j].FeeTypeID
	})
	return list, nil
}
