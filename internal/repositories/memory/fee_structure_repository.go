package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
)

type FeeStructureRepository struct {
	store *Store
}

func newFeeStructureRepository(store *Store) *FeeStructureRepository {
	return &FeeStructureRepository{store: store}
}

var _ portsrepo.FeeStructureRepositoryFacade = (*FeeStructureRepository)(nil)

func (r *FeeStructureRepository) SaveFeeStructure(_ context.Context, structure domain.FeeStructure) (*domain.FeeStructure, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	codeKey := structureCodeKey{AcademicYearID: structure.AcademicYearID, Code: structure.Code}
	if _, exists := r.store.structureCodes[codeKey]; exists {
		return nil, fmt.Errorf("%w: fee structure code %s in academic year %s", apperrors.ErrDuplicate, structure.Code, structure.AcademicYearID)
	}
	if _, exists := r.store.structures[structure.StructureID]; exists {
		return nil, fmt.Errorf("%w: fee structure id %s", apperrors.ErrDuplicate, structure.StructureID)
	}

	saved := cloneStructure(structure)
	seen := make(map[string]bool, len(saved.Components))
	for i := range saved.Components {
		c := &saved.Components[i]
		if seen[c.FeeTypeID] {
			return nil, fmt.Errorf("%w: fee type %s appears twice in structure", apperrors.ErrDuplicate, c.FeeTypeID)
		}
		seen[c.FeeTypeID] = true
		if _, ok := r.store.feeTypes[c.FeeTypeID]; !ok {
			return nil, apperrors.NewNotFoundError("fee type", c.FeeTypeID)
		}
	}
	for i := range saved.Components {
		r.store.nextComponentID++
		saved.Components[i].ComponentID = r.store.nextComponentID
		saved.Components[i].StructureID = saved.StructureID
	}
	saved.RecomputeTotal()
	saved.SortComponents()

	r.store.structures[saved.StructureID] = saved
	r.store.structureCodes[codeKey] = saved.StructureID
	out := cloneStructure(saved)
	return &out, nil
}

func (r *FeeStructureRepository) AddComponent(_ context.Context, structureID string, component domain.FeeStructureComponent, userID string, now time.Time) (*domain.FeeStructure, error) {
	return r.mutate(structureID, userID, now, func(s *domain.FeeStructure) error {
		if s.HasFeeType(component.FeeTypeID) {
			return fmt.Errorf("%w: fee type %s already in structure %s", apperrors.ErrDuplicate, component.FeeTypeID, structureID)
		}
		if _, ok := r.store.feeTypes[component.FeeTypeID]; !ok {
			return apperrors.NewNotFoundError("fee type", component.FeeTypeID)
		}
		r.store.nextComponentID++
		component.ComponentID = r.store.nextComponentID
		component.StructureID = structureID
		s.Components = append(s.Components, component)
		return nil
	})
}

func (r *FeeStructureRepository) UpdateComponent(_ context.Context, structureID string, component domain.FeeStructureComponent, userID string, now time.Time) (*domain.FeeStructure, error) {
	return r.mutate(structureID, userID, now, func(s *domain.FeeStructure) error {
		for i := range s.Components {
			if s.Components[i].ComponentID == component.ComponentID {
				s.Components[i].Amount = component.Amount
				s.Components[i].IsMandatory = component.IsMandatory
				s.Components[i].DisplayOrder = component.DisplayOrder
				return nil
			}
		}
		return apperrors.NewNotFoundError("fee structure component", strconv.FormatInt(component.ComponentID, 10))
	})
}

func (r *FeeStructureRepository) RemoveComponent(_ context.Context, structureID string, componentID int64, userID string, now time.Time) (*domain.FeeStructure, error) {
	return r.mutate(structureID, userID, now, func(s *domain.FeeStructure) error {
		for i := range s.Components {
			if s.Components[i].ComponentID != componentID {
				continue
			}
			if len(s.Components) == 1 {
				return apperrors.NewValidationError("components", "a fee structure must keep at least one component")
			}
			s.Components = append(s.Components[:i], s.Components[i+1:]...)
			return nil
		}
		return apperrors.NewNotFoundError("fee structure component", strconv.FormatInt(componentID, 10))
	})
}

// mutate applies change to a copy and stores it with a recomputed total only if change succeeds.
func (r *FeeStructureRepository) mutate(structureID, userID string, now time.Time, change func(s *domain.FeeStructure) error) (*domain.FeeStructure, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.structures[structureID]
	if !ok {
		return nil, apperrors.NewNotFoundError("fee structure", structureID)
	}
	working := cloneStructure(current)
	if err := change(&working); err != nil {
		return nil, err
	}
	working.RecomputeTotal()
	working.SortComponents()
	working.Touch(userID, now)

	r.store.structures[structureID] = working
	out := cloneStructure(working)
	return &out, nil
}

func (r *FeeStructureRepository) DeleteFeeStructure(_ context.Context, structureID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s, ok := r.store.structures[structureID]
	if !ok {
		return apperrors.NewNotFoundError("fee structure", structureID)
	}
	delete(r.store.structures, structureID)
	delete(r.store.structureCodes, structureCodeKey{AcademicYearID: s.AcademicYearID, Code: s.Code})
	return nil
}

func (r *FeeStructureRepository) FindFeeStructureByID(_ context.Context, structureID string) (*domain.FeeStructure, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.store.structures[structureID]
	if !ok {
		return nil, apperrors.NewNotFoundError("fee structure", structureID)
	}
	out := cloneStructure(s)
	return &out, nil
}

func (r *FeeStructureRepository) FindFeeStructureByCode(_ context.Context, academicYearID, code string) (*domain.FeeStructure, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.structureCodes[structureCodeKey{AcademicYearID: academicYearID, Code: code}]
	if !ok {
		return nil, apperrors.NewNotFoundError("fee structure", academicYearID+"/"+code)
	}
	out := cloneStructure(r.store.structures[id])
	return &out, nil
}

func (r *FeeStructureRepository) ListFeeStructures(_ context.Context, academicYearID string) ([]domain.FeeStructure, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	list := make([]domain.FeeStructure, 0)
	for _, s := range r.store.structures {
		if s.AcademicYearID == academicYearID {
			list = append(list, cloneStructure(s))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
	return list, nil
}
