package repositories_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/student_ledger/internal/core/ports/repositories"
	"github.com/SscSPs/student_ledger/internal/repositories"
	"github.com/SscSPs/student_ledger/pkg/database"
)

// RepositorySuite runs the same expectations against every embedded backend.
type RepositorySuite struct {
	suite.Suite
	driver    string
	repos     portsrepo.RepositoryProvider
	closeRepo func()
	ctx       context.Context
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	opts := repositories.StorageOptions{Driver: s.driver, LockTimeout: 50 * time.Millisecond, Migrate: true}
	if s.driver == database.DriverSQLite {
		opts.DSN = filepath.Join(s.T().TempDir(), "ledger.db")
	}
	repos, closeRepo, err := repositories.Open(s.ctx, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	s.repos, s.closeRepo = repos, closeRepo
}

func (s *RepositorySuite) TearDownTest() {
	s.closeRepo()
}

var (
	testKey   = domain.LedgerKey{StudentID: "S-1001", AcademicYearID: "2025"}
	createdAt = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
)

func ledgerTxn(key domain.LedgerKey, seq int, debit, credit, balance string, day int) domain.LedgerTransaction {
	entryType := domain.EntryInvoice
	if credit != "0" {
		entryType = domain.EntryPayment
	}
	return domain.LedgerTransaction{
		TransactionNumber: fmt.Sprintf("TXN-%s-%06d", key.AcademicYearID, seq),
		TransactionDate:   time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
		StudentID:         key.StudentID,
		AcademicYearID:    key.AcademicYearID,
		EntryType:         entryType,
		DebitAmount:       decimal.RequireFromString(debit),
		CreditAmount:      decimal.RequireFromString(credit),
		Balance:           decimal.RequireFromString(balance),
		Description:       "term fees",
		CreatedBy:         "clerk",
		CreatedAt:         createdAt,
	}
}

// insert commits txns to key in one unit and returns them with ids.
func (s *RepositorySuite) insert(key domain.LedgerKey, txns ...domain.LedgerTransaction) []domain.LedgerTransaction {
	var out []domain.LedgerTransaction
	err := s.repos.LedgerRepo.WithLedgerLock(s.ctx, key, func(uow portsrepo.LedgerUnitOfWork) error {
		for _, txn := range txns {
			saved, err := uow.InsertTransaction(s.ctx, txn)
			if err != nil {
				return err
			}
			out = append(out, *saved)
		}
		return nil
	})
	s.Require().NoError(err)
	return out
}

// --- Ledger ---

func (s *RepositorySuite) TestSequencesArePerYear() {
	repo := s.repos.LedgerRepo
	for want := int64(1); want <= 3; want++ {
		got, err := repo.NextTransactionSequence(s.ctx, "2025")
		s.Require().NoError(err)
		s.Equal(want, got)
	}
	got, err := repo.NextTransactionSequence(s.ctx, "2026")
	s.Require().NoError(err)
	s.Equal(int64(1), got)
}

func (s *RepositorySuite) TestInsertAndRead() {
	refType, refID, idem := domain.RefInvoice, "INV-1", "post-INV-1"
	first := ledgerTxn(testKey, 1, "5000", "0", "5000", 1)
	first.ReferenceType, first.ReferenceID, first.IdempotencyKey = &refType, &refID, &idem
	saved := s.insert(testKey,
		first,
		ledgerTxn(testKey, 2, "0", "1500.50", "3499.50", 10),
		ledgerTxn(testKey, 3, "250.25", "0", "3749.75", 20),
	)
	s.Require().Len(saved, 3)
	s.Less(saved[0].ID, saved[1].ID)
	s.Less(saved[1].ID, saved[2].ID)

	repo := s.repos.LedgerRepo
	byID, err := repo.FindTransactionByID(s.ctx, saved[1].ID)
	s.Require().NoError(err)
	s.Equal("TXN-2025-000002", byID.TransactionNumber)
	s.True(byID.CreditAmount.Equal(decimal.RequireFromString("1500.50")))
	s.True(byID.Balance.Equal(decimal.RequireFromString("3499.50")))
	s.True(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC).Equal(byID.TransactionDate))
	s.True(createdAt.Equal(byID.CreatedAt))

	byNumber, err := repo.FindTransactionByNumber(s.ctx, "TXN-2025-000003")
	s.Require().NoError(err)
	s.Equal(saved[2].ID, byNumber.ID)

	byKey, err := repo.FindTransactionByIdempotencyKey(s.ctx, "post-INV-1")
	s.Require().NoError(err)
	s.Equal(saved[0].ID, byKey.ID)
	s.Require().NotNil(byKey.ReferenceType)
	s.Equal(domain.RefInvoice, *byKey.ReferenceType)

	latest, err := repo.FindLatestTransaction(s.ctx, testKey)
	s.Require().NoError(err)
	s.Equal(saved[2].ID, latest.ID)

	all, err := repo.ListTransactionsByKey(s.ctx, testKey)
	s.Require().NoError(err)
	s.Len(all, 3)

	ranged, err := repo.ListTransactionsByDateRange(s.ctx, testKey,
		time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().Len(ranged, 2)
	s.Equal(saved[1].ID, ranged[0].ID)

	page, err := repo.ListTransactionsPage(s.ctx, testKey, saved[0].ID, 1)
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(saved[1].ID, page[0].ID)

	refs, err := repo.FindTransactionsByReference(s.ctx, domain.RefInvoice, "INV-1")
	s.Require().NoError(err)
	s.Len(refs, 1)
}

func (s *RepositorySuite) TestNotFound() {
	repo := s.repos.LedgerRepo
	_, err := repo.FindTransactionByID(s.ctx, 404)
	s.ErrorIs(err, apperrors.ErrNotFound)
	_, err = repo.FindTransactionByNumber(s.ctx, "TXN-2025-999999")
	s.ErrorIs(err, apperrors.ErrNotFound)
	_, err = repo.FindTransactionByIdempotencyKey(s.ctx, "never-posted")
	s.ErrorIs(err, apperrors.ErrNotFound)
	_, err = repo.FindLatestTransaction(s.ctx, testKey)
	s.ErrorIs(err, apperrors.ErrNotFound)

	all, err := repo.ListTransactionsByKey(s.ctx, testKey)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *RepositorySuite) TestFailedUnitWritesNothing() {
	boom := errors.New("balance check failed")
	err := s.repos.LedgerRepo.WithLedgerLock(s.ctx, testKey, func(uow portsrepo.LedgerUnitOfWork) error {
		if _, err := uow.InsertTransaction(s.ctx, ledgerTxn(testKey, 1, "100", "0", "100", 1)); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	all, err := s.repos.LedgerRepo.ListTransactionsByKey(s.ctx, testKey)
	s.Require().NoError(err)
	s.Empty(all)
	_, err = s.repos.LedgerRepo.FindTransactionByNumber(s.ctx, "TXN-2025-000001")
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *RepositorySuite) TestUnitSeesItsOwnWrites() {
	err := s.repos.LedgerRepo.WithLedgerLock(s.ctx, testKey, func(uow portsrepo.LedgerUnitOfWork) error {
		latest, err := uow.LatestTransaction(s.ctx)
		s.Require().NoError(err)
		s.Nil(latest)

		saved, err := uow.InsertTransaction(s.ctx, ledgerTxn(testKey, 1, "100", "0", "100", 1))
		s.Require().NoError(err)

		latest, err = uow.LatestTransaction(s.ctx)
		s.Require().NoError(err)
		s.Require().NotNil(latest)
		s.Equal(saved.ID, latest.ID)
		return nil
	})
	s.Require().NoError(err)
}

func (s *RepositorySuite) TestInsertOutsideLockedLedger() {
	other := domain.LedgerKey{StudentID: "S-2002", AcademicYearID: "2025"}
	err := s.repos.LedgerRepo.WithLedgerLock(s.ctx, testKey, func(uow portsrepo.LedgerUnitOfWork) error {
		_, err := uow.InsertTransaction(s.ctx, ledgerTxn(other, 1, "100", "0", "100", 1))
		return err
	})
	s.ErrorIs(err, apperrors.ErrStorage)
}

func (s *RepositorySuite) TestEntryNeedsExactlyOneSide() {
	for name, txn := range map[string]domain.LedgerTransaction{
		"both sides": ledgerTxn(testKey, 1, "100", "100", "0", 1),
		"no side":    ledgerTxn(testKey, 2, "0", "0", "0", 1),
	} {
		err := s.repos.LedgerRepo.WithLedgerLock(s.ctx, testKey, func(uow portsrepo.LedgerUnitOfWork) error {
			_, err := uow.InsertTransaction(s.ctx, txn)
			return err
		})
		s.ErrorIs(err, apperrors.ErrValidation, name)
	}

	all, err := s.repos.LedgerRepo.ListTransactionsByKey(s.ctx, testKey)
	s.Require().NoError(err)
	s.Empty(all)
}

func (s *RepositorySuite) TestDuplicateIdempotencyKey() {
	idem := "pay-once"
	first := ledgerTxn(testKey, 1, "0", "100", "-100", 1)
	first.IdempotencyKey = &idem
	s.insert(testKey, first)

	second := ledgerTxn(testKey, 2, "0", "100", "-200", 1)
	second.IdempotencyKey = &idem
	err := s.repos.LedgerRepo.WithLedgerLock(s.ctx, testKey, func(uow portsrepo.LedgerUnitOfWork) error {
		_, err := uow.InsertTransaction(s.ctx, second)
		return err
	})
	s.ErrorIs(err, apperrors.ErrDuplicate)
}

func (s *RepositorySuite) TestMarkReversedOnce() {
	saved := s.insert(testKey,
		ledgerTxn(testKey, 1, "5000", "0", "5000", 1),
		ledgerTxn(testKey, 2, "0", "5000", "0", 2),
	)
	original, reversal := saved[0].ID, saved[1].ID

	err := s.repos.LedgerRepo.WithLedgerLock(s.ctx, testKey, func(uow portsrepo.LedgerUnitOfWork) error {
		return uow.MarkReversed(s.ctx, original, reversal)
	})
	s.Require().NoError(err)

	got, err := s.repos.LedgerRepo.FindTransactionByID(s.ctx, original)
	s.Require().NoError(err)
	s.True(got.IsReversed)
	s.Require().NotNil(got.ReversalTransactionID)
	s.Equal(reversal, *got.ReversalTransactionID)

	err = s.repos.LedgerRepo.WithLedgerLock(s.ctx, testKey, func(uow portsrepo.LedgerUnitOfWork) error {
		return uow.MarkReversed(s.ctx, original, reversal)
	})
	s.ErrorIs(err, apperrors.ErrAlreadyReversed)
}

func (s *RepositorySuite) TestLockThrough() {
	other := domain.LedgerKey{StudentID: "S-2002", AcademicYearID: "2025"}
	saved := s.insert(testKey,
		ledgerTxn(testKey, 1, "100", "0", "100", 1),
		ledgerTxn(testKey, 2, "100", "0", "200", 2),
		ledgerTxn(testKey, 3, "100", "0", "300", 3),
	)
	foreign := s.insert(other, ledgerTxn(other, 4, "100", "0", "100", 1))

	lock := func(asOf int64) int64 {
		var n int64
		err := s.repos.LedgerRepo.WithLedgerLock(s.ctx, testKey, func(uow portsrepo.LedgerUnitOfWork) error {
			var err error
			n, err = uow.LockThrough(s.ctx, asOf)
			return err
		})
		s.Require().NoError(err)
		return n
	}
	s.Equal(int64(2), lock(saved[1].ID))
	s.Equal(int64(0), lock(saved[1].ID))
	s.Equal(int64(1), lock(foreign[0].ID))

	all, err := s.repos.LedgerRepo.ListTransactionsByKey(s.ctx, testKey)
	s.Require().NoError(err)
	for _, txn := range all {
		s.True(txn.IsLocked, "entry %d", txn.ID)
	}
	got, err := s.repos.LedgerRepo.FindTransactionByID(s.ctx, foreign[0].ID)
	s.Require().NoError(err)
	s.False(got.IsLocked)
}

func (s *RepositorySuite) TestLockWaitIsBounded() {
	held := make(chan struct{})
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = s.repos.LedgerRepo.WithLedgerLock(s.ctx, testKey, func(portsrepo.LedgerUnitOfWork) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	err := s.repos.LedgerRepo.WithLedgerLock(s.ctx, testKey, func(portsrepo.LedgerUnitOfWork) error {
		s.Fail("unit ran while the ledger was held")
		return nil
	})
	close(done)
	<-finished

	s.ErrorIs(err, apperrors.ErrConcurrencyTimeout)
	var timeoutErr *apperrors.ConcurrencyTimeoutError
	s.Require().ErrorAs(err, &timeoutErr)
	s.Equal(testKey.String(), timeoutErr.Key)
}

func (s *RepositorySuite) TestSlashInIDsDoesNotShareLock() {
	if s.driver == database.DriverSQLite {
		s.T().Skip("sqlite units share its single write connection")
	}
	held := domain.LedgerKey{StudentID: "a/b", AcademicYearID: "c"}
	other := domain.LedgerKey{StudentID: "a", AcademicYearID: "b/c"}
	s.Require().Equal(held.String(), other.String())

	locked := make(chan struct{})
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = s.repos.LedgerRepo.WithLedgerLock(s.ctx, held, func(portsrepo.LedgerUnitOfWork) error {
			close(locked)
			<-done
			return nil
		})
	}()
	<-locked

	err := s.repos.LedgerRepo.WithLedgerLock(s.ctx, other, func(uow portsrepo.LedgerUnitOfWork) error {
		latest, err := uow.LatestTransaction(s.ctx)
		s.Nil(latest)
		return err
	})
	close(done)
	<-finished

	s.NoError(err)
}

// --- Fee types ---

func feeType(id, code, name string, active bool) domain.FeeType {
	return domain.FeeType{
		FeeTypeID:     id,
		Code:          code,
		Name:          name,
		DefaultAmount: decimal.RequireFromString("100.00"),
		IsActive:      active,
		AuditFields:   domain.NewAuditFields("bursar", createdAt),
	}
}

func (s *RepositorySuite) TestFeeTypes() {
	repo := s.repos.FeeTypeRepo
	s.Require().NoError(repo.SaveFeeType(s.ctx, feeType("ft-1", "tuition", "Tuition", true)))
	s.Require().NoError(repo.SaveFeeType(s.ctx, feeType("ft-2", "lab", "Lab", true)))
	s.ErrorIs(repo.SaveFeeType(s.ctx, feeType("ft-3", "tuition", "Tuition again", true)), apperrors.ErrDuplicate)

	s.Require().NoError(repo.SetFeeTypeActive(s.ctx, "ft-2", false, "bursar", createdAt.Add(time.Hour)))
	s.ErrorIs(repo.SetFeeTypeActive(s.ctx, "ft-404", false, "bursar", createdAt), apperrors.ErrNotFound)

	got, err := repo.FindFeeTypeByID(s.ctx, "ft-2")
	s.Require().NoError(err)
	s.False(got.IsActive)
	s.True(got.LastUpdatedAt.Equal(createdAt.Add(time.Hour)))

	active, err := repo.ListFeeTypes(s.ctx, true)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("tuition", active[0].Code)

	all, err := repo.ListFeeTypes(s.ctx, false)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("Lab", all[0].Name, "ordered by name")

	found, err := repo.FindFeeTypesByIDs(s.ctx, []string{"ft-1", "ft-2", "ft-404"})
	s.Require().NoError(err)
	s.Len(found, 2)
	s.NotContains(found, "ft-404")
}

// --- Fee structures ---

func (s *RepositorySuite) seedFeeTypes() {
	for _, ft := range []domain.FeeType{
		feeType("ft-tuition", "tuition", "Tuition", true),
		feeType("ft-transport", "transport", "Transport", true),
		feeType("ft-lab", "lab", "Lab", true),
	} {
		s.Require().NoError(s.repos.FeeTypeRepo.SaveFeeType(s.ctx, ft))
	}
}

func (s *RepositorySuite) TestFeeStructureLifecycle() {
	s.seedFeeTypes()
	repo := s.repos.FeeStructureRepo

	saved, err := repo.SaveFeeStructure(s.ctx, domain.FeeStructure{
		StructureID:    "fs-1",
		Name:           "Senior One",
		Code:           "S1",
		AcademicYearID: "2025",
		Components: []domain.FeeStructureComponent{
			{FeeTypeID: "ft-tuition", Amount: decimal.RequireFromString("12000.50"), IsMandatory: true, DisplayOrder: 1, CreatedAt: createdAt, CreatedBy: "bursar"},
			{FeeTypeID: "ft-transport", Amount: decimal.RequireFromString("2400.25"), DisplayOrder: 0, CreatedAt: createdAt, CreatedBy: "bursar"},
		},
		AuditFields: domain.NewAuditFields("bursar", createdAt),
	})
	s.Require().NoError(err)
	s.True(saved.TotalAmount.Equal(decimal.RequireFromString("14400.75")))
	s.Require().Len(saved.Components, 2)
	s.Equal("ft-transport", saved.Components[0].FeeTypeID, "display order first")
	s.NotZero(saved.Components[0].ComponentID)

	_, err = repo.SaveFeeStructure(s.ctx, domain.FeeStructure{
		StructureID: "fs-2", Name: "Copy", Code: "S1", AcademicYearID: "2025",
		Components:  []domain.FeeStructureComponent{{FeeTypeID: "ft-lab", Amount: decimal.NewFromInt(1), CreatedAt: createdAt, CreatedBy: "bursar"}},
		AuditFields: domain.NewAuditFields("bursar", createdAt),
	})
	s.ErrorIs(err, apperrors.ErrDuplicate, "code is unique per year")

	later := createdAt.Add(time.Hour)
	added, err := repo.AddComponent(s.ctx, "fs-1", domain.FeeStructureComponent{
		FeeTypeID: "ft-lab", Amount: decimal.RequireFromString("550"), DisplayOrder: 2, CreatedAt: later, CreatedBy: "bursar",
	}, "bursar", later)
	s.Require().NoError(err)
	s.True(added.TotalAmount.Equal(decimal.RequireFromString("14950.75")))

	_, err = repo.AddComponent(s.ctx, "fs-1", domain.FeeStructureComponent{
		FeeTypeID: "ft-lab", Amount: decimal.NewFromInt(1), CreatedAt: later, CreatedBy: "bursar",
	}, "bursar", later)
	s.ErrorIs(err, apperrors.ErrDuplicate)

	transport := saved.Components[0]
	transport.Amount = decimal.RequireFromString("2000")
	updated, err := repo.UpdateComponent(s.ctx, "fs-1", transport, "bursar", later)
	s.Require().NoError(err)
	s.True(updated.TotalAmount.Equal(decimal.RequireFromString("14550.50")))
	s.Equal("bursar", updated.LastUpdatedBy)

	removed, err := repo.RemoveComponent(s.ctx, "fs-1", transport.ComponentID, "bursar", later)
	s.Require().NoError(err)
	s.True(removed.TotalAmount.Equal(decimal.RequireFromString("12550.50")))
	s.Len(removed.Components, 2)

	_, err = repo.RemoveComponent(s.ctx, "fs-1", transport.ComponentID, "bursar", later)
	s.ErrorIs(err, apperrors.ErrNotFound)

	byCode, err := repo.FindFeeStructureByCode(s.ctx, "2025", "S1")
	s.Require().NoError(err)
	s.True(byCode.TotalAmount.Equal(decimal.RequireFromString("12550.50")))

	list, err := repo.ListFeeStructures(s.ctx, "2025")
	s.Require().NoError(err)
	s.Len(list, 1)
	list, err = repo.ListFeeStructures(s.ctx, "2026")
	s.Require().NoError(err)
	s.Empty(list)

	s.Require().NoError(repo.DeleteFeeStructure(s.ctx, "fs-1"))
	_, err = repo.FindFeeStructureByID(s.ctx, "fs-1")
	s.ErrorIs(err, apperrors.ErrNotFound)
	s.ErrorIs(repo.DeleteFeeStructure(s.ctx, "fs-1"), apperrors.ErrNotFound)
}

func (s *RepositorySuite) TestCannotRemoveLastComponent() {
	s.seedFeeTypes()
	saved, err := s.repos.FeeStructureRepo.SaveFeeStructure(s.ctx, domain.FeeStructure{
		StructureID: "fs-1", Name: "Nursery", Code: "N1", AcademicYearID: "2025",
		Components:  []domain.FeeStructureComponent{{FeeTypeID: "ft-tuition", Amount: decimal.NewFromInt(800), IsMandatory: true, CreatedAt: createdAt, CreatedBy: "bursar"}},
		AuditFields: domain.NewAuditFields("bursar", createdAt),
	})
	s.Require().NoError(err)

	_, err = s.repos.FeeStructureRepo.RemoveComponent(s.ctx, "fs-1", saved.Components[0].ComponentID, "bursar", createdAt)
	s.ErrorIs(err, apperrors.ErrValidation)

	got, err := s.repos.FeeStructureRepo.FindFeeStructureByID(s.ctx, "fs-1")
	s.Require().NoError(err)
	s.Len(got.Components, 1)
}

func TestMemoryRepositories(t *testing.T) {
	suite.Run(t, &RepositorySuite{driver: database.DriverMemory})
}

func TestSQLiteRepositories(t *testing.T) {
	suite.Run(t, &RepositorySuite{driver: database.DriverSQLite})
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, closeRepo, err := repositories.Open(context.Background(), repositories.StorageOptions{Driver: "mongo"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
	require.NotNil(t, closeRepo)
	closeRepo()
}
