package domain_test

import (
	"testing"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refType(t domain.ReferenceType) *domain.ReferenceType { return &t }
func stringPtr(s string) *string                           { return &s }

func validEntry() domain.PostEntry {
	return domain.PostEntry{
		StudentID:       "S-1",
		AcademicYearID:  "2025",
		EntryType:       domain.EntryInvoice,
		Amount:          decimal.RequireFromString("5000.00"),
		Direction:       domain.Debit,
		ReferenceType:   refType(domain.RefInvoice),
		ReferenceID:     stringPtr("INV-1"),
		CreatedBy:       "clerk",
		TransactionDate: time.Date(2025, 2, 1, 15, 4, 5, 0, time.UTC),
	}
}

func TestPostEntry_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(e *domain.PostEntry)
		wantErr   error
		wantField string
	}{
		{name: "valid invoice", mutate: func(e *domain.PostEntry) {}},
		{
			name:      "missing student",
			mutate:    func(e *domain.PostEntry) { e.StudentID = " " },
			wantErr:   apperrors.ErrValidation,
			wantField: "student_id",
		},
		{
			name:      "missing academic year",
			mutate:    func(e *domain.PostEntry) { e.AcademicYearID = "" },
			wantErr:   apperrors.ErrValidation,
			wantField: "academic_year_id",
		},
		{
			name:    "zero amount",
			mutate:  func(e *domain.PostEntry) { e.Amount = decimal.Zero },
			wantErr: apperrors.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(e *domain.PostEntry) { e.Amount = decimal.NewFromInt(-5) },
			wantErr: apperrors.ErrInvalidAmount,
		},
		{
			name:    "amount wider than storage",
			mutate:  func(e *domain.PostEntry) { e.Amount = decimal.RequireFromString("1000000000000000.00") },
			wantErr: apperrors.ErrInvalidAmount,
		},
		{
			name:    "three decimal places",
			mutate:  func(e *domain.PostEntry) { e.Amount = decimal.RequireFromString("10.005") },
			wantErr: apperrors.ErrInvalidAmount,
		},
		{
			name:      "adjustment without description",
			mutate:    func(e *domain.PostEntry) { e.EntryType = domain.EntryAdjustment; e.Description = "" },
			wantErr:   apperrors.ErrValidation,
			wantField: "description",
		},
		{
			name: "adjustment with description",
			mutate: func(e *domain.PostEntry) {
				e.EntryType = domain.EntryAdjustment
				e.Description = "bursary top-up"
			},
		},
		{
			name:      "unknown entry type",
			mutate:    func(e *domain.PostEntry) { e.EntryType = "refund" },
			wantErr:   apperrors.ErrValidation,
			wantField: "entry_type",
		},
		{
			name:      "unknown direction",
			mutate:    func(e *domain.PostEntry) { e.Direction = "sideways" },
			wantErr:   apperrors.ErrValidation,
			wantField: "direction",
		},
		{
			name:      "reference id without type",
			mutate:    func(e *domain.PostEntry) { e.ReferenceType = nil },
			wantErr:   apperrors.ErrValidation,
			wantField: "reference",
		},
		{
			name:      "missing creator",
			mutate:    func(e *domain.PostEntry) { e.CreatedBy = "" },
			wantErr:   apperrors.ErrValidation,
			wantField: "created_by",
		},
		{
			name:      "missing date",
			mutate:    func(e *domain.PostEntry) { e.TransactionDate = time.Time{} },
			wantErr:   apperrors.ErrValidation,
			wantField: "transaction_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := validEntry()
			tt.mutate(&entry)
			err := entry.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, apperrors.ErrValidation, "every input rejection is a validation error")
			if tt.wantField != "" {
				var vErr *apperrors.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, tt.wantField, vErr.Field)
			}
		})
	}
}

func TestPostEntry_ToTransaction(t *testing.T) {
	entry := validEntry()
	entry.IdempotencyKey = "idem-1"
	now := time.Date(2025, 2, 1, 16, 0, 0, 0, time.UTC)

	txn := entry.ToTransaction(now)

	assert.True(t, txn.DebitAmount.Equal(decimal.RequireFromString("5000")))
	assert.True(t, txn.CreditAmount.IsZero())
	assert.Equal(t, domain.Debit, txn.Direction())
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), txn.TransactionDate, "date is truncated")
	require.NotNil(t, txn.IdempotencyKey)
	assert.Equal(t, "idem-1", *txn.IdempotencyKey)
	assert.True(t, txn.MatchesEntry(entry))

	entry.Direction = domain.Credit
	credit := entry.ToTransaction(now)
	assert.True(t, credit.DebitAmount.IsZero())
	assert.True(t, credit.Delta().Equal(decimal.NewFromInt(-5000)))
	assert.False(t, txn.MatchesEntry(entry), "direction differs")

	entry.Direction = domain.Debit
	entry.ReferenceID = stringPtr("INV-2")
	assert.False(t, txn.MatchesEntry(entry), "reference differs")
	entry.ReferenceType, entry.ReferenceID = nil, nil
	assert.False(t, txn.MatchesEntry(entry), "reference dropped")
}

func TestTransactionNumber_RoundTrip(t *testing.T) {
	tests := []struct {
		prefix string
		year   string
		seq    int64
		want   string
	}{
		{"TXN", "2025", 1, "TXN-2025-000001"},
		{"TXN", "2025-26", 42, "TXN-2025-26-000042"},
		{"LDG", "AY2024", 1234567, "LDG-AY2024-1234567"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := domain.FormatTransactionNumber(tt.prefix, tt.year, tt.seq)
			assert.Equal(t, tt.want, got)

			prefix, year, seq, err := domain.ParseTransactionNumber(got)
			require.NoError(t, err)
			assert.Equal(t, tt.prefix, prefix)
			assert.Equal(t, tt.year, year)
			assert.Equal(t, tt.seq, seq)
		})
	}
}

func TestParseTransactionNumber_Malformed(t *testing.T) {
	for _, s := range []string{"", "TXN", "TXN-2025", "TXN-2025-", "-2025-000001", "TXN-2025-abc", "TXN-2025-000000"} {
		_, _, _, err := domain.ParseTransactionNumber(s)
		assert.ErrorIs(t, err, apperrors.ErrValidation, s)
	}
}

func TestParseEnums(t *testing.T) {
	et, err := domain.ParseEntryType(" Adhoc_Fee ")
	require.NoError(t, err)
	assert.Equal(t, domain.EntryAdhocFee, et)

	_, err = domain.ParseEntryType("refund")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	rt, err := domain.ParseReferenceType("payment")
	require.NoError(t, err)
	assert.Equal(t, domain.RefPayment, rt)

	_, err = domain.ParseReferenceType("reversal")
	assert.ErrorIs(t, err, apperrors.ErrValidation, "reversal is an entry type, not a reference type")

	d, err := domain.ParseDirection("CREDIT")
	require.NoError(t, err)
	assert.Equal(t, domain.Credit, d)
	assert.Equal(t, domain.Debit, d.Opposite())
}

func TestLedgerTransaction_IsReversal(t *testing.T) {
	id := int64(7)
	assert.True(t, domain.LedgerTransaction{EntryType: domain.EntryReversal}.IsReversal())
	assert.True(t, domain.LedgerTransaction{EntryType: domain.EntryPayment, ReversesTransactionID: &id}.IsReversal())
	assert.False(t, domain.LedgerTransaction{EntryType: domain.EntryPayment}.IsReversal())
}

func TestLedgerKey_LockKey(t *testing.T) {
	a := domain.LedgerKey{StudentID: "a/b", AcademicYearID: "c"}
	b := domain.LedgerKey{StudentID: "a", AcademicYearID: "b/c"}

	assert.Equal(t, a.String(), b.String())
	assert.NotEqual(t, a.LockKey(), b.LockKey())
	assert.Equal(t, a.LockKey(), domain.LedgerKey{StudentID: "a/b", AcademicYearID: "c"}.LockKey())
}
