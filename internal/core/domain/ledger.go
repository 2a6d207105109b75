package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/shopspring/decimal"
)

// EntryType tags the business meaning of a ledger entry.
type EntryType string

const (
	EntryInvoice        EntryType = "invoice"
	EntryPayment        EntryType = "payment"
	EntryAdhocFee       EntryType = "adhoc_fee"
	EntryAdjustment     EntryType = "adjustment"
	EntryReversal       EntryType = "reversal"
	EntryOpeningBalance EntryType = "opening_balance"
)

// EntryTypes lists every entry type in a stable order.
var EntryTypes = []EntryType{EntryInvoice, EntryPayment, EntryAdhocFee, EntryAdjustment, EntryReversal, EntryOpeningBalance}

// IsValid reports whether t is a known entry type.
func (t EntryType) IsValid() bool {
	for _, known := range EntryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseEntryType converts a boundary string into an EntryType.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", apperrors.NewValidationError("entry_type", fmt.Sprintf("unknown entry type %q", s))
	}
	return t, nil
}

// ReferenceType names the kind of business object an entry points at.
type ReferenceType string

const (
	RefInvoice    ReferenceType = "invoice"
	RefPayment    ReferenceType = "payment"
	RefAdhocFee   ReferenceType = "adhoc_fee"
	RefAdjustment ReferenceType = "adjustment"
)

// ReferenceTypes lists every reference type in a stable order.
var ReferenceTypes = []ReferenceType{RefInvoice, RefPayment, RefAdhocFee, RefAdjustment}

// IsValid reports whether t is a known reference type.
func (t ReferenceType) IsValid() bool {
	for _, known := range ReferenceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseReferenceType converts a boundary string into a ReferenceType.
func ParseReferenceType(s string) (ReferenceType, error) {
	t := ReferenceType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", apperrors.NewValidationError("reference_type", fmt.Sprintf("unknown reference type %q", s))
	}
	return t, nil
}

// Direction says which side of the entry carries the amount.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// IsValid reports whether d is debit or credit.
func (d Direction) IsValid() bool {
	return d == Debit || d == Credit
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Debit {
		return Credit
	}
	return Debit
}

// ParseDirection converts a boundary string into a Direction.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", apperrors.NewValidationError("direction", fmt.Sprintf("unknown direction %q", s))
	}
	return d, nil
}

// LedgerKey identifies one ledger: the ordered log of a student in an academic year.
type LedgerKey struct {
	StudentID      string `json:"studentID"`
	AcademicYearID string `json:"academicYearID"`
}

func (k LedgerKey) String() string {
	return k.StudentID + "/" + k.AcademicYearID
}

// LockKey is an unambiguous rendering of k for keyed locks. The student id is
// length-prefixed so ids containing '/' cannot collide.
func (k LedgerKey) LockKey() string {
	return strconv.Itoa(len(k.StudentID)) + ":" + k.StudentID + "/" + k.AcademicYearID
}

// Validate checks both parts are present.
func (k LedgerKey) Validate() error {
	if strings.TrimSpace(k.StudentID) == "" {
		return apperrors.NewValidationError("student_id", "is required")
	}
	if strings.TrimSpace(k.AcademicYearID) == "" {
		return apperrors.NewValidationError("academic_year_id", "is required")
	}
	return nil
}

// LedgerTransaction is one immutable row of a student ledger.
// Exactly one of DebitAmount and CreditAmount is non-zero. Balance is the running
// balance after this entry, frozen when the entry is posted.
type LedgerTransaction struct {
	ID                    int64           `json:"id"`
	TransactionNumber     string          `json:"transactionNumber"`
	TransactionDate       time.Time       `json:"transactionDate"`
	StudentID             string          `json:"studentID"`
	AcademicYearID        string          `json:"academicYearID"`
	EntryType             EntryType       `json:"entryType"`
	DebitAmount           decimal.Decimal `json:"debitAmount"`
	CreditAmount          decimal.Decimal `json:"creditAmount"`
	Balance               decimal.Decimal `json:"balance"`
	ReferenceType         *ReferenceType  `json:"referenceType,omitempty"`
	ReferenceID           *string         `json:"referenceID,omitempty"`
	Description           string          `json:"description"`
	Remarks               string          `json:"remarks"`
	IdempotencyKey        *string         `json:"idempotencyKey,omitempty"`
	CreatedBy             string          `json:"createdBy"`
	CreatedAt             time.Time       `json:"createdAt"`
	IsReversed            bool            `json:"isReversed"`
	ReversesTransactionID *int64          `json:"reversesTransactionID,omitempty"`
	ReversalTransactionID *int64          `json:"reversalTransactionID,omitempty"`
	IsLocked              bool            `json:"isLocked"`
}

// Key returns the ledger the entry belongs to.
func (t LedgerTransaction) Key() LedgerKey {
	return LedgerKey{StudentID: t.StudentID, AcademicYearID: t.AcademicYearID}
}

// Direction returns the side that carries the amount.
func (t LedgerTransaction) Direction() Direction {
	if t.DebitAmount.IsPositive() {
		return Debit
	}
	return Credit
}

// Amount returns the absolute amount of the entry.
func (t LedgerTransaction) Amount() decimal.Decimal {
	if t.DebitAmount.IsPositive() {
		return t.DebitAmount
	}
	return t.CreditAmount
}

// Delta is the entry's effect on the running balance.
func (t LedgerTransaction) Delta() decimal.Decimal {
	return t.DebitAmount.Sub(t.CreditAmount)
}

// IsReversal reports whether the entry negates another entry.
func (t LedgerTransaction) IsReversal() bool {
	return t.EntryType == EntryReversal || t.ReversesTransactionID != nil
}

// PostEntry is the input to posting a new ledger entry.
type PostEntry struct {
	StudentID       string
	AcademicYearID  string
	EntryType       EntryType
	Amount          decimal.Decimal
	Direction       Direction
	ReferenceType   *ReferenceType
	ReferenceID     *string
	Description     string
	Remarks         string
	CreatedBy       string
	TransactionDate time.Time
	IdempotencyKey  string
}

// Key returns the ledger the entry targets.
func (e PostEntry) Key() LedgerKey {
	return LedgerKey{StudentID: e.StudentID, AcademicYearID: e.AcademicYearID}
}

// Validate checks the entry in isolation. Rules that depend on ledger state,
// such as opening balances only on an empty ledger, are checked at post time.
func (e PostEntry) Validate() error {
	if err := e.Key().Validate(); err != nil {
		return err
	}
	if !e.EntryType.IsValid() {
		return apperrors.NewValidationError("entry_type", fmt.Sprintf("unknown entry type %q", e.EntryType))
	}
	if !e.Direction.IsValid() {
		return apperrors.NewValidationError("direction", fmt.Sprintf("unknown direction %q", e.Direction))
	}
	if err := ValidatePositiveAmount(e.Amount); err != nil {
		return err
	}
	if e.EntryType == EntryAdjustment && strings.TrimSpace(e.Description) == "" {
		return apperrors.NewValidationError("description", "is required for adjustment entries")
	}
	if strings.TrimSpace(e.CreatedBy) == "" {
		return apperrors.NewValidationError("created_by", "is required")
	}
	if e.TransactionDate.IsZero() {
		return apperrors.NewValidationError("transaction_date", "is required")
	}
	if (e.ReferenceType == nil) != (e.ReferenceID == nil) {
		return apperrors.NewValidationError("reference", "reference_type and reference_id must be supplied together")
	}
	if e.ReferenceType != nil {
		if !e.ReferenceType.IsValid() {
			return apperrors.NewValidationError("reference_type", fmt.Sprintf("unknown reference type %q", *e.ReferenceType))
		}
		if strings.TrimSpace(*e.ReferenceID) == "" {
			return apperrors.NewValidationError("reference_id", "must not be blank")
		}
	}
	return nil
}

// ToTransaction builds the row for e, without id, number or balance.
func (e PostEntry) ToTransaction(createdAt time.Time) LedgerTransaction {
	txn := LedgerTransaction{
		TransactionDate: NormalizeDate(e.TransactionDate),
		StudentID:       e.StudentID,
		AcademicYearID:  e.AcademicYearID,
		EntryType:       e.EntryType,
		DebitAmount:     decimal.Zero,
		CreditAmount:    decimal.Zero,
		ReferenceType:   e.ReferenceType,
		ReferenceID:     e.ReferenceID,
		Description:     e.Description,
		Remarks:         e.Remarks,
		CreatedBy:       e.CreatedBy,
		CreatedAt:       createdAt,
	}
	if e.Direction == Debit {
		txn.DebitAmount = e.Amount
	} else {
		txn.CreditAmount = e.Amount
	}
	if e.IdempotencyKey != "" {
		key := e.IdempotencyKey
		txn.IdempotencyKey = &key
	}
	return txn
}

// MatchesEntry reports whether t is what posting e would have produced.
// Used to tell an idempotent replay from a reused key.
func (t LedgerTransaction) MatchesEntry(e PostEntry) bool {
	return t.Key() == e.Key() &&
		t.EntryType == e.EntryType &&
		t.Direction() == e.Direction &&
		t.Amount().Equal(e.Amount) &&
		samePtr(t.ReferenceType, e.ReferenceType) &&
		samePtr(t.ReferenceID, e.ReferenceID)
}

func samePtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// FormatTransactionNumber renders {prefix}-{academicYear}-{zero padded sequence}.
func FormatTransactionNumber(prefix, academicYearID string, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", prefix, academicYearID, seq)
}

// ParseTransactionNumber splits a transaction number. The prefix may not contain '-',
// the academic year may.
func ParseTransactionNumber(number string) (prefix, academicYearID string, seq int64, err error) {
	first := strings.Index(number, "-")
	last := strings.LastIndex(number, "-")
	if first <= 0 || last <= first+1 || last == len(number)-1 {
		return "", "", 0, apperrors.NewValidationError("transaction_number", fmt.Sprintf("malformed transaction number %q", number))
	}
	seq, err = strconv.ParseInt(number[last+1:], 10, 64)
	if err != nil || seq <= 0 {
		return "", "", 0, apperrors.NewValidationError("transaction_number", fmt.Sprintf("malformed sequence in %q", number))
	}
	return number[:first], number[first+1 : last], seq, nil
}

// LedgerSummary aggregates a ledger.
type LedgerSummary struct {
	LedgerKey
	TotalDebits       decimal.Decimal `json:"totalDebits" swaggertype:"string"`
	TotalCredits      decimal.Decimal `json:"totalCredits" swaggertype:"string"`
	Balance           decimal.Decimal `json:"balance" swaggertype:"string"`
	EntryCount        int             `json:"entryCount"`
	ReversedCount     int             `json:"reversedCount"`
	LockedCount       int             `json:"lockedCount"`
	LastTransactionID *int64          `json:"lastTransactionID,omitempty"`
}

// ReconcileResult reports the first entry whose stored balance diverges from the fold of deltas.
type ReconcileResult struct {
	OK              bool            `json:"ok"`
	FirstMismatchID *int64          `json:"firstMismatchID,omitempty"`
	Expected        decimal.Decimal `json:"expected"`
	Stored          decimal.Decimal `json:"stored"`
	Checked         int             `json:"checked"`
}
