package dto

import (
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of logical dates.
const DateLayout = "2006-01-02"

// PostLedgerEntryRequest defines the data needed to post a ledger entry.
// The creator comes from the authenticated caller, never from the body.
type PostLedgerEntryRequest struct {
	StudentID       string          `json:"studentID" binding:"required,max=64"`
	AcademicYearID  string          `json:"academicYearID" binding:"required,max=32"`
	EntryType       string          `json:"entryType" binding:"required,entry_type"`
	Amount          decimal.Decimal `json:"amount" binding:"decimal_gt0" swaggertype:"string"`
	Direction       string          `json:"direction" binding:"required,direction"`
	ReferenceType   *string         `json:"referenceType,omitempty" binding:"omitempty,reference_type"`
	ReferenceID     *string         `json:"referenceID,omitempty" binding:"omitempty,max=64"`
	Description     string          `json:"description" binding:"max=500"`
	Remarks         string          `json:"remarks" binding:"max=500"`
	TransactionDate string          `json:"transactionDate,omitempty" binding:"omitempty,datetime=2006-01-02"`
	IdempotencyKey  string          `json:"idempotencyKey,omitempty" binding:"max=128"`
}

// ToPostEntry converts the request. A missing transaction date defaults to today.
func (r PostLedgerEntryRequest) ToPostEntry(createdBy string, today time.Time) (domain.PostEntry, error) {
	entryType, err := domain.ParseEntryType(r.EntryType)
	if err != nil {
		return domain.PostEntry{}, err
	}
	direction, err := domain.ParseDirection(r.Direction)
	if err != nil {
		return domain.PostEntry{}, err
	}
	entry := domain.PostEntry{
		StudentID:       r.StudentID,
		AcademicYearID:  r.AcademicYearID,
		EntryType:       entryType,
		Amount:          r.Amount,
		Direction:       direction,
		ReferenceID:     r.ReferenceID,
		Description:     r.Description,
		Remarks:         r.Remarks,
		CreatedBy:       createdBy,
		TransactionDate: domain.NormalizeDate(today),
		IdempotencyKey:  r.IdempotencyKey,
	}
	if r.ReferenceType != nil {
		refType, err := domain.ParseReferenceType(*r.ReferenceType)
		if err != nil {
			return domain.PostEntry{}, err
		}
		entry.ReferenceType = &refType
	}
	if r.TransactionDate != "" {
		date, err := time.Parse(DateLayout, r.TransactionDate)
		if err != nil {
			return domain.PostEntry{}, apperrors.NewValidationError("transaction_date", "must be YYYY-MM-DD")
		}
		entry.TransactionDate = date
	}
	return entry, nil
}

// ReverseTransactionRequest defines the data needed to reverse an entry.
type ReverseTransactionRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// LockLedgerRequest defines the period-close boundary of a ledger.
type LockLedgerRequest struct {
	AsOfTransactionID int64 `json:"asOfTransactionID" binding:"required,gt=0"`
}

// LockLedgerResponse reports how many entries a lock newly finalized.
type LockLedgerResponse struct {
	StudentID         string `json:"studentID"`
	AcademicYearID    string `json:"academicYearID"`
	AsOfTransactionID int64  `json:"asOfTransactionID"`
	LockedCount       int64  `json:"lockedCount"`
}

// StatementParams defines the query parameters for a statement.
type StatementParams struct {
	From string `form:"from" binding:"required,datetime=2006-01-02"`
	To   string `form:"to" binding:"required,datetime=2006-01-02"`
}

// ListLedgerTransactionsParams defines the query parameters for paging a ledger.
type ListLedgerTransactionsParams struct {
	Limit     int     `form:"limit" binding:"omitempty,min=1,max=500"`
	NextToken *string `form:"nextToken"`
}

// TransactionLookupParams selects entries across ledgers. Exactly one of transactionNumber,
// idempotencyKey or the referenceType/referenceID pair must be given.
type TransactionLookupParams struct {
	TransactionNumber string `form:"transactionNumber"`
	IdempotencyKey    string `form:"idempotencyKey"`
	ReferenceType     string `form:"referenceType" binding:"omitempty,reference_type"`
	ReferenceID       string `form:"referenceID"`
}

// ReconcileResponse reports the outcome of re-folding a ledger.
type ReconcileResponse struct {
	StudentID       string          `json:"studentID"`
	AcademicYearID  string          `json:"academicYearID"`
	OK              bool            `json:"ok"`
	FirstMismatchID *int64          `json:"firstMismatchID,omitempty"`
	Expected        decimal.Decimal `json:"expected" swaggertype:"string"`
	Stored          decimal.Decimal `json:"stored" swaggertype:"string"`
	Checked         int             `json:"checked"`
}

// LedgerTransactionResponse defines the data returned for a ledger entry.
type LedgerTransactionResponse struct {
	ID                    int64           `json:"id"`
	TransactionNumber     string          `json:"transactionNumber"`
	TransactionDate       string          `json:"transactionDate"`
	StudentID             string          `json:"studentID"`
	AcademicYearID        string          `json:"academicYearID"`
	EntryType             string          `json:"entryType"`
	DebitAmount           decimal.Decimal `json:"debitAmount" swaggertype:"string"`
	CreditAmount          decimal.Decimal `json:"creditAmount" swaggertype:"string"`
	Balance               decimal.Decimal `json:"balance" swaggertype:"string"`
	ReferenceType         *string         `json:"referenceType,omitempty"`
	ReferenceID           *string         `json:"referenceID,omitempty"`
	Description           string          `json:"description"`
	Remarks               string          `json:"remarks"`
	CreatedBy             string          `json:"createdBy"`
	CreatedAt             time.Time       `json:"createdAt"`
	IsReversed            bool            `json:"isReversed"`
	ReversesTransactionID *int64          `json:"reversesTransactionID,omitempty"`
	ReversalTransactionID *int64          `json:"reversalTransactionID,omitempty"`
	IsLocked              bool            `json:"isLocked"`
}

// ListLedgerTransactionsResponse is one page of a ledger.
type ListLedgerTransactionsResponse struct {
	Transactions []LedgerTransactionResponse `json:"transactions"`
	NextToken    *string                     `json:"nextToken,omitempty"`
}

// BalanceResponse is the current balance of a ledger.
type BalanceResponse struct {
	StudentID      string          `json:"studentID"`
	AcademicYearID string          `json:"academicYearID"`
	Balance        decimal.Decimal `json:"balance" swaggertype:"string"`
	Currency       string          `json:"currency"`
	Formatted      string          `json:"formatted"`
}

// StatementResponse lists the entries of a period with their frozen balances.
type StatementResponse struct {
	StudentID      string                      `json:"studentID"`
	AcademicYearID string                      `json:"academicYearID"`
	From           string                      `json:"from"`
	To             string                      `json:"to"`
	OpeningBalance *decimal.Decimal            `json:"openingBalance,omitempty" swaggertype:"string"`
	ClosingBalance *decimal.Decimal            `json:"closingBalance,omitempty" swaggertype:"string"`
	Transactions   []LedgerTransactionResponse `json:"transactions"`
}

// ToLedgerTransactionResponse converts a domain.LedgerTransaction.
func ToLedgerTransactionResponse(t *domain.LedgerTransaction) LedgerTransactionResponse {
	resp := LedgerTransactionResponse{
		ID:                    t.ID,
		TransactionNumber:     t.TransactionNumber,
		TransactionDate:       t.TransactionDate.Format(DateLayout),
		StudentID:             t.StudentID,
		AcademicYearID:        t.AcademicYearID,
		EntryType:             string(t.EntryType),
		DebitAmount:           t.DebitAmount,
		CreditAmount:          t.CreditAmount,
		Balance:               t.Balance,
		ReferenceID:           t.ReferenceID,
		Description:           t.Description,
		Remarks:               t.Remarks,
		CreatedBy:             t.CreatedBy,
		CreatedAt:             t.CreatedAt,
		IsReversed:            t.IsReversed,
		ReversesTransactionID: t.ReversesTransactionID,
		ReversalTransactionID: t.ReversalTransactionID,
		IsLocked:              t.IsLocked,
	}
	if t.ReferenceType != nil {
		ref := string(*t.ReferenceType)
		resp.ReferenceType = &ref
	}
	return resp
}

// ToLedgerTransactionResponses converts a slice of domain.LedgerTransaction.
func ToLedgerTransactionResponses(txns []domain.LedgerTransaction) []LedgerTransactionResponse {
	responses := make([]LedgerTransactionResponse, len(txns))
	for i := range txns {
		responses[i] = ToLedgerTransactionResponse(&txns[i])
	}
	return responses
}

// ToStatementResponse builds a statement. Opening balance is the balance before the
// first entry of the period, derived from its frozen balance.
func ToStatementResponse(key domain.LedgerKey, from, to time.Time, txns []domain.LedgerTransaction) StatementResponse {
	resp := StatementResponse{
		StudentID:      key.StudentID,
		AcademicYearID: key.AcademicYearID,
		From:           from.Format(DateLayout),
		To:             to.Format(DateLayout),
		Transactions:   ToLedgerTransactionResponses(txns),
	}
	if n := len(txns); n > 0 {
		opening := txns[0].Balance.Sub(txns[0].Delta())
		closing := txns[n-1].Balance
		resp.OpeningBalance = &opening
		resp.ClosingBalance = &closing
	}
	return resp
}
