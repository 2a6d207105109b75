package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerTransaction is a row of ledger_transactions. Nullable columns use sql.Null types.
type LedgerTransaction struct {
	ID                    int64
	TransactionNumber     string
	TransactionDate       time.Time
	StudentID             string
	AcademicYearID        string
	EntryType             string
	DebitAmount           decimal.Decimal
	CreditAmount          decimal.Decimal
	Balance               decimal.Decimal
	ReferenceType         sql.NullString
	ReferenceID           sql.NullString
	Description           string
	Remarks               string
	IdempotencyKey        sql.NullString
	CreatedBy             string
	CreatedAt             time.Time
	IsReversed            bool
	ReversesTransactionID sql.NullInt64
	ReversalTransactionID sql.NullInt64
	IsLocked              bool
}
