package mapping

import (
	"database/sql"

	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/SscSPs/student_ledger/internal/models"
)

// ToModelLedgerTransaction converts a domain.LedgerTransaction to its row form.
func ToModelLedgerTransaction(d domain.LedgerTransaction) models.LedgerTransaction {
	m := models.LedgerTransaction{
		ID:                    d.ID,
		TransactionNumber:     d.TransactionNumber,
		TransactionDate:       d.TransactionDate,
		StudentID:             d.StudentID,
		AcademicYearID:        d.AcademicYearID,
		EntryType:             string(d.EntryType),
		DebitAmount:           d.DebitAmount,
		CreditAmount:          d.CreditAmount,
		Balance:               d.Balance,
		ReferenceID:           toNullString(d.ReferenceID),
		Description:           d.Description,
		Remarks:               d.Remarks,
		IdempotencyKey:        toNullString(d.IdempotencyKey),
		CreatedBy:             d.CreatedBy,
		CreatedAt:             d.CreatedAt,
		IsReversed:            d.IsReversed,
		ReversesTransactionID: toNullInt64(d.ReversesTransactionID),
		ReversalTransactionID: toNullInt64(d.ReversalTransactionID),
		IsLocked:              d.IsLocked,
	}
	if d.ReferenceType != nil {
		m.ReferenceType = sql.NullString{String: string(*d.ReferenceType), Valid: true}
	}
	return m
}

// ToDomainLedgerTransaction converts a row to a domain.LedgerTransaction.
func ToDomainLedgerTransaction(m models.LedgerTransaction) domain.LedgerTransaction {
	d := domain.LedgerTransaction{
		ID:                    m.ID,
		TransactionNumber:     m.TransactionNumber,
		TransactionDate:       domain.NormalizeDate(m.TransactionDate),
		StudentID:             m.StudentID,
		AcademicYearID:        m.AcademicYearID,
		EntryType:             domain.EntryType(m.EntryType),
		DebitAmount:           m.DebitAmount,
		CreditAmount:          m.CreditAmount,
		Balance:               m.Balance,
		ReferenceID:           fromNullString(m.ReferenceID),
		Description:           m.Description,
		Remarks:               m.Remarks,
		IdempotencyKey:        fromNullString(m.IdempotencyKey),
		CreatedBy:             m.CreatedBy,
		CreatedAt:             m.CreatedAt,
		IsReversed:            m.IsReversed,
		ReversesTransactionID: fromNullInt64(m.ReversesTransactionID),
		ReversalTransactionID: fromNullInt64(m.ReversalTransactionID),
		IsLocked:              m.IsLocked,
	}
	if m.ReferenceType.Valid {
		refType := domain.ReferenceType(m.ReferenceType.String)
		d.ReferenceType = &refType
	}
	return d
}

// ToDomainLedgerTransactions converts a slice of rows.
func ToDomainLedgerTransactions(ms []models.LedgerTransaction) []domain.LedgerTransaction {
	ds := make([]domain.LedgerTransaction, len(ms))
	for i, m := range ms {
		ds[i] = ToDomainLedgerTransaction(m)
	}
	return ds
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func toNullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func fromNullInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	i := ni.Int64
	return &i
}
