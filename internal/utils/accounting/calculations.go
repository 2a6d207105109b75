package accounting

import (
	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// SignedAmount applies the ledger sign convention to an amount.
// A debit raises what the student owes, a credit lowers it.
func SignedAmount(amount decimal.Decimal, direction domain.Direction) decimal.Decimal {
	if direction == domain.Credit {
		return amount.Neg()
	}
	return amount
}

// NextBalance is the running balance after posting amount in direction on top of prior.
func NextBalance(prior, amount decimal.Decimal, direction domain.Direction) decimal.Decimal {
	return prior.Add(SignedAmount(amount, direction))
}

// Reconcile folds entries, which must be ordered by id and belong to one ledger,
// and compares each stored balance with the expected running balance.
// It stops at the first divergence; it never repairs anything.
func Reconcile(entries []domain.LedgerTransaction) domain.ReconcileResult {
	expected := decimal.Zero
	for i, entry := range entries {
		expected = expected.Add(entry.Delta())
		if !expected.Equal(entry.Balance) {
			id := entry.ID
			return domain.ReconcileResult{
				OK:              false,
				FirstMismatchID: &id,
				Expected:        expected,
				Stored:          entry.Balance,
				Checked:         i + 1,
			}
		}
	}
	return domain.ReconcileResult{
		OK:       true,
		Expected: expected,
		Stored:   expected,
		Checked:  len(entries),
	}
}

// Summarize totals a ledger's entries.
func Summarize(key domain.LedgerKey, entries []domain.LedgerTransaction) domain.LedgerSummary {
	summary := domain.LedgerSummary{
		LedgerKey:    key,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
		Balance:      decimal.Zero,
	}
	for _, entry := range entries {
		summary.TotalDebits = summary.TotalDebits.Add(entry.DebitAmount)
		summary.TotalCredits = summary.TotalCredits.Add(entry.CreditAmount)
		summary.EntryCount++
		if entry.IsReversed {
			summary.ReversedCount++
		}
		if entry.IsLocked {
			summary.LockedCount++
		}
	}
	if n := len(entries); n > 0 {
		last := entries[n-1]
		summary.Balance = last.Balance
		summary.LastTransactionID = &last.ID
	}
	return summary
}
