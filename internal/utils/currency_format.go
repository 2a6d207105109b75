package utils

import (
	"github.com/SscSPs/student_ledger/internal/core/domain"
	"github.com/shopspring/decimal"
)

// FormatAmount renders an amount at the ledger's fixed precision.
// Example: 12.3 returns "12.30", 5000 returns "5000.00".
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(domain.AmountScale)
}

// FormatWithCurrency prefixes the formatted amount with a currency code.
// Example: 1500 with "UGX" returns "UGX 1500.00".
func FormatWithCurrency(amount decimal.Decimal, currencyCode string) string {
	if currencyCode == "" {
		return FormatAmount(amount)
	}
	return currencyCode + " " + FormatAmount(amount)
}
