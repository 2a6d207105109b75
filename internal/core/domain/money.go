package domain

import (
	"github.com/SscSPs/student_ledger/internal/apperrors"
	"github.com/shopspring/decimal"
)

// AmountScale is the fixed-point precision of every monetary value handled by the ledger.
const AmountScale int32 = 2

// MaxAmount is the largest single amount the NUMERIC(14,2) columns hold.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// HasValidScale reports whether amount has no more than AmountScale fractional digits.
func HasValidScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(AmountScale))
}

// ValidatePositiveAmount rejects zero, negative, oversized and over-precise amounts.
func ValidatePositiveAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperrors.NewInvalidAmountError(amount.String(), "must be greater than zero")
	}
	return checkBounds(amount)
}

// ValidateNonNegativeAmount rejects negative, oversized and over-precise amounts. Zero is allowed.
func ValidateNonNegativeAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperrors.NewInvalidAmountError(amount.String(), "must not be negative")
	}
	return checkBounds(amount)
}

func checkBounds(amount decimal.Decimal) error {
	if amount.GreaterThan(MaxAmount) {
		return apperrors.NewInvalidAmountError(amount.String(), "must not exceed "+MaxAmount.StringFixed(AmountScale))
	}
	if !HasValidScale(amount) {
		return apperrors.NewInvalidAmountError(amount.String(), "at most 2 decimal places allowed")
	}
	return nil
}
