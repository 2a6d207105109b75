package domain

import "github.com/shopspring/decimal"

// FeeType is an atomic fee category such as tuition, transport or lab.
// Fee types are never deleted; deactivation hides them from new structures only.
type FeeType struct {
	FeeTypeID     string          `json:"feeTypeID"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	DefaultAmount decimal.Decimal `json:"defaultAmount"`
	IsActive      bool            `json:"isActive"`
	AuditFields
}
