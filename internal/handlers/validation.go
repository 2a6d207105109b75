package handlers

import (
	"reflect"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/student_ledger/internal/core/domain"
)

var registerValidatorsOnce sync.Once

// RegisterValidators adds the ledger binding tags to gin's validator:
// decimal_gt0, decimal_gte0, entry_type, direction and reference_type.
// decimal.Decimal fields are validated through their string form.
func RegisterValidators() {
	registerValidatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		_ = v.RegisterValidation("decimal_gt0", func(fl validator.FieldLevel) bool {
			d, ok := parseDecimalField(fl)
			return ok && d.IsPositive() && domain.HasValidScale(d)
		})
		_ = v.RegisterValidation("decimal_gte0", func(fl validator.FieldLevel) bool {
			d, ok := parseDecimalField(fl)
			return ok && !d.IsNegative() && domain.HasValidScale(d)
		})
		_ = v.RegisterValidation("entry_type", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseEntryType(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("direction", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseDirection(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("reference_type", func(fl validator.FieldLevel) bool {
			_, err := domain.ParseReferenceType(fl.Field().String())
			return err == nil
		})
	})
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

func parseDecimalField(fl validator.FieldLevel) (decimal.Decimal, bool) {
	if fl.Field().Kind() != reflect.String {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	return d, err == nil
}
