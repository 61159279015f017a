package payment

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// InitValidators registers the payment validations and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, "feetype", "fee_type must be one of: "+strings.Join(AllFeeTypes, ", "), AllFeeTypes...)
	core.RegisterOneOf(validate, translator, "paymethod", "payment_method must be one of: "+strings.Join(AllMethods, ", "), AllMethods...)
	core.RegisterOneOf(validate, translator, "paystatus", "status must be one of: "+strings.Join(AllStatuses, ", "), AllStatuses...)
}
