package attendance

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	statusTag  = "attstatus"
	statusText = "status must be one of: " + strings.Join(AllStatuses, ", ")
)

// InitValidators registers the attendance validations and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, statusTag, statusText, AllStatuses...)
}
