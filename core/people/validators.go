package people

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	genderTag  = "gender"
	genderText = "gender must be one of: " + strings.Join(AllGenders, ", ")
)

// InitValidators registers the people validations and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterOneOf(validate, translator, genderTag, genderText, AllGenders...)
}
