package main

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	appfs "github.com/trezcool/shule/fs"
)

// newValidator returns a validator enforcing the password policy on new users.
func newValidator(logger core.Logger) *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswordsFile, logger)
	return validate
}
