package product

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/cultusedu/cultus/core"
)

var (
	moduleTypeTag  = "moduletype"
	moduleTypeText = "invalid module type"
)

// InitValidators registers this package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(moduleTypeTag, moduleTypeValidation)
	core.RegisterCustomTranslation(validate, translator, moduleTypeTag, moduleTypeText)
}

// moduleTypeValidation checks that the provided value is a known ModuleType.
func moduleTypeValidation(fl validator.FieldLevel) bool {
	return ModuleType(fl.Field().String()).Valid()
}
