package progression

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/cultusedu/cultus/core"
)

var (
	moduleStatusTag  = "modulestatus"
	moduleStatusText = "invalid module status"
)

// InitValidators registers this package's custom validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(moduleStatusTag, moduleStatusValidation)
	core.RegisterCustomTranslation(validate, translator, moduleStatusTag, moduleStatusText)
}

// moduleStatusValidation checks that the provided value is a known ModuleStatus.
func moduleStatusValidation(fl validator.FieldLevel) bool {
	return ModuleStatus(fl.Field().String()).Valid()
}
