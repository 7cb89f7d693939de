package attendance

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

var (
	thresholdTag  = "threshold"
	thresholdText = "{0} must be a percentage between 0 and 100"
)

// InitValidators registers the validation rules of this package.
// core.InitValidators must be called first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(thresholdTag, thresholdValidation)
	core.RegisterCustomTranslation(validate, translator, thresholdTag, thresholdText)
}

func thresholdValidation(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return v >= 0 && v <= NoThreshold
}

// Validate normalizes the filter in place, then validates it.
func (f *Filter) Validate(validate *validator.Validate) error {
	*f = f.Normalized()
	return validate.Struct(f)
}
