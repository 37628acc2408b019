package class

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/classhub/lms/core"
)

var (
	youtubeTag  = "youtube"
	youtubeText = "this is not a valid YouTube video link"
)

// InitValidators registers the class validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(youtubeTag, youtubeValidation)
	core.RegisterCustomTranslation(validate, translator, youtubeTag, youtubeText)
}

// youtubeValidation checks that a video id can be extracted from the field
func youtubeValidation(fl validator.FieldLevel) bool {
	return ExtractVideoID(fl.Field().String()) != ""
}
