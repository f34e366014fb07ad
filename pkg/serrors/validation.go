package serrors

import (
	"errors"

	"github.com/go-playground/locales/es"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	es_translations "github.com/go-playground/validator/v10/translations/es"
)

// Translator renders validator messages in Spanish, the language the
// back office works in.
type Translator struct {
	trans ut.Translator
}

func NewTranslator(v *validator.Validate) (*Translator, error) {
	locale := es.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("es")
	if err := es_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}
	return &Translator{trans: trans}, nil
}

// ProcessValidatorErrors maps each failing field (by its registered tag
// name) to a translated reason.
func (t *Translator) ProcessValidatorErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		if t == nil {
			out[fe.Field()] = fe.Tag()
			continue
		}
		out[fe.Field()] = fe.Translate(t.trans)
	}
	return out
}
