// Package validation checks request payloads with go-playground/validator,
// reporting fields by their JSON names with English messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/mpa-academy/schooladmin/internal/models"
)

var (
	// custom validation tags & texts
	gradeTag  = "grade"
	gradeText = "{0} must be one of Playgroup, PP1, PP2 or Grade 1 to Grade 9"

	termTag  = "term"
	termText = "{0} must be one of Term 1, Term 2 or Term 3"

	requiredTag  = "required"
	requiredText = "{0} is required"
)

// FieldError is a validation failure on a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is returned when a payload fails validation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// NewError builds an Error for a single field.
func NewError(field, message string) error {
	return &Error{Fields: []FieldError{{Field: field, Message: message}}}
}

// IsValidationError reports whether err is, or wraps, an *Error.
func IsValidationError(err error) bool {
	var verr *Error
	return errors.As(err, &verr)
}

// Validator validates structs using their `validate` tags.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New creates a Validator with the school's custom tags registered.
func New() *Validator {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	validate := validator.New()

	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(gradeTag, func(fl validator.FieldLevel) bool {
		return models.Grade(fl.Field().String()).Valid()
	})
	registerTranslation(validate, translator, gradeTag, gradeText, false)

	_ = validate.RegisterValidation(termTag, func(fl validator.FieldLevel) bool {
		return models.ValidTerm(fl.Field().String())
	})
	registerTranslation(validate, translator, termTag, termText, false)

	registerTranslation(validate, translator, requiredTag, requiredText, true)

	return &Validator{validate: validate, translator: translator}
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Struct validates v. It returns an *Error listing every failing field, or nil.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate: %w", err)
	}

	verr := &Error{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		verr.Fields[i] = FieldError{Field: fe.Field(), Message: fe.Translate(v.translator)}
	}
	return verr
}
