package validation

import (
	"contact-form-service/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	// TagQueryType accepts the empty string or one of the offered query types.
	// Emptiness is left to the form's own required rule.
	TagQueryType = "query_type"
	// TagFormField accepts the name of any contact form field.
	TagFormField = "form_field"
)

// RegisterValidators registers custom validators to the validator instance
func RegisterValidators(v *validator.Validate) error {
	if err := v.RegisterValidation(TagQueryType, QueryType); err != nil {
		return err
	}
	return v.RegisterValidation(TagFormField, FormField)
}

// QueryType validates that a string is empty or an offered query type
func QueryType(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	return domain.IsQueryType(val)
}

// FormField validates that a string names a contact form field
func FormField(fl validator.FieldLevel) bool {
	_, err := domain.ParseField(fl.Field().String())
	return err == nil
}

func queryTypes() []string {
	return domain.QueryTypes
}
