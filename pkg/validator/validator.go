package validator

import (
	"github.com/go-playground/validator/v10"
)

type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{
		validator: validator.New(),
	}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// FieldErrors returns the failed fields in declaration order, nil if err is
// not a validation error.
func FieldErrors(err error) validator.ValidationErrors {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	return validationErrors
}

func (cv *CustomValidator) FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	for _, e := range FieldErrors(err) {
		field := e.Field()
		switch e.Tag() {
		case "required":
			errors[field] = field + " is required"
		case "max":
			errors[field] = field + " must be at most " + e.Param() + " characters"
		case "len":
			errors[field] = field + " must be exactly " + e.Param() + " characters"
		case "datetime":
			errors[field] = field + " must match the layout " + e.Param()
		case "oneof":
			errors[field] = field + " must be one of: " + e.Param()
		default:
			errors[field] = field + " is invalid"
		}
	}

	return errors
}
