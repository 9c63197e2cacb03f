package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report violations against the json field names the client actually
	// sent, not the Go struct field names.
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// GetValidator returns the validator instance
func GetValidator() *validator.Validate {
	return validate
}

// ValidateStruct validates a struct
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// Messages flattens validation errors into one human-readable message per
// offending field, in declaration order, so the caller sees every problem
// at once.
func Messages(err error) []string {
	var messages []string

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldError := range validationErrors {
			messages = append(messages, message(fieldError))
		}
	}

	return messages
}

func message(fieldError validator.FieldError) string {
	field := fieldError.Field()

	switch fieldError.Tag() {
	case "required":
		return fmt.Sprintf("the field %s is required", field)
	case "email":
		return fmt.Sprintf("the field %s must be a valid email address", field)
	case "uuid":
		return fmt.Sprintf("the field %s must be a valid UUID", field)
	case "min":
		return fmt.Sprintf("the field %s must be at least %s characters long", field, fieldError.Param())
	case "max":
		return fmt.Sprintf("the field %s must be at most %s characters long", field, fieldError.Param())
	case "oneof":
		return fmt.Sprintf("the field %s must be one of: %s", field, fieldError.Param())
	default:
		return fmt.Sprintf("the field %s is invalid", field)
	}
}
