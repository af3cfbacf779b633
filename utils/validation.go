package utils

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is the singleton validator instance
	validate *validator.Validate

	// emailRegex is a simple email validation regex
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

func init() {
	validate = validator.New()
	// Report fields by their JSON names, as clients see them.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// ValidateStruct validates a struct using go-playground/validator
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}
	return nil
}

// ValidationError wraps validation errors as field to messages
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// Add appends a message for field
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	out := &ValidationError{Message: "Validation failed"}
	for _, err := range errs {
		field := err.Field()

		switch err.Tag() {
		case "required":
			out.Add(field, "This field is required.")
		case "email":
			out.Add(field, "Enter a valid email address.")
		case "min":
			out.Add(field, fmt.Sprintf("Ensure this field has at least %s characters.", err.Param()))
		case "max":
			out.Add(field, fmt.Sprintf("Ensure this field has no more than %s characters.", err.Param()))
		case "eqfield":
			out.Add("non_field_errors", "Passwords do not match.")
		case "oneof":
			out.Add(field, fmt.Sprintf("Must be one of: %s.", err.Param()))
		default:
			out.Add(field, fmt.Sprintf("Failed on the '%s' rule.", err.Tag()))
		}
	}
	return out
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// GetValidationFields extracts field errors from a ValidationError
func GetValidationFields(err error) map[string][]string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}

// ValidateEmail validates that a string is a valid email
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}
