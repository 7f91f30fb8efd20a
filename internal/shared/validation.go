package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pms-suite/pms/internal/platform/httpx"
)

var validate = validator.New()

// ValidateStruct checks struct tags and wraps failures in httpx.ErrValidation.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return &ValidationError{Fields: FieldErrors(err), msg: strings.Join(msgs, "; ")}
}

// ValidationError carries per-field messages for form re-rendering.
type ValidationError struct {
	Fields map[string]string
	msg    string
}

func (e *ValidationError) Error() string {
	return httpx.ErrValidation.Error() + ": " + e.msg
}

// Unwrap lets errors.Is match httpx.ErrValidation.
func (e *ValidationError) Unwrap() error {
	return httpx.ErrValidation
}

// Invalid builds a single-field validation error.
func Invalid(field, message string) error {
	return &ValidationError{Fields: map[string]string{field: message}, msg: message}
}

// FieldErrors maps validation failures to field names. Non-validation errors
// yield an empty map.
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var ve *ValidationError
	if errors.As(err, &ve) {
		for k, v := range ve.Fields {
			out[k] = v
		}
		return out
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			out[fe.Field()] = fieldMessage(fe)
		}
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "hexcolor":
		return field + " must be a hex colour"
	case "gt", "gte":
		return field + " must be set"
	default:
		return field + " is invalid"
	}
}
