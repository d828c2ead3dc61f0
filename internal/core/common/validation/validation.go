package validation

import (
	"errors"
	"fmt"
	"sort"

	ozzo "github.com/go-ozzo/ozzo-validation"

	"github.com/frahmantamala/identity-service/internal"
)

const blankMessage = "cannot be blank"

// Check converts the result of an ozzo-validation run into the service's
// validation AppError, one entry per failing field in field order.
func Check(err error) error {
	if err == nil {
		return nil
	}

	var internalErr ozzo.InternalError
	if errors.As(err, &internalErr) {
		return internal.NewInternalError("validation could not run", err)
	}

	var fieldErrs ozzo.Errors
	if !errors.As(err, &fieldErrs) {
		return internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	fields := make([]string, 0, len(fieldErrs))
	for field := range fieldErrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	result := make([]internal.ValidationError, 0, len(fields))
	for _, field := range fields {
		msg := fieldErrs[field].Error()
		code := internal.ErrCodeInvalidField
		if msg == blankMessage {
			code = internal.ErrCodeMissingField
		}
		result = append(result, internal.ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s %s", field, msg),
			Code:    string(code),
		})
	}
	return internal.NewValidationFieldErrors(result)
}

// Required reports a single missing field.
func Required(field string) error {
	return internal.NewValidationFieldError(field, fmt.Sprintf("%s %s", field, blankMessage), internal.ErrCodeMissingField)
}
