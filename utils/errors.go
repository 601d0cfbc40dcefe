// Package utils contains error constructors shared by the configuration layers.
package utils

import (
	"fmt"

	"github.com/pkg/errors"
)

// NewConfigValidationError returns a config validation error occurring at a given path.
func NewConfigValidationError(path string, err error) error {
	return errors.Wrapf(err, "error validating %q", path)
}

type fieldRequiredError struct {
	field string
}

func (e *fieldRequiredError) Error() string {
	return fmt.Sprintf("%q is required", e.field)
}

// NewConfigValidationFieldRequiredError returns a config validation error for a field missing at a
// given path.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return NewConfigValidationError(path, &fieldRequiredError{field: field})
}

// GetFieldFromFieldRequiredError returns the name of the missing field of an error created by
// NewConfigValidationFieldRequiredError. It returns the empty string for any other error.
func GetFieldFromFieldRequiredError(err error) string {
	var fieldErr *fieldRequiredError
	if errors.As(err, &fieldErr) {
		return fieldErr.field
	}
	return ""
}

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError(expected, actual interface{}) error {
	return errors.Errorf("expected %T but got %T", expected, actual)
}
