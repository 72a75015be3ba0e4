package models

import (
	"errors"
	"fmt"
)

// Error kinds. Wrapped errors keep the kind reachable through errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrStorageConnection = errors.New("storage connection error")
	ErrStorageQuery      = errors.New("storage query error")
	ErrModelInvocation   = errors.New("model invocation error")
	ErrDataIntegrity     = errors.New("data integrity error")
)

// ValidationError reports missing or invalid identifiers, mode or input.
func ValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StorageConnectionError reports that the store could not be opened or migrated.
func StorageConnectionError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageConnection, op, err)
}

// StorageQueryError reports a read or write that failed after retries.
func StorageQueryError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageQuery, op, err)
}

// ModelInvocationError reports a failed language model call.
func ModelInvocationError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrModelInvocation, op, err)
}

// DataIntegrityError reports stored data that could not be decoded.
func DataIntegrityError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDataIntegrity, op, err)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
