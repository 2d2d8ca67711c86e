package errs

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("record not found")

	ErrPaymentNotFound = errors.New("payment not found")
	ErrExportNotFound  = errors.New("export not found")

	ErrValidation              = errors.New("validation error")
	ErrStaleUpdate             = errors.New("stale update")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrUnsupportedEvent = errors.New("unsupported event")
)

// ValidationError matches ErrValidation via errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}

	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidStatusTransitionError matches ErrInvalidStatusTransition via errors.Is.
type InvalidStatusTransitionError struct {
	From string
	To   string
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("status transition %s -> %s is not allowed", e.From, e.To)
}

func (e *InvalidStatusTransitionError) Unwrap() error {
	return ErrInvalidStatusTransition
}
