package errors

import (
	"errors"
	"fmt"
)

var (
	// Payment errors
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrInvalidTransition       = errors.New("invalid state transition")
	ErrVersionConflict         = errors.New("version conflict")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrRetriesExhausted        = errors.New("retries exhausted")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// Outbox errors
	ErrPublishFailure = errors.New("publish failure")
	ErrEntryNotFound  = errors.New("outbox entry not found")

	// Lock errors
	ErrLockUnavailable = errors.New("lock unavailable")
	ErrLockNotHeld     = errors.New("lock not held")

	// Gateway errors
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment rejected by gateway")
	ErrGatewayTimeout     = errors.New("gateway request timeout")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
