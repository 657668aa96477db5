package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrValidation          = NewDomainError("VALIDATION_FAILED", "Payload failed schema validation")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Principal has no active tenant binding")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// FieldError carries field-level detail for a validation failure.
// errors.Is(err, ErrValidation) matches any FieldError.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is reports whether this error matches ErrValidation
func (e *FieldError) Is(target error) bool {
	return target == ErrValidation
}

// NewFieldError creates a validation error scoped to a single field
func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}
