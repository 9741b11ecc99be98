package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input or business-rule violation
	ErrCatNotFound   ErrorCategory = "not_found"  // Missing or owned by another organization
	ErrCatForbidden  ErrorCategory = "forbidden"  // Role lacks permission
	ErrCatAuth       ErrorCategory = "auth"       // No caller identity
	ErrCatConflict   ErrorCategory = "conflict"   // Concurrent modification
	ErrCatInternal   ErrorCategory = "internal"   // Persistence or unexpected failure
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     code,
		Message:  message,
	}
}

// ErrNotFound creates a not found error. The same error is returned for
// records that exist in another organization.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// ErrForbidden creates a permission error.
func ErrForbidden(message string) *DomainError {
	return &DomainError{
		Category: ErrCatForbidden,
		Code:     CodeForbidden,
		Message:  message,
	}
}

// ErrAuth creates an authentication error.
func ErrAuth(message string) *DomainError {
	return &DomainError{
		Category: ErrCatAuth,
		Code:     "AUTH_FAILED",
		Message:  message,
	}
}

// ErrConflict creates a retryable conflict error.
func ErrConflict(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatConflict,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrInternal creates an internal error.
func ErrInternal(message string, cause error) *DomainError {
	return &DomainError{
		Category: ErrCatInternal,
		Code:     "INTERNAL",
		Message:  message,
		Cause:    cause,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeNotFound  = "NOT_FOUND"
	CodeForbidden = "FORBIDDEN"

	// Validation error codes
	CodeInvalidInput       = "INVALID_INPUT"
	CodeTemplateArchived   = "TEMPLATE_ARCHIVED"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeCriterionInUse     = "CRITERION_IN_USE"
	CodeTemplateInUse      = "TEMPLATE_IN_USE"
	CodeNotPublishable     = "NOT_PUBLISHABLE"
	CodeDefaultNotActive   = "DEFAULT_NOT_ACTIVE"
	CodeGroupMismatch      = "GROUP_MISMATCH"
	CodeUnknownType        = "UNKNOWN_CRITERIA_TYPE"
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeInvalidScores      = "INVALID_SCORES"
	CodeNoPublishedVersion = "NO_PUBLISHED_VERSION"

	// Conflict error codes
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeDuplicate       = "DUPLICATE"
)
