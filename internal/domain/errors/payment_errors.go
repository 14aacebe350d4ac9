package errors

import (
	"errors"
	"fmt"
)

// PaymentError represents errors raised by the payment lifecycle manager
// and the admission gate.
type PaymentError struct {
	Type      string
	Message   string
	PaymentID string
	Cause     error
}

func (e *PaymentError) Error() string {
	if e.PaymentID != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (payment: %s) - %v", e.Type, e.Message, e.PaymentID, e.Cause)
		}
		return fmt.Sprintf("%s: %s (payment: %s)", e.Type, e.Message, e.PaymentID)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s - %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Cause
}

// Payment error types
const (
	ErrTypeValidation             = "VALIDATION_FAILED"
	ErrTypeNotFound               = "NOT_FOUND"
	ErrTypeConflict               = "CONFLICT"
	ErrTypeInvalidTransition      = "INVALID_TRANSITION"
	ErrTypeRetryExhausted         = "RETRY_EXHAUSTED"
	ErrTypeExpired                = "EXPIRED"
	ErrTypeUnauthenticated        = "UNAUTHENTICATED"
	ErrTypeInvalidCredential      = "INVALID_CREDENTIAL"
	ErrTypeForbidden              = "FORBIDDEN"
	ErrTypeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	ErrTypeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrTypeTimeout                = "TIMEOUT"
	ErrTypeInternal               = "INTERNAL"
)

// NewValidationError creates a new validation error
func NewValidationError(message string) *PaymentError {
	return &PaymentError{
		Type:    ErrTypeValidation,
		Message: message,
	}
}

// NewNotFoundError creates a new payment not found error
func NewNotFoundError(lookupKey string) *PaymentError {
	return &PaymentError{
		Type:      ErrTypeNotFound,
		Message:   "payment not found",
		PaymentID: lookupKey,
	}
}

// NewConflictError creates a new duplicate identifier error
func NewConflictError(identifier string) *PaymentError {
	return &PaymentError{
		Type:    ErrTypeConflict,
		Message: fmt.Sprintf("payment identifier already in use: %s", identifier),
	}
}

// NewInvalidTransitionError creates a new illegal state move error
func NewInvalidTransitionError(paymentID, from, to string) *PaymentError {
	return &PaymentError{
		Type:      ErrTypeInvalidTransition,
		Message:   fmt.Sprintf("cannot transition from %s to %s", from, to),
		PaymentID: paymentID,
	}
}

// NewRetryExhaustedError creates a new retry budget exhausted error
func NewRetryExhaustedError(paymentID string, retryCount, maxRetries int) *PaymentError {
	return &PaymentError{
		Type:      ErrTypeRetryExhausted,
		Message:   fmt.Sprintf("retry budget exhausted (%d/%d)", retryCount, maxRetries),
		PaymentID: paymentID,
	}
}

// NewExpiredError creates a new payment expired error
func NewExpiredError(paymentID string) *PaymentError {
	return &PaymentError{
		Type:      ErrTypeExpired,
		Message:   "payment has expired",
		PaymentID: paymentID,
	}
}

// NewUnauthenticatedError creates a new missing credential error
func NewUnauthenticatedError(message string) *PaymentError {
	return &PaymentError{
		Type:    ErrTypeUnauthenticated,
		Message: message,
	}
}

// NewInvalidCredentialError creates a new credential verification error
func NewInvalidCredentialError(cause error) *PaymentError {
	return &PaymentError{
		Type:    ErrTypeInvalidCredential,
		Message: "invalid or expired credential",
		Cause:   cause,
	}
}

// NewForbiddenError creates a new ownership violation error
func NewForbiddenError(paymentID string) *PaymentError {
	return &PaymentError{
		Type:      ErrTypeForbidden,
		Message:   "caller does not own this resource",
		PaymentID: paymentID,
	}
}

// NewRateLimitExceededError creates a new quota exceeded error
func NewRateLimitExceededError(identity string) *PaymentError {
	return &PaymentError{
		Type:    ErrTypeRateLimitExceeded,
		Message: fmt.Sprintf("request quota exceeded for %s", identity),
	}
}

// NewConcurrentModificationError creates a new lost-update error, surfaced
// only after the internal retry budget is exhausted.
func NewConcurrentModificationError(paymentID string) *PaymentError {
	return &PaymentError{
		Type:      ErrTypeConcurrentModification,
		Message:   "payment was modified concurrently, retries exhausted",
		PaymentID: paymentID,
	}
}

// NewTimeoutError creates a new store deadline error
func NewTimeoutError(paymentID string, cause error) *PaymentError {
	return &PaymentError{
		Type:      ErrTypeTimeout,
		Message:   "store operation timed out",
		PaymentID: paymentID,
		Cause:     cause,
	}
}

// NewInternalError wraps an unexpected store or infrastructure failure
func NewInternalError(message string, cause error) *PaymentError {
	return &PaymentError{
		Type:    ErrTypeInternal,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf returns the PaymentError type of err, or ErrTypeInternal when err
// is not a PaymentError.
func TypeOf(err error) string {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Type
	}
	return ErrTypeInternal
}

// IsType reports whether err is a PaymentError of the given type.
func IsType(err error, errType string) bool {
	return TypeOf(err) == errType
}
