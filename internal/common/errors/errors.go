// Package errors provides standardized error handling for the signup gateway.
//
// Every failure that can reach the embedded page is normalized into a
// StandardError carrying a human-readable Dutch message; technical detail
// stays in Details and is logged, never shown to the end user.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeAuthFailed       ErrorCode = "AUTH_FAILED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeTransportFailed  ErrorCode = "TRANSPORT_FAILED"
	ErrCodeBackendFailed    ErrorCode = "BACKEND_FAILED"
	ErrCodeMalformedData    ErrorCode = "MALFORMED_DATA"
	ErrCodeMissingUsername  ErrorCode = "MISSING_USERNAME"
	ErrCodeMutationPending  ErrorCode = "MUTATION_PENDING"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"` // user-presentable, Dutch
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// AsStandard extracts a *StandardError from err, or nil if err carries none.
func AsStandard(err error) *StandardError {
	var se *StandardError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// ==========================
// 2. Error Constructors
// ==========================

// NewAuthFailedError covers 401 and 403 responses from the backend.
func NewAuthFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthFailed,
		Message:   "Je bent niet gemachtigd om deze actie uit te voeren.",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError covers 404 responses from the backend.
func NewNotFoundError(resource string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "De gevraagde gegevens zijn niet gevonden.",
		Details:   fmt.Sprintf("resource: %s", resource),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError covers 422 responses; detail carries the backend
// detail payload so the page can show field-level feedback.
func NewValidationFailedError(detail interface{}) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "De ingevoerde gegevens zijn ongeldig.",
		Retryable: false,
		Metadata:  map[string]interface{}{"detail": detail},
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportFailedError covers network-level failures before any HTTP
// status was received.
func NewTransportFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailed,
		Message:   "Er is iets misgegaan. Probeer het later opnieuw.",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBackendFailedError covers unexpected non-2xx statuses.
func NewBackendFailedError(status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBackendFailed,
		Message:   "Er is iets misgegaan. Probeer het later opnieuw.",
		Details:   fmt.Sprintf("status %d: %s", status, body),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedDataError covers local data-shape failures (unreadable
// response bodies, non-array payloads).
func NewMalformedDataError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedData,
		Message:   "De ontvangen gegevens konden niet worden verwerkt.",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingUsernameError is returned when an operation requires a
// logged-in user and none is present.
func NewMissingUsernameError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingUsername,
		Message:   "Log eerst in om je aan te melden.",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMutationPendingError guards a row whose subscribe/unsubscribe call is
// still outstanding (double-click protection).
func NewMutationPendingError(activityID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMutationPending,
		Message:   "Deze aanmelding wordt al verwerkt, een ogenblik geduld.",
		Details:   fmt.Sprintf("activityId: %s", activityID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
