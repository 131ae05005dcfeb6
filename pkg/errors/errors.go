package errors

import (
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork            ErrorType = "network"
	ErrorTypeRateLimit          ErrorType = "rate_limit"
	ErrorTypeAuth               ErrorType = "auth"
	ErrorTypeParsing            ErrorType = "parsing"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeServerError        ErrorType = "server_error"
	ErrorTypeEntityNotSupported ErrorType = "entity_not_supported"
	ErrorTypeInvalidQuery       ErrorType = "invalid_query"
	ErrorTypeUnknown            ErrorType = "unknown"
)

// Error represents a catalog API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error (code %d): %s: %v", e.Type, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a typed error without a cause.
func New(errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Message: message, Code: code}
}

// Wrap returns a typed error carrying err as its cause.
func Wrap(err error, errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Message: message, Code: code, Err: err}
}

// EntityNotSupported is returned when a query names a class the catalog
// does not serve.
func EntityNotSupported(entity string) *Error {
	return &Error{
		Type:    ErrorTypeEntityNotSupported,
		Message: fmt.Sprintf("entity %q is not supported", entity),
		Code:    http.StatusBadRequest,
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case http.StatusTooManyRequests:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return statusCode >= 500
	}
}

// HTTPStatus maps an error type to the status code a proxy should answer with
// when the upstream did not supply one.
func HTTPStatus(e *Error) int {
	if e.Code >= 400 {
		return e.Code
	}
	switch e.Type {
	case ErrorTypeEntityNotSupported, ErrorTypeInvalidQuery:
		return http.StatusBadRequest
	case ErrorTypeAuth:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
