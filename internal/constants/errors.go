package constants

import "net/http"

// APIError represents a standardized API error with code, message, and HTTP status.
// Use these predefined errors for consistent API responses across the application.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// WithMessage returns a copy of the APIError with a custom message.
// Useful for validation errors or other dynamic messages.
func (e APIError) WithMessage(message string) APIError {
	return APIError{
		Code:    e.Code,
		Message: message,
		Status:  e.Status,
	}
}

// Common errors - shared across multiple modules
var (
	ErrInvalidRequestBody = APIError{
		Code:    CodeInvalidRequest,
		Message: MsgInvalidRequestBody,
		Status:  http.StatusBadRequest,
	}
	ErrInternalError = APIError{
		Code:    CodeInternalError,
		Message: MsgInternalError,
		Status:  http.StatusInternalServerError,
	}
	ErrNotFound = APIError{
		Code:    CodeNotFound,
		Message: MsgNotFound,
		Status:  http.StatusNotFound,
	}
	ErrMethodNotAllowed = APIError{
		Code:    CodeMethodNotAllowed,
		Message: MsgMethodNotAllowed,
		Status:  http.StatusMethodNotAllowed,
	}
	ErrBodyTooLarge = APIError{
		Code:    CodeBodyTooLarge,
		Message: MsgBodyTooLarge,
		Status:  http.StatusRequestEntityTooLarge,
	}
)

var (
	ErrQuotaExhausted = APIError{
		Code:    CodeQuotaExhausted,
		Message: MsgQuotaExhausted,
		Status:  http.StatusTooManyRequests,
	}
	ErrUpstreamFailure = APIError{
		Code:    CodeUpstreamFailure,
		Message: MsgUpstreamFailure,
		Status:  http.StatusBadGateway,
	}
	ErrUpstreamUnavailable = APIError{
		Code:    CodeUpstreamUnavailable,
		Message: MsgUpstreamUnavailable,
		Status:  http.StatusServiceUnavailable,
	}
	ErrLinkNotFound = APIError{
		Code:    CodeLinkNotFound,
		Message: MsgNotFound,
		Status:  http.StatusNotFound,
	}
)
