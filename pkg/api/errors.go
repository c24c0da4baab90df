package api

import (
	"encoding/json"
	"fmt"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeUpstreamError  ErrorType = "upstream_error"
	ErrorTypeServerError    ErrorType = "server_error"
)

// APIError represents a structured API error with type, param, and message.
// Upstream carries the raw provider error payload when the completion
// backend reported the failure.
type APIError struct {
	Type     ErrorType       `json:"type"`
	Param    string          `json:"param,omitempty"`
	Message  string          `json:"message"`
	Upstream json.RawMessage `json:"upstream,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the
// top-level error envelope.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewUpstreamError creates an APIError for completion backend failures,
// preserving the provider's error payload when available.
func NewUpstreamError(message string, payload json.RawMessage) *APIError {
	return &APIError{
		Type:     ErrorTypeUpstreamError,
		Message:  message,
		Upstream: payload,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}
