package errors

import (
	"fmt"
	"net/http"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeInvalidInput, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewInvalidStateError creates an error for a transition that is not legal
// in the entity's current state
func NewInvalidStateError(resource, current, operation string) *AppError {
	return New(ErrCodeInvalidState, fmt.Sprintf("%s cannot %s while %s", resource, operation, current)).
		WithContext("resource", resource).
		WithContext("current_state", current).
		WithContext("operation", operation).
		WithUserMessage(fmt.Sprintf("Operation not allowed in current %s state", resource))
}

// NewConflictError creates an error for a conditional write that lost a race
func NewConflictError(resource, identifier string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("%s was modified concurrently", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage("The record changed underneath this request, reload and retry")
}

// NewStoreError wraps a persistence failure. Retry policy belongs to the
// caller, so the error is marked retryable but never retried internally.
func NewStoreError(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeStoreUnavailable, fmt.Sprintf("store %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Storage temporarily unavailable")
}

// NewExternalError wraps a failure reported by the session backend
func NewExternalError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeExternalFailure, fmt.Sprintf("session backend %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("WhatsApp backend reported a failure")
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewAuthError creates an authentication error
func NewAuthError(reason string) *AppError {
	return New(ErrCodeAuthentication, "authentication failed").
		WithContext("reason", reason).
		WithUserMessage("Authentication failed")
}

// HTTP helpers

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidConfig, ErrCodeMissingConfig:
		return http.StatusBadRequest
	case ErrCodeAuthentication:
		return http.StatusUnauthorized
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidState, ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeExternalFailure:
		return http.StatusBadGateway
	case ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorResponse is the standardized HTTP error envelope
type HTTPErrorResponse struct {
	Error struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Context interface{} `json:"context,omitempty"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an error to a standardized HTTP response
func ToHTTPResponse(err error, requestID string) HTTPErrorResponse {
	response := HTTPErrorResponse{
		RequestID: requestID,
	}

	if appErr, ok := err.(*AppError); ok {
		response.Error.Code = appErr.Code
		response.Error.Message = GetUserMessage(err)
		if len(appErr.Context) > 0 {
			// Only include non-sensitive context in HTTP responses
			publicContext := make(map[string]interface{})
			for k, v := range appErr.Context {
				if k != "credential" && k != "token" && k != "secret" {
					publicContext[k] = v
				}
			}
			if len(publicContext) > 0 {
				response.Error.Context = publicContext
			}
		}
	} else {
		response.Error.Code = ErrCodeInternalError
		response.Error.Message = GetUserMessage(err)
	}

	return response
}
