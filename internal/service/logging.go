package service

import (
	"wabroadcast/internal/privacy"
)

// Standard field names. Use these exact names for consistency across all
// logging calls.
const (
	// Core identifiers
	LogFieldDeviceID  = "device_id"
	LogFieldMessageID = "message_id"
	LogFieldUserID    = "user_id"
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	// State machine fields
	LogFieldEvent     = "event"
	LogFieldState     = "state"
	LogFieldFromState = "from_state"
	LogFieldToState   = "to_state"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	// Network and external services
	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	// Error and debugging
	LogFieldErrorCode  = "error_code"
	LogFieldErrorType  = "error_type"
	LogFieldRetryCount = "retry_count"
	LogFieldAttempt    = "attempt"
)

// SanitizePhoneNumber masks phone numbers for log output.
func SanitizePhoneNumber(phone string) string {
	return privacy.MaskPhoneNumber(phone)
}

// SanitizeCredential masks pairing credentials for log output; the value
// is a login secret and must never appear in logs.
func SanitizeCredential(credential string) string {
	return privacy.MaskCredential(credential)
}
