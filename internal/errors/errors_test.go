package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	plain := New(ErrCodeNotFound, "device not found")
	assert.Equal(t, "NOT_FOUND: device not found", plain.Error())

	cause := stderrors.New("disk full")
	wrapped := Wrap(cause, ErrCodeStoreUnavailable, "insert failed")
	assert.Equal(t, "STORE_UNAVAILABLE: insert failed: disk full", wrapped.Error())
	assert.Equal(t, cause, stderrors.Unwrap(wrapped))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewStoreError("insert", stderrors.New("locked"))))
	assert.False(t, IsRetryable(New(ErrCodeInvalidInput, "bad")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeConflict, GetCode(NewConflictError("device", "d1")))
	assert.Equal(t, ErrCodeInternalError, GetCode(stderrors.New("plain")))
	assert.True(t, IsCode(NewNotFoundError("message", "m1"), ErrCodeNotFound))
	assert.False(t, IsCode(NewNotFoundError("message", "m1"), ErrCodeConflict))
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("name", "blank"), http.StatusBadRequest},
		{NewAuthError("bad signature"), http.StatusUnauthorized},
		{NewNotFoundError("device", "d1"), http.StatusNotFound},
		{NewInvalidStateError("device", "connected", "pair"), http.StatusConflict},
		{NewConflictError("message", "m1"), http.StatusConflict},
		{NewExternalError("broadcast", stderrors.New("502")), http.StatusBadGateway},
		{NewStoreError("query", stderrors.New("locked")), http.StatusServiceUnavailable},
		{stderrors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusCode(tt.err), tt.err.Error())
	}
}

func TestToHTTPResponseFiltersSensitiveContext(t *testing.T) {
	err := New(ErrCodeInvalidState, "bad transition").
		WithUserMessage("Operation not allowed").
		WithContext("current_state", "connected").
		WithContext("credential", "qr-secret").
		WithContext("token", "abc").
		WithContext("secret", "xyz")

	resp := ToHTTPResponse(err, "req_123")
	assert.Equal(t, "req_123", resp.RequestID)
	assert.Equal(t, ErrCodeInvalidState, resp.Error.Code)
	assert.Equal(t, "Operation not allowed", resp.Error.Message)

	ctx, ok := resp.Error.Context.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "connected", ctx["current_state"])
	assert.NotContains(t, ctx, "credential")
	assert.NotContains(t, ctx, "token")
	assert.NotContains(t, ctx, "secret")
}

func TestToHTTPResponsePlainError(t *testing.T) {
	resp := ToHTTPResponse(stderrors.New("boom"), "")
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
	assert.Equal(t, "An internal error occurred", resp.Error.Message)
	assert.Nil(t, resp.Error.Context)
}
