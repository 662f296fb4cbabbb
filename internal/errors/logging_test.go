package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T, log func(l *Logger)) map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)
	log(logger)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogErrorIncludesStructuredContext(t *testing.T) {
	err := NewConflictError("device", "d1")

	entry := captureLog(t, func(l *Logger) {
		l.LogError(err, "transition lost race")
	})

	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "transition lost race", entry["msg"])
	assert.Equal(t, string(ErrCodeConflict), entry["error_code"])
	assert.Equal(t, "device", entry["resource"])
	assert.Equal(t, "d1", entry["identifier"])
}

func TestLogRetryableErrorUsesWarnLevel(t *testing.T) {
	retryable := NewStoreError("insert", stderrors.New("locked"))
	entry := captureLog(t, func(l *Logger) {
		l.LogRetryableError(retryable, "store hiccup")
	})
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, true, entry["retryable"])

	fatal := New(ErrCodeInvalidConfig, "bad config")
	entry = captureLog(t, func(l *Logger) {
		l.LogRetryableError(fatal, "config rejected")
	})
	assert.Equal(t, "error", entry["level"])
}
