package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"wabroadcast/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "0123456789abcdef0123456789abcdef"

func newSecurityServer(secret string) *Server {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &models.Config{}
	cfg.Server.WebhookSecret = secret
	cfg.Server.WebhookMaxSkewSec = 300

	return &Server{cfg: cfg, logger: logger}
}

func signRequest(t *testing.T, req *http.Request, secret, body string, at time.Time) {
	t.Helper()

	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + body))
	req.Header.Set(signatureHeader, "sha256="+hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set(timestampHeader, ts)
}

func callbackRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/callbacks/devices/d1/events", bytes.NewBufferString(body))
}

func TestVerifyCallbackValidSignature(t *testing.T) {
	s := newSecurityServer(testWebhookSecret)
	body := `{"kind":"success","payload":"+15551234567"}`

	req := callbackRequest(body)
	signRequest(t, req, testWebhookSecret, body, time.Now())

	got, err := s.verifyCallback(req)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestVerifyCallbackWrongSecret(t *testing.T) {
	s := newSecurityServer(testWebhookSecret)
	body := `{"kind":"success"}`

	req := callbackRequest(body)
	signRequest(t, req, "another-secret-entirely-32-chars", body, time.Now())

	_, err := s.verifyCallback(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestVerifyCallbackTamperedBody(t *testing.T) {
	s := newSecurityServer(testWebhookSecret)

	req := callbackRequest(`{"kind":"failure"}`)
	signRequest(t, req, testWebhookSecret, `{"kind":"success"}`, time.Now())

	_, err := s.verifyCallback(req)
	assert.Error(t, err)
}

func TestVerifyCallbackMissingHeaders(t *testing.T) {
	s := newSecurityServer(testWebhookSecret)

	_, err := s.verifyCallback(callbackRequest(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing signature header")

	req := callbackRequest(`{}`)
	req.Header.Set(signatureHeader, "sha256="+hex.EncodeToString(make([]byte, 32)))
	_, err = s.verifyCallback(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing timestamp header")
}

func TestVerifyCallbackBadSignatureFormat(t *testing.T) {
	s := newSecurityServer(testWebhookSecret)

	for _, sig := range []string{"deadbeef", "md5=deadbeef"} {
		req := callbackRequest(`{}`)
		req.Header.Set(signatureHeader, sig)
		req.Header.Set(timestampHeader, fmt.Sprintf("%d", time.Now().Unix()))
		_, err := s.verifyCallback(req)
		require.Error(t, err, sig)
		assert.Contains(t, err.Error(), "invalid signature format")
	}
}

func TestVerifyCallbackRejectsStaleTimestamp(t *testing.T) {
	s := newSecurityServer(testWebhookSecret)
	body := `{"kind":"success"}`

	req := callbackRequest(body)
	signRequest(t, req, testWebhookSecret, body, time.Now().Add(-time.Hour))

	_, err := s.verifyCallback(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skew")
}

func TestVerifyCallbackRejectsBadTimestamp(t *testing.T) {
	s := newSecurityServer(testWebhookSecret)

	req := callbackRequest(`{}`)
	req.Header.Set(signatureHeader, "sha256="+hex.EncodeToString(make([]byte, 32)))
	req.Header.Set(timestampHeader, "not-a-number")

	_, err := s.verifyCallback(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timestamp")
}

func TestVerifyCallbackNoSecretAllowsInDev(t *testing.T) {
	s := newSecurityServer("")
	body := `{"kind":"success"}`

	got, err := s.verifyCallback(callbackRequest(body))
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestVerifyCallbackNoSecretFailsInProduction(t *testing.T) {
	t.Setenv("WABROADCAST_ENV", "production")
	s := newSecurityServer("")

	_, err := s.verifyCallback(callbackRequest(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required in production")
}
