package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	signatureHeader = "X-Webhook-Signature"
	timestampHeader = "X-Webhook-Timestamp"
)

// verifyCallback authenticates a gateway callback. The signature is
// sha256=<hex> over timestamp + "." + body, and the timestamp must be
// within the configured skew window to defeat replay.
func (s *Server) verifyCallback(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	secret := s.cfg.Server.WebhookSecret
	if secret == "" {
		if os.Getenv("WABROADCAST_ENV") == "production" {
			return nil, fmt.Errorf("webhook secret is required in production mode")
		}
		return body, nil
	}

	sig := r.Header.Get(signatureHeader)
	if sig == "" {
		return nil, fmt.Errorf("missing signature header: %s", signatureHeader)
	}
	parts := strings.SplitN(sig, "=", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "sha256" {
		return nil, fmt.Errorf("invalid signature format in header %s", signatureHeader)
	}

	ts := r.Header.Get(timestampHeader)
	if ts == "" {
		return nil, fmt.Errorf("missing timestamp header: %s", timestampHeader)
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp header: %s", timestampHeader)
	}
	skew := time.Since(time.Unix(unix, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > time.Duration(s.cfg.Server.WebhookMaxSkewSec)*time.Second {
		return nil, fmt.Errorf("timestamp outside allowed skew")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(parts[1])) {
		return nil, fmt.Errorf("signature mismatch")
	}

	return body, nil
}
