package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
)

// contextKey is a package-local type so request-scoped values cannot
// collide with keys set by other packages.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	startTimeKey contextKey = "start_time"
)

// RequestInfo is the correlation snapshot attached to every log line for
// a request. The trace and span IDs come from the active OpenTelemetry
// span; the request ID is our own and survives even with tracing disabled.
type RequestInfo struct {
	RequestID string    `json:"request_id"`
	TraceID   string    `json:"trace_id"`
	SpanID    string    `json:"span_id"`
	StartTime time.Time `json:"start_time"`
}

// GenerateRequestID returns a fresh request identifier. Randomness failure
// falls back to a timestamp so a request is never left without an ID.
func GenerateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("req_%s", hex.EncodeToString(bytes))
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey, startTime)
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func GetStartTime(ctx context.Context) time.Time {
	if startTime, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return startTime
	}
	return time.Time{}
}

// GetRequestInfo assembles the correlation snapshot for the request. With
// no recording span the trace and span IDs are empty strings.
func GetRequestInfo(ctx context.Context) *RequestInfo {
	info := &RequestInfo{
		RequestID: GetRequestID(ctx),
		StartTime: GetStartTime(ctx),
	}
	if sc := oteltrace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		info.TraceID = sc.TraceID().String()
		info.SpanID = sc.SpanID().String()
	}
	return info
}

// Duration reports how long the request has been running, or zero when no
// start time was recorded on the context.
func Duration(ctx context.Context) time.Duration {
	startTime := GetStartTime(ctx)
	if startTime.IsZero() {
		return 0
	}
	return time.Since(startTime)
}
