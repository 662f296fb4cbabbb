package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wabroadcast/internal/httputil"
	"wabroadcast/internal/metrics"
	"wabroadcast/internal/service"
	"wabroadcast/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ObservabilityMiddleware adds metrics collection and tracing to HTTP requests
func ObservabilityMiddleware(logger *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.WithOtelTracing(r.Context(), "http_request")
			defer span.End()

			requestID := tracing.GenerateRequestID()
			ctx = tracing.WithRequestID(ctx, requestID)
			ctx = tracing.WithStartTime(ctx, time.Now())

			r = r.WithContext(ctx)

			tracing.AddSpanAttributes(ctx,
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.String()),
				attribute.String("http.route", r.URL.Path),
				attribute.String("user_agent.original", r.Header.Get("User-Agent")),
				attribute.String("client.address", httputil.GetClientIP(r)),
			)

			requestInfo := tracing.GetRequestInfo(ctx)

			wrapper := &responseWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			logger.WithFields(logrus.Fields{
				service.LogFieldRequestID: requestInfo.RequestID,
				service.LogFieldTraceID:   requestInfo.TraceID,
				service.LogFieldMethod:    r.Method,
				service.LogFieldURL:       r.URL.Path,
				service.LogFieldRemoteIP:  httputil.GetClientIP(r),
				service.LogFieldUserAgent: r.Header.Get("User-Agent"),
			}).Debug("HTTP request started")

			metrics.IncrementCounter("http_requests_total", map[string]string{
				"method":   r.Method,
				"endpoint": r.URL.Path,
			}, "Total HTTP requests")

			metrics.IncrementCounter("http_requests_active", nil, "Currently active HTTP requests")
			defer func() {
				metrics.AddToCounter("http_requests_active", -1, nil, "Currently active HTTP requests")
			}()

			next.ServeHTTP(wrapper, r)

			duration := tracing.Duration(ctx)

			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("http.response.size", wrapper.responseSize),
				attribute.Int64("http.request.duration_ms", duration.Milliseconds()),
			)

			if wrapper.statusCode >= 400 {
				tracing.SetSpanStatus(ctx, codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
			} else {
				tracing.SetSpanStatus(ctx, codes.Ok, "")
			}

			metrics.RecordTimer("http_request_duration", duration, map[string]string{
				"method":      r.Method,
				"endpoint":    r.URL.Path,
				"status_code": strconv.Itoa(wrapper.statusCode),
			}, "HTTP request duration")

			metrics.IncrementCounter("http_responses_total", map[string]string{
				"method":      r.Method,
				"endpoint":    r.URL.Path,
				"status_code": strconv.Itoa(wrapper.statusCode),
			}, "HTTP responses by status code")

			logLevel := logrus.InfoLevel
			if wrapper.statusCode >= 400 && wrapper.statusCode < 500 {
				logLevel = logrus.WarnLevel
			} else if wrapper.statusCode >= 500 {
				logLevel = logrus.ErrorLevel
			}

			logger.WithFields(logrus.Fields{
				service.LogFieldRequestID:  requestInfo.RequestID,
				service.LogFieldTraceID:    requestInfo.TraceID,
				service.LogFieldMethod:     r.Method,
				service.LogFieldURL:        r.URL.Path,
				service.LogFieldStatusCode: wrapper.statusCode,
				service.LogFieldDuration:   duration.Milliseconds(),
				service.LogFieldRemoteIP:   httputil.GetClientIP(r),
				service.LogFieldSize:       wrapper.responseSize,
			}).Log(logLevel, "HTTP request completed")
		})
	}
}

// CallbackObservabilityMiddleware adds specific observability for the
// dispatch result callback endpoint posted by the sending gateway.
func CallbackObservabilityMiddleware(logger *logrus.Logger, callbackType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			ctx, span := tracing.WithOtelTracing(r.Context(), "callback_request")
			defer span.End()
			r = r.WithContext(ctx)

			tracing.AddSpanAttributes(ctx,
				attribute.String("callback.type", callbackType),
				attribute.String("http.method", r.Method),
				attribute.String("client.address", httputil.GetClientIP(r)),
				attribute.Int64("http.request.content_length", r.ContentLength),
			)

			metrics.IncrementCounter("callback_requests_total", map[string]string{
				"type": callbackType,
			}, "Total callback requests by type")

			wrapper := &responseWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapper, r)

			processingTime := time.Since(startTime)

			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("callback.processing_duration_ms", processingTime.Milliseconds()),
			)

			if wrapper.statusCode >= 400 {
				tracing.SetSpanStatus(ctx, codes.Error, fmt.Sprintf("Callback failed with HTTP %d", wrapper.statusCode))
				metrics.IncrementCounter("callback_errors_total", map[string]string{
					"type":        callbackType,
					"status_code": strconv.Itoa(wrapper.statusCode),
				}, "Callback processing errors")
			} else {
				tracing.SetSpanStatus(ctx, codes.Ok, "Callback processed successfully")
				metrics.IncrementCounter("callback_success_total", map[string]string{
					"type": callbackType,
				}, "Successful callback processing")
			}

			metrics.RecordTimer("callback_processing_duration", processingTime, map[string]string{
				"type":        callbackType,
				"status_code": strconv.Itoa(wrapper.statusCode),
			}, "Callback processing duration")

			logLevel := logrus.InfoLevel
			if wrapper.statusCode >= 400 {
				logLevel = logrus.ErrorLevel
			}

			logger.WithFields(logrus.Fields{
				service.LogFieldService:    "callback",
				service.LogFieldComponent:  callbackType,
				service.LogFieldStatusCode: wrapper.statusCode,
				service.LogFieldDuration:   processingTime.Milliseconds(),
				service.LogFieldRemoteIP:   httputil.GetClientIP(r),
			}).Log(logLevel, "Callback request completed")
		})
	}
}

// responseWrapper captures response metrics
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
}

func (rw *responseWrapper) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWrapper) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.responseSize += int64(n)
	return n, err
}
