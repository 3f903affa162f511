package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"sintonia/internal/service"
)

const requestIDKey contextKey = "request_id"

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingMiddleware assigns a request id, attaches client details for audit
// entries and logs every request with a level chosen by status class:
// INFO for success, WARN for 4xx, ERROR for 5xx.
// Bodies are never logged; they carry passwords and clinical answers.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		ctx = service.WithRequestMeta(ctx, service.RequestMeta{
			IPAddress: getIP(r),
			UserAgent: r.UserAgent(),
		})

		slog.Debug("Incoming request",
			"request_id", requestID,
			"remote_ip", getIP(r),
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
		)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		var (
			level   slog.Level
			message string
		)
		switch {
		case wrapped.statusCode >= 500:
			level, message = slog.LevelError, "Request failed with error"
		case wrapped.statusCode >= 400:
			level, message = slog.LevelWarn, "Request failed"
		default:
			level, message = slog.LevelInfo, "Request completed"
		}

		slog.Log(ctx, level, message,
			"request_id", requestID,
			"remote_ip", getIP(r),
			"user_agent", r.UserAgent(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// GetRequestID returns the id assigned by LoggingMiddleware
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
