package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/metrics"

	"github.com/rs/zerolog"
)

// GetClientIP extracts the real client IP address from the request,
// checking X-Forwarded-For and X-Real-IP headers for reverse proxy setups.
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}

// accessLog collects fields discovered by inner handlers. Authentication
// runs inside the logging middleware, so the principal is reported back
// through this holder rather than the request context.
type accessLog struct {
	userID int64
}

type accessLogKey struct{}

// AnnotateUser records the authenticated user on the current access log entry
func AnnotateUser(ctx context.Context, userID int64) {
	if al, ok := ctx.Value(accessLogKey{}).(*accessLog); ok {
		al.userID = userID
	}
}

// LoggingMiddleware returns a middleware that logs HTTP request details with structured logging
func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			al := &accessLog{}
			r = r.WithContext(context.WithValue(r.Context(), accessLogKey{}, al))

			next.ServeHTTP(rw, r)

			duration := time.Since(start)

			var logEvent *zerolog.Event
			switch {
			case rw.statusCode >= 500:
				logEvent = logger.Error()
			case rw.statusCode >= 400:
				logEvent = logger.Warn()
			default:
				logEvent = logger.Info()
			}

			logEvent.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Int("status", rw.statusCode).
				Dur("duration", duration).
				Str("client_ip", GetClientIP(r)).
				Str("user_agent", r.UserAgent()).
				Int64("bytes_written", rw.bytesWritten).
				Str("proto", r.Proto)

			if reqID := RequestIDFromContext(r.Context()); reqID != "" {
				logEvent.Str("request_id", reqID)
			}
			if contentType := r.Header.Get("Content-Type"); contentType != "" {
				logEvent.Str("content_type", contentType)
			}
			if al.userID != 0 {
				logEvent.Int64("user_id", al.userID)
			}

			if logger.GetLevel() == zerolog.DebugLevel {
				// Authorization is never logged
				headers := make(map[string]string)
				for name, values := range r.Header {
					if strings.EqualFold(name, "Authorization") {
						continue
					}
					headers[name] = strings.Join(values, ", ")
				}
				logEvent.Interface("headers", headers)
			}

			logEvent.Msgf("Incoming HTTP request: %s %s %d", r.Method, r.URL.Path, rw.statusCode)

			normalizedPath := metrics.NormalizePath(r.URL.Path)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, normalizedPath, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration.Seconds())
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code and bytes written
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
