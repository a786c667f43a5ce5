package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AnnotateUser(r.Context(), 42)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"forbidden"}`))
	})
	wrapped := RequestIDMiddleware(LoggingMiddleware(logger)(handler))

	req := httptest.NewRequest(http.MethodPut, "/api/admin/reports/7/resolve?x=1", nil)
	req.Header.Set("X-Request-ID", "req-123")
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "PUT", entry["method"])
	assert.Equal(t, "/api/admin/reports/7/resolve", entry["path"])
	assert.Equal(t, "x=1", entry["query"])
	assert.EqualValues(t, 403, entry["status"])
	assert.EqualValues(t, 42, entry["user_id"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.EqualValues(t, len(`{"error":"forbidden"}`), entry["bytes_written"])
	assert.NotContains(t, buf.String(), "Bearer secret")
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	for status, level := range map[int]string{200: "info", 404: "warn", 500: "error"} {
		var buf bytes.Buffer
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		rec := httptest.NewRecorder()
		LoggingMiddleware(zerolog.New(&buf))(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, level, entry["level"], "status %d", status)
		assert.NotContains(t, entry, "user_id")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("keeps incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "abc", seen)
		assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
	})

	t.Run("generates id when missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("outside a request", func(t *testing.T) {
		assert.Empty(t, RequestIDFromContext(t.Context()))
	})
}
