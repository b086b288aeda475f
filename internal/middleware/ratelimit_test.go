package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-social-feed/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware_UnlimitedGeneral(t *testing.T) {
	// generalRPM = 0 disables the general bucket
	handler := NewRateLimitMiddleware(0, 1).Handler(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/posts", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimitMiddleware_LimitedAuth(t *testing.T) {
	handler := NewRateLimitMiddleware(0, 1).Handler(okHandler())

	req1 := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	assert.Equal(t, http.StatusOK, rec1.Code)

	// Burst is 1, so the immediate second request is rejected.
	req2 := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.Equal(t, "60", rec2.Header().Get("Retry-After"))

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "RATE_LIMITED", body.Code)

	// A different client has its own bucket.
	req3 := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req3.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec3 := httptest.NewRecorder()
	handler.ServeHTTP(rec3, req3)
	assert.Equal(t, http.StatusOK, rec3.Code)
}

func TestRateLimitMiddleware_HealthIsExempt(t *testing.T) {
	handler := NewRateLimitMiddleware(1, 1).Handler(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitMiddleware_Configuration(t *testing.T) {
	mw := NewRateLimitMiddleware(-1, 0)
	assert.Equal(t, -1, mw.generalRPM)
	assert.Equal(t, 20, mw.authRPM) // Default fallback for auth
}

func TestRateLimitMiddleware_RetryAfterTracksRefill(t *testing.T) {
	// 2 rpm: burst of two, one token back every 30s.
	mw := NewRateLimitMiddleware(2, 0)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mw.now = func() time.Time { return now }
	handler := mw.Handler(okHandler())

	serve := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
		return rec
	}

	require.Equal(t, http.StatusOK, serve().Code)
	require.Equal(t, http.StatusOK, serve().Code)

	rec := serve()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 30, retry, 1)

	now = now.Add(20 * time.Second)
	rec = serve()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	retry, err = strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.InDelta(t, 10, retry, 1)

	// Rejected requests do not consume tokens.
	now = now.Add(11 * time.Second)
	assert.Equal(t, http.StatusOK, serve().Code)
}
