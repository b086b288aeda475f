package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-social-feed/internal/model"
)

type stubValidator map[string]string

func (s stubValidator) ValidateAccessToken(token string) (string, error) {
	if userID, ok := s[token]; ok {
		return userID, nil
	}
	return "", errors.New("bad token")
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.APIResponse {
	t.Helper()
	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireAuth(t *testing.T) {
	mw := NewAuthMiddleware(stubValidator{"good": "user-1"})

	var seen string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		assert.Equal(t, "user-1", model.ActorFromContext(r.Context()).UserID)
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"missing", "", http.StatusUnauthorized, "Missing or invalid authorization header"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Missing or invalid authorization header"},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, "Missing or invalid authorization header"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "Invalid or expired access token"},
		{"ok", "bearer good", http.StatusNoContent, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
			if tc.message != "" {
				body := decodeError(t, rec)
				assert.Equal(t, tc.message, body.Error)
				assert.Equal(t, "UNAUTHORIZED", body.Code)
			}
		})
	}

	assert.Equal(t, "user-1", seen)
}

func TestRequireAuthQueryTokenOnlyForWebsocket(t *testing.T) {
	mw := NewAuthMiddleware(stubValidator{"good": "user-1"})
	handler := mw.RequireAuth(okHandler())

	plain := httptest.NewRecorder()
	handler.ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/ws?token=good", nil))
	assert.Equal(t, http.StatusUnauthorized, plain.Code)

	req := httptest.NewRequest(http.MethodGet, "/ws?token=good", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	upgrade := httptest.NewRecorder()
	handler.ServeHTTP(upgrade, req)
	assert.Equal(t, http.StatusOK, upgrade.Code)
}

func TestRecovery(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}

func TestLoggingSetsRequestIDAndActorIP(t *testing.T) {
	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "198.51.100.7", model.ActorFromContext(r.Context()).IP)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"bad","code":"VALIDATION"}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("X-Real-IP", "198.51.100.7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("X-Real-IP", "198.51.100.7")
	req.Header.Set("X-Request-ID", "fixed")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "fixed", rec.Header().Get("X-Request-ID"))
}

func TestLoggingRecordsUserAndErrorCode(t *testing.T) {
	var buf bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	auth := NewAuthMiddleware(stubValidator{"good": "user-1"})
	handler := Logging(auth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "NOT_FOUND", "Post not found")
	})))

	req := httptest.NewRequest(http.MethodGet, "/posts/x?page=2", nil)
	req.Header.Set("Authorization", "Bearer good")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "user-1", line["user_id"])
	assert.Equal(t, "NOT_FOUND", line["error_code"])
	assert.Equal(t, "page=2", line["query"])
	assert.EqualValues(t, 404, line["status"])
}

func TestTimeoutSkipsWebsocketUpgrade(t *testing.T) {
	handler := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.WriteHeader(http.StatusSwitchingProtocols)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSwitchingProtocols, rec.Code)
}

func TestTimeout(t *testing.T) {
	handler := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "REQUEST_TIMEOUT", decodeError(t, rec).Code)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestCORSWildcardAllowsAnyOrigin(t *testing.T) {
	handler := CORS([]string{"*"})(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/posts", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRestrictsOrigins(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(metrics.Handler)
	r.Get("/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/"+id, nil))
	}

	expected := `
# HELP social_feed_http_requests_total HTTP requests by route, method and status.
# TYPE social_feed_http_requests_total counter
social_feed_http_requests_total{method="GET",route="/posts/{id}",status="418"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "social_feed_http_requests_total"))
}
