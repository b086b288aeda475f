package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go-social-feed/internal/model"
	"go-social-feed/pkg/apierror"
)

func errorEnvelope(code string, message string) []byte {
	body, _ := json.Marshal(model.APIResponse{Success: false, Error: message, Code: code})
	return body
}

func writeJSONError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(errorEnvelope(code, message))
}

// Timeout bounds handlers with http.TimeoutHandler, which answers 503.
// Websocket upgrades pass through untouched: the handler writer cannot be
// hijacked.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	body := string(errorEnvelope(apierror.CodeTimeout, "Request timed out"))

	return func(next http.Handler) http.Handler {
		bounded := http.TimeoutHandler(next, timeout, body)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			bounded.ServeHTTP(w, r)
		})
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
