package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"go-social-feed/internal/model"
)

const (
	requestIDHeader = "X-Request-ID"
	maxLoggedBody   = 4 << 10
)

type requestLogKey struct{}

// requestLog collects fields set deeper in the chain, such as the
// authenticated user, for the access log line.
type requestLog struct {
	userID string
}

func noteUser(ctx context.Context, userID string) {
	if entry, ok := ctx.Value(requestLogKey{}).(*requestLog); ok {
		entry.userID = userID
	}
}

// Logging writes one access log line per request and seeds the audit actor
// with the client IP.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		clientIP := extractClientIP(r)
		entry := &requestLog{}
		ctx := context.WithValue(r.Context(), requestLogKey{}, entry)
		ctx = model.WithActor(ctx, model.Actor{IP: clientIP})

		started := time.Now()
		recorder := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r.WithContext(ctx))

		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", recorder.status),
			slog.Int64("duration_ms", time.Since(started).Milliseconds()),
			slog.String("client_ip", clientIP),
		}
		if entry.userID != "" {
			attrs = append(attrs, slog.String("user_id", entry.userID))
		}
		if recorder.status >= 400 {
			attrs = append(attrs, failureAttrs(r, recorder.body.Bytes())...)
		}

		slog.LogAttrs(ctx, levelForStatus(recorder.status), "request", attrs...)
	})
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// failureAttrs pulls code and message out of an error envelope.
func failureAttrs(r *http.Request, body []byte) []slog.Attr {
	var attrs []slog.Attr
	if r.URL.RawQuery != "" {
		attrs = append(attrs, slog.String("query", r.URL.RawQuery))
	}

	var envelope model.APIResponse
	if len(body) == 0 || json.Unmarshal(body, &envelope) != nil || envelope.Error == "" {
		return attrs
	}

	attrs = append(attrs, slog.String("error_code", envelope.Code), slog.String("error_message", envelope.Error))
	if envelope.Details != "" {
		attrs = append(attrs, slog.String("error_details", envelope.Details))
	}
	return attrs
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if rw.wroteHeader {
		return
	}
	rw.status = statusCode
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status >= 400 && rw.body.Len() < maxLoggedBody {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
