package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go-social-feed/pkg/apierror"
)

const (
	defaultAuthRPM = 20
	visitorIdleTTL = 10 * time.Minute
	visitorGCSize  = 1000
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per client IP, all refilling at rpm.
type limiterSet struct {
	rpm      int
	mu       sync.Mutex
	visitors map[string]*visitor
}

func newLimiterSet(rpm int) *limiterSet {
	if rpm <= 0 {
		return nil
	}
	return &limiterSet{rpm: rpm, visitors: map[string]*visitor{}}
}

// wait returns how long key must back off, zero when the request may proceed.
func (s *limiterSet) wait(key string, now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.rpm)), s.rpm)}
		s.visitors[key] = v
		s.gcLocked(now)
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
	}
	return delay
}

func (s *limiterSet) gcLocked(now time.Time) {
	if len(s.visitors) < visitorGCSize {
		return
	}

	cutoff := now.Add(-visitorIdleTTL)
	for key, v := range s.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(s.visitors, key)
		}
	}
}

// RateLimitMiddleware throttles per client IP. Requests under /auth/ draw from
// a separate, usually stricter bucket; /health and /metrics are never limited.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	general    *limiterSet
	auth       *limiterSet
	now        func() time.Time
}

// NewRateLimitMiddleware treats generalRPM <= 0 as unlimited. authRPM <= 0
// falls back to 20.
func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if authRPM <= 0 {
		authRPM = defaultAuthRPM
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		general:    newLimiterSet(generalRPM),
		auth:       newLimiterSet(authRPM),
		now:        time.Now,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		set := m.bucketFor(strings.ToLower(r.URL.Path))
		if set == nil {
			next.ServeHTTP(w, r)
			return
		}

		if delay := set.wait(extractClientIP(r), m.now()); delay > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			writeJSONError(w, http.StatusTooManyRequests, apierror.CodeRateLimited, "Too many requests, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) bucketFor(path string) *limiterSet {
	switch {
	case path == "/health" || path == "/metrics":
		return nil
	case strings.HasPrefix(path, "/auth/"):
		return m.auth
	default:
		return m.general
	}
}

// extractClientIP trusts the first X-Forwarded-For hop, then X-Real-IP.
func extractClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
