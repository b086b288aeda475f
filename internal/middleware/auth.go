package middleware

import (
	"context"
	"net/http"
	"strings"

	"go-social-feed/internal/model"
	"go-social-feed/pkg/apierror"
)

type tokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

type contextKey string

const userIDContextKey contextKey = "user_id"

type AuthMiddleware struct {
	validator tokenValidator
}

func NewAuthMiddleware(validator tokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth accepts `Authorization: Bearer <access token>`. Websocket
// upgrades may pass the token as ?token= since browsers cannot set headers.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeUnauthorized(w, "Missing or invalid authorization header")
			return
		}

		userID, err := m.validator.ValidateAccessToken(token)
		if err != nil {
			writeUnauthorized(w, "Invalid or expired access token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		actor := model.ActorFromContext(ctx)
		actor.UserID = userID
		ctx = model.WithActor(ctx, actor)
		noteUser(ctx, userID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok && userID != ""
}

// WithUserID is for handler tests that skip the middleware.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header != "" {
		if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
			return "", false
		}
		token := strings.TrimSpace(header[7:])
		return token, token != ""
	}

	if isUpgrade(r) {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		return token, token != ""
	}

	return "", false
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, apierror.CodeUnauthorized, message)
}
