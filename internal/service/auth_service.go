package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-social-feed/internal/model"
	"go-social-feed/pkg/apierror"
)

const (
	msgEmailTaken          = "Email already in use"
	msgUsernameTaken       = "Username already taken"
	msgInvalidLogin        = "Invalid email or password"
	msgInvalidRefreshToken = "Invalid or expired refresh token"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdatePushToken(ctx context.Context, userID string, pushToken string) error
}

// RefreshLedger is the server-side record of currently valid refresh tokens.
type RefreshLedger interface {
	Record(ctx context.Context, token string, userID string, expiresAt time.Time) error
	Consume(ctx context.Context, token string) (string, error)
	Rotate(ctx context.Context, oldToken string, userID string, newToken string, newExpiresAt time.Time) error
	Revoke(ctx context.Context, token string) error
	RevokeOwned(ctx context.Context, token string, userID string) error
	CleanExpired(ctx context.Context) (int64, error)
}

type AuthService struct {
	users  UserStore
	ledger RefreshLedger
	tokens *TokenIssuer
	hasher *PasswordHasher
	now    func() time.Time
}

func NewAuthService(users UserStore, ledger RefreshLedger, tokens *TokenIssuer, hasher *PasswordHasher) *AuthService {
	return &AuthService{
		users:  users,
		ledger: ledger,
		tokens: tokens,
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Signup(ctx context.Context, req model.SignupRequest) (model.AuthResult, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := validateSignup(username, email, req.Password); err != nil {
		return model.AuthResult{}, err
	}

	// Email is checked before username so a double collision reports the email.
	emailTaken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return model.AuthResult{}, err
	}
	if emailTaken {
		return model.AuthResult{}, apierror.Conflict(msgEmailTaken, "email")
	}

	usernameTaken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return model.AuthResult{}, err
	}
	if usernameTaken {
		return model.AuthResult{}, apierror.Conflict(msgUsernameTaken, "username")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.AuthResult{}, err
	}

	now := s.now()
	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The insert can still lose a race with a concurrent signup.
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, model.ErrEmailTaken):
			return model.AuthResult{}, apierror.Conflict(msgEmailTaken, "email")
		case errors.Is(err, model.ErrUsernameTaken):
			return model.AuthResult{}, apierror.Conflict(msgUsernameTaken, "username")
		}
		return model.AuthResult{}, err
	}

	pair, err := s.issueAndRecord(ctx, user.ID)
	if err != nil {
		return model.AuthResult{}, err
	}

	audit(ctx, slog.LevelInfo, "signup", user.ID, "success")
	return model.AuthResult{User: user.Public(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return model.AuthResult{}, apierror.Validation("email and password are required", "")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.Burn(req.Password)
		audit(ctx, slog.LevelWarn, "login", "", "failure", "reason", "unknown_email")
		return model.AuthResult{}, apierror.Unauthorized(msgInvalidLogin)
	}
	if err != nil {
		return model.AuthResult{}, err
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		audit(ctx, slog.LevelWarn, "login", user.ID, "failure", "reason", "bad_password")
		return model.AuthResult{}, apierror.Unauthorized(msgInvalidLogin)
	}

	pair, err := s.issueAndRecord(ctx, user.ID)
	if err != nil {
		return model.AuthResult{}, err
	}

	audit(ctx, slog.LevelInfo, "login", user.ID, "success")
	return model.AuthResult{User: user.Public(), AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Refresh verifies the token's signature, then rotates its ledger row: the old
// row is deleted and the new refresh token recorded in one atomic step, so a
// consumed token can never be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return model.TokenPair{}, apierror.Validation("refreshToken is required", "refreshToken")
	}

	userID, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		audit(ctx, slog.LevelWarn, "refresh", "", "failure", "reason", "bad_signature")
		return model.TokenPair{}, apierror.Unauthorized(msgInvalidRefreshToken)
	}

	accessToken, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		return model.TokenPair{}, err
	}
	nextRefresh, expiresAt, err := s.tokens.IssueRefreshToken(userID)
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.ledger.Rotate(ctx, refreshToken, userID, nextRefresh, expiresAt); err != nil {
		if errors.Is(err, model.ErrTokenNotFound) || errors.Is(err, model.ErrTokenExpired) {
			audit(ctx, slog.LevelWarn, "refresh", userID, "failure", "reason", err.Error())
			return model.TokenPair{}, apierror.Unauthorized(msgInvalidRefreshToken)
		}
		return model.TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	audit(ctx, slog.LevelInfo, "refresh", userID, "success")
	return model.TokenPair{AccessToken: accessToken, RefreshToken: nextRefresh}, nil
}

// Logout revokes one refresh token owned by userID. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, userID string, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return apierror.Validation("refreshToken is required", "refreshToken")
	}

	err := s.ledger.RevokeOwned(ctx, refreshToken, userID)
	if err != nil && !errors.Is(err, model.ErrTokenNotFound) {
		return err
	}

	audit(ctx, slog.LevelInfo, "logout", userID, "success")
	return nil
}

// ValidateAccessToken is used by the auth middleware.
func (s *AuthService) ValidateAccessToken(token string) (string, error) {
	return s.tokens.VerifyAccessToken(token)
}

func (s *AuthService) GetUser(ctx context.Context, userID string) (model.PublicUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.PublicUser{}, apierror.NotFound("User not found", userID)
	}
	if err != nil {
		return model.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *AuthService) UpdatePushToken(ctx context.Context, userID string, pushToken string) error {
	pushToken = strings.TrimSpace(pushToken)
	if pushToken == "" {
		return apierror.Validation("Push token is required", "pushToken")
	}

	err := s.users.UpdatePushToken(ctx, userID, pushToken)
	if errors.Is(err, model.ErrUserNotFound) {
		return apierror.NotFound("User not found", userID)
	}
	return err
}

// SweepExpired deletes expired ledger rows every interval until ctx is done.
func (s *AuthService) SweepExpired(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.ledger.CleanExpired(ctx)
			if err != nil {
				slog.Error("refresh token sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("refresh token sweep", "removed", removed)
			}
		}
	}
}

func (s *AuthService) issueAndRecord(ctx context.Context, userID string) (model.TokenPair, error) {
	accessToken, err := s.tokens.IssueAccessToken(userID)
	if err != nil {
		return model.TokenPair{}, err
	}

	refreshToken, expiresAt, err := s.tokens.IssueRefreshToken(userID)
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.ledger.Record(ctx, refreshToken, userID, expiresAt); err != nil {
		return model.TokenPair{}, fmt.Errorf("record refresh token: %w", err)
	}

	return model.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func audit(ctx context.Context, level slog.Level, action string, userID string, status string, extra ...any) {
	attrs := []any{"action", action, "user_id", userID, "status", status, "ip", model.ActorFromContext(ctx).IP}
	slog.Log(ctx, level, "auth event", append(attrs, extra...)...)
}

func validateSignup(username string, email string, password string) error {
	if !usernamePattern.MatchString(username) {
		return apierror.Validation("Username must be 3-30 characters of letters, digits or underscore", "username")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apierror.Validation("Invalid email address", "email")
	}

	if len(password) < 6 {
		return apierror.Validation("Password must be at least 6 characters", "password")
	}

	return nil
}
