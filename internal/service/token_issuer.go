package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-social-feed/internal/model"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// TokenIssuer signs and verifies access and refresh tokens. It is stateless:
// refresh-token validity beyond signature and expiry is the ledger's concern.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(accessSecret string, refreshSecret string, accessTTL time.Duration, refreshTTL time.Duration) (*TokenIssuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	return &TokenIssuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	clone := *i
	clone.now = now
	return &clone
}

func (i *TokenIssuer) RefreshTTL() time.Duration {
	return i.refreshTTL
}

func (i *TokenIssuer) IssueAccessToken(userID string) (string, error) {
	token, _, err := i.issue(userID, tokenTypeAccess, i.accessSecret, i.accessTTL)
	return token, err
}

// IssueRefreshToken also returns the expiry so the ledger row matches the token.
func (i *TokenIssuer) IssueRefreshToken(userID string) (string, time.Time, error) {
	return i.issue(userID, tokenTypeRefresh, i.refreshSecret, i.refreshTTL)
}

func (i *TokenIssuer) VerifyAccessToken(token string) (string, error) {
	return i.verify(token, tokenTypeAccess, i.accessSecret)
}

func (i *TokenIssuer) VerifyRefreshToken(token string) (string, error) {
	return i.verify(token, tokenTypeRefresh, i.refreshSecret)
}

func (i *TokenIssuer) issue(userID string, typ string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := wholeSecond(i.now().UTC())
	expiresAt := now.Add(ttl)

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type: typ,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, expiresAt, nil
}

func (i *TokenIssuer) verify(token string, typ string, secret []byte) (string, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return "", model.ErrInvalidToken
	}
	if claims.Type != typ || claims.Subject == "" {
		return "", model.ErrInvalidToken
	}
	return claims.Subject, nil
}

// wholeSecond rounds t up to the next second. Registered claims carry whole
// seconds, so the token never lives shorter than its TTL.
func wholeSecond(t time.Time) time.Time {
	if s := t.Truncate(time.Second); s.Before(t) {
		return s.Add(time.Second)
	}
	return t
}
