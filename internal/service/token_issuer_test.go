package service

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-social-feed/internal/model"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)
	return issuer
}

func TestNewTokenIssuerRejectsSharedSecret(t *testing.T) {
	_, err := NewTokenIssuer("same", "same", time.Minute, time.Hour)
	assert.Error(t, err)

	_, err = NewTokenIssuer("", "other", time.Minute, time.Hour)
	assert.Error(t, err)
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	access, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)
	userID, err := issuer.VerifyAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	refresh, _, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)
	userID, err = issuer.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestTokenIssuerSecretsAreNotInterchangeable(t *testing.T) {
	issuer := newTestIssuer(t)

	access, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)
	refresh, _, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	_, err = issuer.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestTokenIssuerUniquePerCall(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t).WithClock(func() time.Time { return base })

	first, _, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)
	second, _, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestAccessTokenExpiryBoundary(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t)

	token, err := issuer.WithClock(func() time.Time { return base }).IssueAccessToken("user-1")
	require.NoError(t, err)

	justBefore := issuer.WithClock(func() time.Time { return base.Add(15*time.Minute - time.Second) })
	userID, err := justBefore.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	justAfter := issuer.WithClock(func() time.Time { return base.Add(15*time.Minute + time.Second) })
	_, err = justAfter.VerifyAccessToken(token)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestAccessTokenExpiryBoundarySubSecond(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 900*int(time.Millisecond), time.UTC)
	issuer := newTestIssuer(t)

	token, err := issuer.WithClock(func() time.Time { return issuedAt }).IssueAccessToken("user-1")
	require.NoError(t, err)

	for _, offset := range []time.Duration{0, 15*time.Minute - 100*time.Millisecond, 15*time.Minute - time.Millisecond} {
		at := issuedAt.Add(offset)
		userID, err := issuer.WithClock(func() time.Time { return at }).VerifyAccessToken(token)
		require.NoError(t, err, "verify at %s", at)
		assert.Equal(t, "user-1", userID)
	}

	late := issuedAt.Add(15*time.Minute + 1100*time.Millisecond)
	_, err = issuer.WithClock(func() time.Time { return late }).VerifyAccessToken(token)
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}

func TestRefreshTokenExpiryIsWholeSeconds(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 250*int(time.Millisecond), time.UTC)
	issuer := newTestIssuer(t).WithClock(func() time.Time { return base })

	token, expiresAt, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 8, 9, 0, 1, 0, time.UTC), expiresAt)

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.Time.Equal(expiresAt))
}

func TestRefreshTokenExpiryMatchesLedgerRow(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t).WithClock(func() time.Time { return base })

	_, expiresAt, err := issuer.IssueRefreshToken("user-1")
	require.NoError(t, err)
	assert.Equal(t, base.Add(7*24*time.Hour), expiresAt)
}

func TestVerifyRejectsTamperedAndForeignTokens(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.IssueAccessToken("user-1")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = issuer.VerifyAccessToken(tampered)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"typ": "access",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("someone-else"))
	require.NoError(t, err)
	_, err = issuer.VerifyAccessToken(foreign)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"typ": "access",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.VerifyAccessToken(unsigned)
	assert.ErrorIs(t, err, model.ErrInvalidToken)

	_, err = issuer.VerifyAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, model.ErrInvalidToken)
}
