package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-social-feed/internal/database"
	"go-social-feed/internal/model"
)

// TokenRepository is the refresh ledger: one row per currently valid refresh token.
type TokenRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

func (r *TokenRepository) Record(ctx context.Context, token string, userID string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (id, token, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), token, userID, r.now(), expiresAt)
	if err != nil {
		return fmt.Errorf("record refresh token: %w", err)
	}
	return nil
}

// Consume looks the token up without deleting it.
func (r *TokenRepository) Consume(ctx context.Context, token string) (string, error) {
	var (
		userID    string
		expiresAt time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, expires_at FROM refresh_tokens WHERE token = $1`, token).
		Scan(&userID, &expiresAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", model.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume refresh token: %w", err)
	}
	if expiresAt.Before(r.now()) {
		return "", model.ErrTokenExpired
	}
	return userID, nil
}

// Rotate atomically deletes oldToken and records newToken for the same user.
// Two concurrent rotations of one token cannot both succeed: the DELETE ...
// RETURNING row lock lets only one transaction see the row. An expired row is
// still deleted and the rotation fails with ErrTokenExpired.
func (r *TokenRepository) Rotate(ctx context.Context, oldToken string, userID string, newToken string, newExpiresAt time.Time) error {
	expired := false

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var (
			ownerID   string
			expiresAt time.Time
		)
		err := tx.QueryRow(ctx,
			`DELETE FROM refresh_tokens WHERE token = $1 RETURNING user_id, expires_at`, oldToken).
			Scan(&ownerID, &expiresAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrTokenNotFound
		}
		if err != nil {
			return fmt.Errorf("delete refresh token: %w", err)
		}

		now := r.now()
		if expiresAt.Before(now) {
			expired = true
			return nil
		}
		if ownerID != userID {
			return model.ErrTokenNotFound
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO refresh_tokens (id, token, user_id, created_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), newToken, userID, now, newExpiresAt)
		if err != nil {
			return fmt.Errorf("record rotated refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if expired {
		return model.ErrTokenExpired
	}
	return nil
}

func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeOwned deletes token only when it belongs to userID.
func (r *TokenRepository) RevokeOwned(ctx context.Context, token string, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1 AND user_id = $2`, token, userID)
	if err != nil {
		return fmt.Errorf("revoke owned refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrTokenNotFound
	}
	return nil
}

func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return nil
}

func (r *TokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
