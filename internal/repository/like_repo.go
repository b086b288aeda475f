package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-social-feed/internal/database"
	"go-social-feed/internal/model"
)

type LikeRepository struct {
	pool *pgxpool.Pool
}

func NewLikeRepository(pool *pgxpool.Pool) *LikeRepository {
	return &LikeRepository{pool: pool}
}

// Toggle removes the user's like on postID if present, otherwise adds one, and
// returns the resulting state with the post's like count.
func (r *LikeRepository) Toggle(ctx context.Context, userID string, postID string) (model.LikeResult, error) {
	var result model.LikeResult

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM likes WHERE user_id = $1 AND post_id = $2`, userID, postID)
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}

		if tag.RowsAffected() == 0 {
			_, err = tx.Exec(ctx,
				`INSERT INTO likes (id, user_id, post_id, created_at) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (user_id, post_id) DO NOTHING`,
				uuid.NewString(), userID, postID, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("insert like: %w", err)
			}
			result.Liked = true
		}

		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID).Scan(&result.LikesCount); err != nil {
			return fmt.Errorf("count likes: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.LikeResult{}, err
	}
	return result, nil
}
