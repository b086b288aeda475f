package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-social-feed/internal/model"
)

type CommentRepository struct {
	pool *pgxpool.Pool
}

func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{pool: pool}
}

func (r *CommentRepository) Create(ctx context.Context, c model.Comment) (model.Comment, error) {
	err := r.pool.QueryRow(ctx,
		`WITH inserted AS (
		     INSERT INTO comments (id, content, user_id, post_id, created_at)
		     VALUES ($1, $2, $3, $4, $5)
		     RETURNING user_id
		 )
		 SELECT u.id, u.username FROM inserted i JOIN users u ON u.id = i.user_id`,
		c.ID, c.Content, c.UserID, c.PostID, c.CreatedAt).
		Scan(&c.User.ID, &c.User.Username)
	if err != nil {
		return model.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	return c, nil
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID string, q model.PageQuery) ([]model.Comment, int, error) {
	q = q.Normalize()

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM comments WHERE post_id = $1`, postID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count comments: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.content, c.user_id, c.post_id, c.created_at, u.id, u.username
		 FROM comments c JOIN users u ON u.id = c.user_id
		 WHERE c.post_id = $1
		 ORDER BY c.created_at DESC, c.id
		 LIMIT $2 OFFSET $3`,
		postID, q.Limit, q.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0, q.Limit)
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.Content, &c.UserID, &c.PostID, &c.CreatedAt, &c.User.ID, &c.User.Username); err != nil {
			return nil, 0, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, total, rows.Err()
}
