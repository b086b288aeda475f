package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-social-feed/internal/model"
)

// postSelect projects a post with its author, counters, and whether $1 (the
// viewer) liked it.
const postSelect = `
	SELECT p.id, p.content, p.user_id, p.created_at, p.updated_at,
	       u.id, u.username,
	       (SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id),
	       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
	       EXISTS (SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = $1)
	FROM posts p
	JOIN users u ON u.id = p.user_id`

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

func (r *PostRepository) Create(ctx context.Context, p model.Post) (model.Post, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO posts (id, content, user_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Content, p.UserID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return model.Post{}, fmt.Errorf("create post: %w", err)
	}

	return r.FindByID(ctx, p.ID, p.UserID)
}

func (r *PostRepository) FindByID(ctx context.Context, postID string, viewerID string) (model.Post, error) {
	row := r.pool.QueryRow(ctx, postSelect+` WHERE p.id = $2`, viewerID, postID)
	post, err := scanPost(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Post{}, model.ErrPostNotFound
	}
	if err != nil {
		return model.Post{}, fmt.Errorf("find post: %w", err)
	}
	return post, nil
}

// AuthorID returns the owner of postID.
func (r *PostRepository) AuthorID(ctx context.Context, postID string) (string, error) {
	var authorID string
	err := r.pool.QueryRow(ctx, `SELECT user_id FROM posts WHERE id = $1`, postID).Scan(&authorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", model.ErrPostNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find post author: %w", err)
	}
	return authorID, nil
}

// List returns one page of the feed, newest first, optionally filtered by a
// case-insensitive username substring.
func (r *PostRepository) List(ctx context.Context, q model.FeedQuery) ([]model.Post, int, error) {
	filter := ""
	args := []any{q.ViewerID}
	if name := strings.TrimSpace(q.Username); name != "" {
		filter = ` WHERE u.username ILIKE '%' || $2 || '%'`
		args = append(args, name)
	}

	var total int
	countArgs := args[1:]
	countQuery := `SELECT COUNT(*) FROM posts p JOIN users u ON u.id = p.user_id`
	if filter != "" {
		countQuery += ` WHERE u.username ILIKE '%' || $1 || '%'`
	}
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	page := model.PageQuery{Page: q.Page, Limit: q.Limit}.Normalize()
	limitArg := len(args) + 1
	args = append(args, page.Limit, page.Offset())

	rows, err := r.pool.Query(ctx,
		postSelect+filter+fmt.Sprintf(` ORDER BY p.created_at DESC, p.id LIMIT $%d OFFSET $%d`, limitArg, limitArg+1),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, page.Limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, total, rows.Err()
}

func scanPost(row pgx.Row) (model.Post, error) {
	var p model.Post
	err := row.Scan(&p.ID, &p.Content, &p.UserID, &p.CreatedAt, &p.UpdatedAt,
		&p.User.ID, &p.User.Username, &p.LikesCount, &p.CommentsCount, &p.IsLiked)
	return p, err
}
