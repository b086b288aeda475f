package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"go-social-feed/internal/event"
	"go-social-feed/internal/model"
	"go-social-feed/internal/util"
	"go-social-feed/pkg/apierror"
)

const maxContentLength = 500

type PostStore interface {
	Create(ctx context.Context, p model.Post) (model.Post, error)
	FindByID(ctx context.Context, postID string, viewerID string) (model.Post, error)
	AuthorID(ctx context.Context, postID string) (string, error)
	List(ctx context.Context, q model.FeedQuery) ([]model.Post, int, error)
}

type PostService struct {
	posts PostStore
	bus   event.Bus
	now   func() time.Time
}

func NewPostService(posts PostStore, bus event.Bus) *PostService {
	return &PostService{
		posts: posts,
		bus:   bus,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostService) CreatePost(ctx context.Context, userID string, content string) (model.Post, error) {
	content, err := validateContent(content)
	if err != nil {
		return model.Post{}, err
	}

	now := s.now()
	post, err := s.posts.Create(ctx, model.Post{
		ID:        uuid.NewString(),
		Content:   content,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if errors.Is(err, model.ErrUserNotFound) {
		return model.Post{}, apierror.NotFound("User not found", userID)
	}
	if err != nil {
		return model.Post{}, err
	}

	s.bus.Publish(event.New(event.TypePostCreated, userID, event.PostCreated{
		PostID:   post.ID,
		AuthorID: userID,
		Content:  post.Content,
	}))

	return post, nil
}

// Feed lists posts newest first, optionally filtered by a case-insensitive
// username substring.
func (s *PostService) Feed(ctx context.Context, viewerID string, username string, page model.PageQuery) ([]model.Post, *model.Pagination, error) {
	page = page.Normalize()

	posts, total, err := s.posts.List(ctx, model.FeedQuery{
		ViewerID: viewerID,
		Username: strings.TrimSpace(username),
		Page:     page.Page,
		Limit:    page.Limit,
	})
	if err != nil {
		return nil, nil, err
	}

	return posts, model.NewPagination(page, total), nil
}

func (s *PostService) GetPost(ctx context.Context, viewerID string, postID string) (model.Post, error) {
	post, err := s.posts.FindByID(ctx, postID, viewerID)
	if errors.Is(err, model.ErrPostNotFound) {
		return model.Post{}, apierror.NotFound("Post not found", postID)
	}
	return post, err
}

func validateContent(content string) (string, error) {
	content = util.CleanText(content)
	if content == "" {
		return "", apierror.Validation("Content is required", "content")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return "", apierror.Validation("Content must be at most 500 characters", "content")
	}
	return content, nil
}
