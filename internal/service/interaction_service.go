package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go-social-feed/internal/event"
	"go-social-feed/internal/model"
	"go-social-feed/pkg/apierror"
)

type LikeStore interface {
	Toggle(ctx context.Context, userID string, postID string) (model.LikeResult, error)
}

type CommentStore interface {
	Create(ctx context.Context, c model.Comment) (model.Comment, error)
	ListByPost(ctx context.Context, postID string, q model.PageQuery) ([]model.Comment, int, error)
}

// InteractionService handles likes and comments. Interactions on someone
// else's post are published so the author can be notified.
type InteractionService struct {
	posts    PostStore
	likes    LikeStore
	comments CommentStore
	users    UserStore
	bus      event.Bus
	now      func() time.Time
}

func NewInteractionService(posts PostStore, likes LikeStore, comments CommentStore, users UserStore, bus event.Bus) *InteractionService {
	return &InteractionService{
		posts:    posts,
		likes:    likes,
		comments: comments,
		users:    users,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *InteractionService) ToggleLike(ctx context.Context, userID string, postID string) (model.LikeResult, error) {
	authorID, err := s.posts.AuthorID(ctx, postID)
	if errors.Is(err, model.ErrPostNotFound) {
		return model.LikeResult{}, apierror.NotFound("Post not found", postID)
	}
	if err != nil {
		return model.LikeResult{}, err
	}

	result, err := s.likes.Toggle(ctx, userID, postID)
	if errors.Is(err, model.ErrPostNotFound) {
		return model.LikeResult{}, apierror.NotFound("Post not found", postID)
	}
	if err != nil {
		return model.LikeResult{}, err
	}

	if result.Liked && authorID != userID {
		s.bus.Publish(event.New(event.TypePostLiked, userID, event.PostLiked{
			PostID:        postID,
			PostAuthorID:  authorID,
			LikerID:       userID,
			LikerUsername: s.username(ctx, userID),
			LikesCount:    result.LikesCount,
		}))
	}

	return result, nil
}

func (s *InteractionService) AddComment(ctx context.Context, userID string, postID string, content string) (model.Comment, error) {
	content, err := validateContent(content)
	if err != nil {
		return model.Comment{}, err
	}

	authorID, err := s.posts.AuthorID(ctx, postID)
	if errors.Is(err, model.ErrPostNotFound) {
		return model.Comment{}, apierror.NotFound("Post not found", postID)
	}
	if err != nil {
		return model.Comment{}, err
	}

	comment, err := s.comments.Create(ctx, model.Comment{
		ID:        uuid.NewString(),
		Content:   content,
		UserID:    userID,
		PostID:    postID,
		CreatedAt: s.now(),
	})
	if errors.Is(err, model.ErrPostNotFound) {
		return model.Comment{}, apierror.NotFound("Post not found", postID)
	}
	if err != nil {
		return model.Comment{}, err
	}

	if authorID != userID {
		s.bus.Publish(event.New(event.TypeCommentCreated, userID, event.CommentCreated{
			PostID:            postID,
			PostAuthorID:      authorID,
			CommentID:         comment.ID,
			CommenterID:       userID,
			CommenterUsername: comment.User.Username,
		}))
	}

	return comment, nil
}

func (s *InteractionService) GetComments(ctx context.Context, postID string, page model.PageQuery) ([]model.Comment, *model.Pagination, error) {
	page = page.Normalize()

	if _, err := s.posts.AuthorID(ctx, postID); err != nil {
		if errors.Is(err, model.ErrPostNotFound) {
			return nil, nil, apierror.NotFound("Post not found", postID)
		}
		return nil, nil, err
	}

	comments, total, err := s.comments.ListByPost(ctx, postID, page)
	if err != nil {
		return nil, nil, err
	}

	return comments, model.NewPagination(page, total), nil
}

func (s *InteractionService) username(ctx context.Context, userID string) string {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		slog.Warn("like event without username", "user_id", userID, "error", err)
		return "Someone"
	}
	return user.Username
}
