// Package feed is the client-side view of posts, likes and comments.
package feed

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"go-social-feed/internal/model"
)

// Doer is satisfied by *session.Manager.
type Doer interface {
	Do(ctx context.Context, method string, path string, body any, out any) error
	DoPage(ctx context.Context, method string, path string, body any, out any) (*model.Pagination, error)
}

type Client struct {
	api Doer
}

func NewClient(api Doer) *Client {
	return &Client{api: api}
}

// Feed lists posts newest first, optionally only those by username.
func (c *Client) Feed(ctx context.Context, username string, page model.PageQuery) ([]model.Post, *model.Pagination, error) {
	q := pageValues(page)
	if username != "" {
		q.Set("username", username)
	}

	var posts []model.Post
	meta, err := c.api.DoPage(ctx, http.MethodGet, "/posts?"+q.Encode(), nil, &posts)
	if err != nil {
		return nil, nil, err
	}
	return posts, meta, nil
}

func (c *Client) Post(ctx context.Context, postID string) (model.Post, error) {
	var post model.Post
	err := c.api.Do(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID), nil, &post)
	return post, err
}

func (c *Client) CreatePost(ctx context.Context, content string) (model.Post, error) {
	var post model.Post
	err := c.api.Do(ctx, http.MethodPost, "/posts", model.CreatePostRequest{Content: content}, &post)
	return post, err
}

func (c *Client) ToggleLike(ctx context.Context, postID string) (model.LikeResult, error) {
	var result model.LikeResult
	err := c.api.Do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/like", nil, &result)
	return result, err
}

func (c *Client) Comments(ctx context.Context, postID string, page model.PageQuery) ([]model.Comment, *model.Pagination, error) {
	var comments []model.Comment
	meta, err := c.api.DoPage(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID)+"/comments?"+pageValues(page).Encode(), nil, &comments)
	if err != nil {
		return nil, nil, err
	}
	return comments, meta, nil
}

func (c *Client) AddComment(ctx context.Context, postID string, content string) (model.Comment, error) {
	var comment model.Comment
	err := c.api.Do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/comment", model.CreateCommentRequest{Content: content}, &comment)
	return comment, err
}

func (c *Client) UpdatePushToken(ctx context.Context, pushToken string) error {
	return c.api.Do(ctx, http.MethodPut, "/users/me/push-token", model.UpdatePushTokenRequest{PushToken: pushToken}, nil)
}

func pageValues(page model.PageQuery) url.Values {
	page = page.Normalize()
	q := url.Values{}
	q.Set("page", strconv.Itoa(page.Page))
	q.Set("limit", strconv.Itoa(page.Limit))
	return q
}
