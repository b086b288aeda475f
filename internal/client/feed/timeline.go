package feed

import (
	"context"
	"errors"
	"sync"

	"go-social-feed/internal/model"
)

var ErrPostNotLoaded = errors.New("post is not in the timeline")

// Timeline caches the pages of one feed. Loading page 1 replaces the cache,
// later pages append to it.
type Timeline struct {
	client   *Client
	username string

	mu    sync.Mutex
	posts []model.Post
	meta  *model.Pagination
}

func NewTimeline(client *Client, username string) *Timeline {
	return &Timeline{client: client, username: username}
}

func (t *Timeline) Load(ctx context.Context, page model.PageQuery) error {
	page = page.Normalize()

	posts, meta, err := t.client.Feed(ctx, t.username, page)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if page.Page == 1 {
		t.posts = posts
	} else {
		seen := make(map[string]struct{}, len(t.posts))
		for _, p := range t.posts {
			seen[p.ID] = struct{}{}
		}
		for _, p := range posts {
			if _, dup := seen[p.ID]; !dup {
				t.posts = append(t.posts, p)
			}
		}
	}
	t.meta = meta
	return nil
}

// LoadMore fetches the page after the last one loaded. It reports false once
// the feed is exhausted.
func (t *Timeline) LoadMore(ctx context.Context) (bool, error) {
	t.mu.Lock()
	meta := t.meta
	t.mu.Unlock()

	if meta == nil {
		return true, t.Load(ctx, model.PageQuery{Page: 1})
	}
	if meta.Page >= meta.TotalPages {
		return false, nil
	}
	return true, t.Load(ctx, model.PageQuery{Page: meta.Page + 1, Limit: meta.Limit})
}

func (t *Timeline) Posts() []model.Post {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.Post, len(t.posts))
	copy(out, t.posts)
	return out
}

func (t *Timeline) Pagination() *model.Pagination {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.meta == nil {
		return nil
	}
	meta := *t.meta
	return &meta
}

// ToggleLike flips the cached like state before the server answers. On
// success the server's count wins; on failure the flip is undone.
func (t *Timeline) ToggleLike(ctx context.Context, postID string) (model.LikeResult, error) {
	undo, ok := t.flip(postID)
	if !ok {
		return model.LikeResult{}, ErrPostNotLoaded
	}

	result, err := t.client.ToggleLike(ctx, postID)
	if err != nil {
		undo()
		return model.LikeResult{}, err
	}

	t.update(postID, func(p *model.Post) {
		p.IsLiked = result.Liked
		p.LikesCount = result.LikesCount
	})
	return result, nil
}

// flip applies the optimistic toggle and returns its inverse.
func (t *Timeline) flip(postID string) (func(), bool) {
	var delta int
	found := t.update(postID, func(p *model.Post) {
		p.IsLiked = !p.IsLiked
		delta = 1
		if !p.IsLiked {
			delta = -1
		}
		p.LikesCount += delta
	})
	if !found {
		return nil, false
	}

	return func() {
		t.update(postID, func(p *model.Post) {
			p.IsLiked = !p.IsLiked
			p.LikesCount -= delta
		})
	}, true
}

func (t *Timeline) update(postID string, fn func(*model.Post)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.posts {
		if t.posts[i].ID == postID {
			fn(&t.posts[i])
			return true
		}
	}
	return false
}
