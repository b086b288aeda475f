// Package memory keeps every table in process memory behind one lock. It
// mirrors the Postgres repositories and backs tests and STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-social-feed/internal/model"
)

type tokenRow struct {
	userID    string
	createdAt time.Time
	expiresAt time.Time
}

type likeKey struct {
	userID string
	postID string
}

type postRow struct {
	id        string
	content   string
	userID    string
	createdAt time.Time
	updatedAt time.Time
}

type commentRow struct {
	id        string
	content   string
	userID    string
	postID    string
	createdAt time.Time
}

type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	users    map[string]model.User
	tokens   map[string]tokenRow
	posts    map[string]postRow
	likes    map[likeKey]time.Time
	comments []commentRow
}

func New() *Store {
	return &Store{
		now:    func() time.Time { return time.Now().UTC() },
		users:  map[string]model.User{},
		tokens: map[string]tokenRow{},
		posts:  map[string]postRow{},
		likes:  map[likeKey]time.Time{},
	}
}

// SetClock replaces the time source used for expiry checks.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Users() *UserRepository       { return &UserRepository{s: s} }
func (s *Store) Tokens() *TokenRepository     { return &TokenRepository{s: s} }
func (s *Store) Posts() *PostRepository       { return &PostRepository{s: s} }
func (s *Store) Likes() *LikeRepository       { return &LikeRepository{s: s} }
func (s *Store) Comments() *CommentRepository { return &CommentRepository{s: s} }

// Health always succeeds.
func (s *Store) Health(context.Context) error { return nil }

// TokenCount reports how many refresh tokens are recorded.
func (s *Store) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

type UserRepository struct{ s *Store }

func (r *UserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = strings.TrimSpace(email)
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if err == model.ErrUserNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *UserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	username = strings.TrimSpace(username)
	for _, u := range r.s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) Create(_ context.Context, u model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return model.ErrEmailTaken
		}
		if existing.Username == u.Username {
			return model.ErrUsernameTaken
		}
	}
	r.s.users[u.ID] = u
	return nil
}

func (r *UserRepository) UpdatePushToken(_ context.Context, userID string, pushToken string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PushToken = &pushToken
	u.UpdatedAt = r.s.now()
	r.s.users[userID] = u
	return nil
}

type TokenRepository struct{ s *Store }

func (r *TokenRepository) Record(_ context.Context, token string, userID string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tokens[token]; exists {
		return model.ErrInvalidToken
	}
	r.s.tokens[token] = tokenRow{userID: userID, createdAt: r.s.now(), expiresAt: expiresAt}
	return nil
}

func (r *TokenRepository) Consume(_ context.Context, token string) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.tokens[token]
	if !ok {
		return "", model.ErrTokenNotFound
	}
	if row.expiresAt.Before(r.s.now()) {
		return "", model.ErrTokenExpired
	}
	return row.userID, nil
}

func (r *TokenRepository) Rotate(_ context.Context, oldToken string, userID string, newToken string, newExpiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.tokens[oldToken]
	if !ok {
		return model.ErrTokenNotFound
	}
	delete(r.s.tokens, oldToken)

	now := r.s.now()
	if row.expiresAt.Before(now) {
		return model.ErrTokenExpired
	}
	if row.userID != userID {
		r.s.tokens[oldToken] = row
		return model.ErrTokenNotFound
	}

	r.s.tokens[newToken] = tokenRow{userID: userID, createdAt: now, expiresAt: newExpiresAt}
	return nil
}

func (r *TokenRepository) Revoke(_ context.Context, token string) error {
	r.s.mu.Lock()
	delete(r.s.tokens, token)
	r.s.mu.Unlock()
	return nil
}

func (r *TokenRepository) RevokeOwned(_ context.Context, token string, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.tokens[token]
	if !ok || row.userID != userID {
		return model.ErrTokenNotFound
	}
	delete(r.s.tokens, token)
	return nil
}

func (r *TokenRepository) RevokeAllForUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for token, row := range r.s.tokens {
		if row.userID == userID {
			delete(r.s.tokens, token)
		}
	}
	return nil
}

func (r *TokenRepository) CleanExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	var removed int64
	for token, row := range r.s.tokens {
		if !row.expiresAt.After(now) {
			delete(r.s.tokens, token)
			removed++
		}
	}
	return removed, nil
}

type PostRepository struct{ s *Store }

func (r *PostRepository) Create(ctx context.Context, p model.Post) (model.Post, error) {
	r.s.mu.Lock()
	if _, ok := r.s.users[p.UserID]; !ok {
		r.s.mu.Unlock()
		return model.Post{}, model.ErrUserNotFound
	}
	r.s.posts[p.ID] = postRow{id: p.ID, content: p.Content, userID: p.UserID, createdAt: p.CreatedAt, updatedAt: p.UpdatedAt}
	r.s.mu.Unlock()

	return r.FindByID(ctx, p.ID, p.UserID)
}

func (r *PostRepository) FindByID(_ context.Context, postID string, viewerID string) (model.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.posts[postID]
	if !ok {
		return model.Post{}, model.ErrPostNotFound
	}
	return r.s.projectPostLocked(row, viewerID), nil
}

func (r *PostRepository) AuthorID(_ context.Context, postID string) (string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	row, ok := r.s.posts[postID]
	if !ok {
		return "", model.ErrPostNotFound
	}
	return row.userID, nil
}

func (r *PostRepository) List(_ context.Context, q model.FeedQuery) ([]model.Post, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Username))
	matched := make([]postRow, 0, len(r.s.posts))
	for _, row := range r.s.posts {
		if needle != "" && !strings.Contains(strings.ToLower(r.s.users[row.userID].Username), needle) {
			continue
		}
		matched = append(matched, row)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].createdAt.Equal(matched[j].createdAt) {
			return matched[i].id < matched[j].id
		}
		return matched[i].createdAt.After(matched[j].createdAt)
	})

	page := model.PageQuery{Page: q.Page, Limit: q.Limit}.Normalize()
	start, end := pageBounds(len(matched), page)

	posts := make([]model.Post, 0, end-start)
	for _, row := range matched[start:end] {
		posts = append(posts, r.s.projectPostLocked(row, q.ViewerID))
	}
	return posts, len(matched), nil
}

func (s *Store) projectPostLocked(row postRow, viewerID string) model.Post {
	author := s.users[row.userID]
	post := model.Post{
		ID:        row.id,
		Content:   row.content,
		UserID:    row.userID,
		CreatedAt: row.createdAt,
		UpdatedAt: row.updatedAt,
		User:      model.Author{ID: author.ID, Username: author.Username},
	}
	for key := range s.likes {
		if key.postID != row.id {
			continue
		}
		post.LikesCount++
		if key.userID == viewerID {
			post.IsLiked = true
		}
	}
	for _, c := range s.comments {
		if c.postID == row.id {
			post.CommentsCount++
		}
	}
	return post
}

type LikeRepository struct{ s *Store }

func (r *LikeRepository) Toggle(_ context.Context, userID string, postID string) (model.LikeResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[postID]; !ok {
		return model.LikeResult{}, model.ErrPostNotFound
	}

	key := likeKey{userID: userID, postID: postID}
	result := model.LikeResult{}
	if _, liked := r.s.likes[key]; liked {
		delete(r.s.likes, key)
	} else {
		r.s.likes[key] = r.s.now()
		result.Liked = true
	}

	for k := range r.s.likes {
		if k.postID == postID {
			result.LikesCount++
		}
	}
	return result, nil
}

type CommentRepository struct{ s *Store }

func (r *CommentRepository) Create(_ context.Context, c model.Comment) (model.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.posts[c.PostID]; !ok {
		return model.Comment{}, model.ErrPostNotFound
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.s.comments = append(r.s.comments, commentRow{id: c.ID, content: c.Content, userID: c.UserID, postID: c.PostID, createdAt: c.CreatedAt})

	author := r.s.users[c.UserID]
	c.User = model.Author{ID: author.ID, Username: author.Username}
	return c, nil
}

func (r *CommentRepository) ListByPost(_ context.Context, postID string, q model.PageQuery) ([]model.Comment, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]commentRow, 0)
	for _, c := range r.s.comments {
		if c.postID == postID {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].createdAt.After(matched[j].createdAt)
	})

	q = q.Normalize()
	start, end := pageBounds(len(matched), q)

	out := make([]model.Comment, 0, end-start)
	for _, c := range matched[start:end] {
		author := r.s.users[c.userID]
		out = append(out, model.Comment{
			ID:        c.id,
			Content:   c.content,
			UserID:    c.userID,
			PostID:    c.postID,
			CreatedAt: c.createdAt,
			User:      model.Author{ID: author.ID, Username: author.Username},
		})
	}
	return out, len(matched), nil
}

func pageBounds(total int, q model.PageQuery) (int, int) {
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return start, end
}
