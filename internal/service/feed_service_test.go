package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-social-feed/internal/event"
	"go-social-feed/internal/model"
	"go-social-feed/internal/repository/memory"
	"go-social-feed/pkg/apierror"
)

type feedFixture struct {
	store        *memory.Store
	bus          *event.InMemoryBus
	events       <-chan event.Event
	posts        *PostService
	interactions *InteractionService
}

func newFeedFixture(t *testing.T) feedFixture {
	t.Helper()

	store := memory.New()
	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	t.Cleanup(unsubscribe)

	return feedFixture{
		store:        store,
		bus:          bus,
		events:       events,
		posts:        NewPostService(store.Posts(), bus),
		interactions: NewInteractionService(store.Posts(), store.Likes(), store.Comments(), store.Users(), bus),
	}
}

func (f feedFixture) user(t *testing.T, username string) model.User {
	t.Helper()
	now := time.Now().UTC()
	u := model.User{ID: gofakeit.UUID(), Username: username, Email: gofakeit.Email(), PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func (f feedFixture) nextEvent(t *testing.T) event.Event {
	t.Helper()
	select {
	case e := <-f.events:
		return e
	case <-time.After(time.Second):
		t.Fatal("expected an event")
		return event.Event{}
	}
}

func (f feedFixture) assertNoEvent(t *testing.T) {
	t.Helper()
	select {
	case e := <-f.events:
		t.Fatalf("unexpected event %s", e.Type)
	default:
	}
}

func TestCreatePostValidatesAndPublishes(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	_, err := f.posts.CreatePost(ctx, alice.ID, "   ")
	assert.True(t, apierror.HasCode(err, apierror.CodeValidation))

	_, err = f.posts.CreatePost(ctx, alice.ID, strings.Repeat("é", 501))
	assert.True(t, apierror.HasCode(err, apierror.CodeValidation))

	post, err := f.posts.CreatePost(ctx, alice.ID, "  hello world  ")
	require.NoError(t, err)
	assert.Equal(t, "hello world", post.Content)
	assert.Equal(t, "alice", post.User.Username)
	assert.Zero(t, post.LikesCount)

	e := f.nextEvent(t)
	assert.Equal(t, event.TypePostCreated, e.Type)
	assert.Equal(t, post.ID, e.Payload.(event.PostCreated).PostID)
}

func TestFeedPagination(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	for i := 0; i < 12; i++ {
		_, err := f.posts.CreatePost(ctx, alice.ID, gofakeit.Sentence(4))
		require.NoError(t, err)
	}

	posts, page, err := f.posts.Feed(ctx, alice.ID, "", model.PageQuery{})
	require.NoError(t, err)
	assert.Len(t, posts, 10)
	assert.Equal(t, &model.Pagination{Page: 1, Limit: 10, Total: 12, TotalPages: 2}, page)

	posts, page, err = f.posts.Feed(ctx, alice.ID, "", model.PageQuery{Page: 2, Limit: 500})
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, 50, page.Limit)

	posts, _, err = f.posts.Feed(ctx, alice.ID, "nobody", model.PageQuery{})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestGetPostNotFound(t *testing.T) {
	f := newFeedFixture(t)
	_, err := f.posts.GetPost(context.Background(), "viewer", "missing")
	assert.True(t, apierror.HasCode(err, apierror.CodeNotFound))
}

func TestToggleLikePublishesOnlyForOthers(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	post, err := f.posts.CreatePost(ctx, alice.ID, "hi")
	require.NoError(t, err)
	f.nextEvent(t)

	res, err := f.interactions.ToggleLike(ctx, alice.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	f.assertNoEvent(t)

	res, err = f.interactions.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LikeResult{Liked: true, LikesCount: 2}, res)

	e := f.nextEvent(t)
	require.Equal(t, event.TypePostLiked, e.Type)
	liked := e.Payload.(event.PostLiked)
	assert.Equal(t, alice.ID, liked.PostAuthorID)
	assert.Equal(t, "bob", liked.LikerUsername)

	res, err = f.interactions.ToggleLike(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LikeResult{Liked: false, LikesCount: 1}, res)
	f.assertNoEvent(t)

	_, err = f.interactions.ToggleLike(ctx, bob.ID, "missing")
	assert.True(t, apierror.HasCode(err, apierror.CodeNotFound))
}

func TestCommentsFlow(t *testing.T) {
	f := newFeedFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	post, err := f.posts.CreatePost(ctx, alice.ID, "hi")
	require.NoError(t, err)
	f.nextEvent(t)

	_, err = f.interactions.AddComment(ctx, bob.ID, post.ID, "")
	assert.True(t, apierror.HasCode(err, apierror.CodeValidation))

	_, err = f.interactions.AddComment(ctx, bob.ID, "missing", "hey")
	assert.True(t, apierror.HasCode(err, apierror.CodeNotFound))

	comment, err := f.interactions.AddComment(ctx, bob.ID, post.ID, "nice post")
	require.NoError(t, err)
	assert.Equal(t, "bob", comment.User.Username)

	e := f.nextEvent(t)
	require.Equal(t, event.TypeCommentCreated, e.Type)
	assert.Equal(t, comment.ID, e.Payload.(event.CommentCreated).CommentID)

	_, err = f.interactions.AddComment(ctx, alice.ID, post.ID, "thanks")
	require.NoError(t, err)
	f.assertNoEvent(t)

	comments, page, err := f.interactions.GetComments(ctx, post.ID, model.PageQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, comments, 1)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)

	_, _, err = f.interactions.GetComments(ctx, "missing", model.PageQuery{})
	assert.True(t, apierror.HasCode(err, apierror.CodeNotFound))
}
