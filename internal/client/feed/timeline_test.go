package feed

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go-social-feed/internal/model"
)

type mockDoer struct {
	mock.Mock
}

func (m *mockDoer) Do(ctx context.Context, method string, path string, body any, out any) error {
	args := m.Called(ctx, method, path, body, out)
	return args.Error(0)
}

func (m *mockDoer) DoPage(ctx context.Context, method string, path string, body any, out any) (*model.Pagination, error) {
	args := m.Called(ctx, method, path, body, out)
	meta, _ := args.Get(0).(*model.Pagination)
	return meta, args.Error(1)
}

func expectPage(api *mockDoer, path string, posts []model.Post, meta model.Pagination) {
	api.On("DoPage", mock.Anything, http.MethodGet, path, nil, mock.Anything).
		Run(func(args mock.Arguments) {
			*args.Get(4).(*[]model.Post) = posts
		}).
		Return(&meta, nil).Once()
}

func post(id string, likes int, liked bool) model.Post {
	return model.Post{ID: id, Content: "post " + id, LikesCount: likes, IsLiked: liked}
}

func ids(posts []model.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestTimelinePagesAppendAndFirstPageReplaces(t *testing.T) {
	api := &mockDoer{}
	tl := NewTimeline(NewClient(api), "")
	ctx := context.Background()

	expectPage(api, "/posts?limit=2&page=1", []model.Post{post("a", 0, false), post("b", 0, false)}, model.Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2})
	expectPage(api, "/posts?limit=2&page=2", []model.Post{post("b", 0, false), post("c", 0, false)}, model.Pagination{Page: 2, Limit: 2, Total: 3, TotalPages: 2})
	expectPage(api, "/posts?limit=2&page=1", []model.Post{post("z", 0, false)}, model.Pagination{Page: 1, Limit: 2, Total: 1, TotalPages: 1})

	require.NoError(t, tl.Load(ctx, model.PageQuery{Page: 1, Limit: 2}))

	more, err := tl.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, []string{"a", "b", "c"}, ids(tl.Posts()))

	more, err = tl.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, more)

	require.NoError(t, tl.Load(ctx, model.PageQuery{Page: 1, Limit: 2}))
	assert.Equal(t, []string{"z"}, ids(tl.Posts()))
	api.AssertExpectations(t)
}

func TestTimelineFiltersByUsername(t *testing.T) {
	api := &mockDoer{}
	tl := NewTimeline(NewClient(api), "alice")

	expectPage(api, "/posts?limit=10&page=1&username=alice", []model.Post{post("a", 0, false)}, model.Pagination{Page: 1, Limit: 10, Total: 1, TotalPages: 1})

	require.NoError(t, tl.Load(context.Background(), model.PageQuery{}))
	assert.Len(t, tl.Posts(), 1)
	assert.Equal(t, 1, tl.Pagination().Total)
}

func TestTimelineToggleLikeReconcilesWithServer(t *testing.T) {
	api := &mockDoer{}
	tl := NewTimeline(NewClient(api), "")
	ctx := context.Background()

	expectPage(api, "/posts?limit=10&page=1", []model.Post{post("a", 4, false)}, model.Pagination{Page: 1, Limit: 10, Total: 1, TotalPages: 1})
	require.NoError(t, tl.Load(ctx, model.PageQuery{}))

	api.On("Do", mock.Anything, http.MethodPost, "/posts/a/like", nil, mock.Anything).
		Run(func(args mock.Arguments) {
			// The optimistic flip is visible while the request is in flight.
			p := tl.Posts()[0]
			assert.True(t, p.IsLiked)
			assert.Equal(t, 5, p.LikesCount)

			*args.Get(4).(*model.LikeResult) = model.LikeResult{Liked: true, LikesCount: 7}
		}).
		Return(nil).Once()

	result, err := tl.ToggleLike(ctx, "a")
	require.NoError(t, err)
	assert.True(t, result.Liked)

	p := tl.Posts()[0]
	assert.True(t, p.IsLiked)
	assert.Equal(t, 7, p.LikesCount)
}

func TestTimelineToggleLikeRollsBackOnFailure(t *testing.T) {
	api := &mockDoer{}
	tl := NewTimeline(NewClient(api), "")
	ctx := context.Background()

	expectPage(api, "/posts?limit=10&page=1", []model.Post{post("a", 3, true)}, model.Pagination{Page: 1, Limit: 10, Total: 1, TotalPages: 1})
	require.NoError(t, tl.Load(ctx, model.PageQuery{}))

	boom := errors.New("network down")
	api.On("Do", mock.Anything, http.MethodPost, "/posts/a/like", nil, mock.Anything).Return(boom).Once()

	_, err := tl.ToggleLike(ctx, "a")
	require.ErrorIs(t, err, boom)

	p := tl.Posts()[0]
	assert.True(t, p.IsLiked)
	assert.Equal(t, 3, p.LikesCount)
}

func TestTimelineToggleLikeUnknownPost(t *testing.T) {
	tl := NewTimeline(NewClient(&mockDoer{}), "")

	_, err := tl.ToggleLike(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPostNotLoaded)
}

func TestClientPaths(t *testing.T) {
	api := &mockDoer{}
	c := NewClient(api)
	ctx := context.Background()

	api.On("Do", mock.Anything, http.MethodPost, "/posts", model.CreatePostRequest{Content: "hi"}, mock.Anything).Return(nil).Once()
	api.On("Do", mock.Anything, http.MethodPost, "/posts/p%2F1/comment", model.CreateCommentRequest{Content: "yo"}, mock.Anything).Return(nil).Once()
	api.On("Do", mock.Anything, http.MethodPut, "/users/me/push-token", model.UpdatePushTokenRequest{PushToken: "tok"}, nil).Return(nil).Once()
	api.On("DoPage", mock.Anything, http.MethodGet, "/posts/p1/comments?limit=50&page=2", nil, mock.Anything).Return(&model.Pagination{Page: 2}, nil).Once()

	_, err := c.CreatePost(ctx, "hi")
	require.NoError(t, err)
	_, err = c.AddComment(ctx, "p/1", "yo")
	require.NoError(t, err)
	require.NoError(t, c.UpdatePushToken(ctx, "tok"))
	_, meta, err := c.Comments(ctx, "p1", model.PageQuery{Page: 2, Limit: 99})
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Page)

	api.AssertExpectations(t)
}
