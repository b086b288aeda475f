//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-social-feed/internal/model"
)

func TestFeedFlow(t *testing.T) {
	server := newServer(t)
	author := signup(t, server.URL)
	reader := signup(t, server.URL)

	resp, env := doJSON(t, http.MethodPost, server.URL+"/posts", model.CreatePostRequest{Content: "  hello feed  "}, author.AccessToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
	var post model.Post
	decodeData(t, env, &post)
	assert.Equal(t, "hello feed", post.Content)

	resp, env = doJSON(t, http.MethodPost, server.URL+"/posts/"+post.ID+"/like", nil, reader.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var like model.LikeResult
	decodeData(t, env, &like)
	assert.Equal(t, model.LikeResult{Liked: true, LikesCount: 1}, like)

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/posts/"+post.ID+"/comment", model.CreateCommentRequest{Content: "nice"}, reader.AccessToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env = doJSON(t, http.MethodGet, server.URL+"/posts?page=1&limit=10", nil, reader.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var feed []model.Post
	decodeData(t, env, &feed)
	require.Len(t, feed, 1)
	assert.True(t, feed[0].IsLiked)
	assert.Equal(t, 1, feed[0].LikesCount)
	assert.Equal(t, 1, feed[0].CommentsCount)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.Total)

	// The author sees the same post but has not liked it.
	resp, env = doJSON(t, http.MethodGet, server.URL+"/posts/"+post.ID, nil, author.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, env, &post)
	assert.False(t, post.IsLiked)

	resp, env = doJSON(t, http.MethodGet, server.URL+"/posts?username="+reader.User.Username, nil, reader.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeData(t, env, &feed)
	assert.Empty(t, feed)

	resp, env = doJSON(t, http.MethodGet, server.URL+"/posts/"+post.ID+"/comments", nil, author.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var comments []model.Comment
	decodeData(t, env, &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, reader.User.Username, comments[0].User.Username)

	resp, env = doJSON(t, http.MethodPost, server.URL+"/posts", model.CreatePostRequest{Content: strings.Repeat("x", 501)}, author.AccessToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", env.Code)
}

func TestLiveEventsOverWebsocket(t *testing.T) {
	server := newServer(t)
	author := signup(t, server.URL)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + author.AccessToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration is asynchronous; keep posting until the first event arrives.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				req, _ := http.NewRequest(http.MethodPost, server.URL+"/posts", strings.NewReader(`{"content":"live"}`))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Authorization", "Bearer "+author.AccessToken)
				if resp, err := http.DefaultClient.Do(req); err == nil {
					_ = resp.Body.Close()
				}
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type    string `json:"type"`
		ActorID string `json:"actorId"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "post.created", msg.Type)
	assert.Equal(t, author.User.ID, msg.ActorID)
}

func TestWebsocketRequiresToken(t *testing.T) {
	server := newServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
