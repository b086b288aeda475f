package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-social-feed/internal/middleware"
	"go-social-feed/internal/model"
	"go-social-feed/internal/service"
	"go-social-feed/pkg/apierror"
)

type PostHandler struct {
	posts        *service.PostService
	interactions *service.InteractionService
}

func NewPostHandler(posts *service.PostService, interactions *service.InteractionService) *PostHandler {
	return &PostHandler{posts: posts, interactions: interactions}
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("Missing or invalid authorization header"))
		return
	}

	var payload model.CreatePostRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	post, err := h.posts.CreatePost(r.Context(), userID, payload.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, post, nil)
}

func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	posts, pagination, err := h.posts.Feed(r.Context(), userID, strings.TrimSpace(r.URL.Query().Get("username")), pageFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, posts, pagination)
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	post, err := h.posts.GetPost(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, post, nil)
}

func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("Missing or invalid authorization header"))
		return
	}

	result, err := h.interactions.ToggleLike(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}

func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("Missing or invalid authorization header"))
		return
	}

	var payload model.CreateCommentRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	comment, err := h.interactions.AddComment(r.Context(), userID, chi.URLParam(r, "id"), payload.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, comment, nil)
}

func (h *PostHandler) Comments(w http.ResponseWriter, r *http.Request) {
	comments, pagination, err := h.interactions.GetComments(r.Context(), chi.URLParam(r, "id"), pageFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, comments, pagination)
}
