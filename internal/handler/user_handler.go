package handler

import (
	"net/http"

	"go-social-feed/internal/middleware"
	"go-social-feed/internal/model"
	"go-social-feed/internal/service"
	"go-social-feed/pkg/apierror"
)

type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("Missing or invalid authorization header"))
		return
	}

	var payload model.UpdatePushTokenRequest
	if !decodeJSON(w, r, &payload) {
		return
	}

	if err := h.service.UpdatePushToken(r.Context(), userID, payload.PushToken); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"message": "Push token updated"}, nil)
}
