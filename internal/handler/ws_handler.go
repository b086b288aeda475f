package handler

import (
	"net/http"

	"go-social-feed/internal/middleware"
	"go-social-feed/internal/websocket"
	"go-social-feed/pkg/apierror"
)

type LiveHandler struct {
	server *websocket.Server
}

func NewLiveHandler(server *websocket.Server) *LiveHandler {
	return &LiveHandler{server: server}
}

func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthorized("Missing or invalid authorization header"))
		return
	}

	h.server.Serve(w, r, userID)
}
