package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go-social-feed/pkg/apierror"
)

type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	checker HealthChecker
}

func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.checker.Health(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		writeError(w, apierror.New(apierror.CodeInternal, "Database unavailable", "", http.StatusServiceUnavailable))
		return
	}

	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, nil)
}
