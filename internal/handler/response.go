package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"go-social-feed/internal/model"
	"go-social-feed/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, pagination *model.Pagination) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success:    true,
		Data:       data,
		Pagination: pagination,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := model.APIResponse{
		Code:  apierror.CodeInternal,
		Error: "Internal server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Error = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Error = "User not found"
	} else if errors.Is(err, model.ErrPostNotFound) {
		status = http.StatusNotFound
		body.Code = apierror.CodeNotFound
		body.Error = "Post not found"
	} else if errors.Is(err, model.ErrEmailTaken) {
		status = http.StatusConflict
		body.Code = apierror.CodeConflict
		body.Error = "Email already in use"
	} else if errors.Is(err, model.ErrUsernameTaken) {
		status = http.StatusConflict
		body.Code = apierror.CodeConflict
		body.Error = "Username already taken"
	} else if errors.Is(err, model.ErrInvalidToken) {
		status = http.StatusUnauthorized
		body.Code = apierror.CodeUnauthorized
		body.Error = "Invalid or expired access token"
	} else {
		// Unclassified errors are logged so they are visible in container logs.
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, apierror.Validation("Invalid JSON body", ""))
		return false
	}
	return true
}

func parseIntOrDefault(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func pageFromRequest(r *http.Request) model.PageQuery {
	query := r.URL.Query()
	return model.PageQuery{
		Page:  parseIntOrDefault(query.Get("page"), 1),
		Limit: parseIntOrDefault(query.Get("limit"), 10),
	}
}
