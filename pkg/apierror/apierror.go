// Package apierror carries the error taxonomy shared by services and the HTTP
// layer: each kind maps to one status code.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation   = "VALIDATION"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeTimeout      = "REQUEST_TIMEOUT"
	CodeInternal     = "INTERNAL_ERROR"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

func Validation(message string, details string) *APIError {
	return New(CodeValidation, message, details, http.StatusBadRequest)
}

func Unauthorized(message string) *APIError {
	return New(CodeUnauthorized, message, "", http.StatusUnauthorized)
}

func NotFound(message string, details string) *APIError {
	return New(CodeNotFound, message, details, http.StatusNotFound)
}

func Conflict(message string, details string) *APIError {
	return New(CodeConflict, message, details, http.StatusConflict)
}

// HasCode reports whether err wraps an APIError of the given kind.
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == code
}
