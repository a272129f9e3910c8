// Package handler is the HTTP layer: it parses requests, calls services, and
// writes JSON responses. No business rules and no SQL live here.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/snipvault/snipvault/internal/apperror"
	"github.com/snipvault/snipvault/internal/model"
	"github.com/snipvault/snipvault/internal/repository"
)

// ErrorResponse is the uniform error shape for every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "not_found"
	Message string `json:"message"` // human-readable description
}

// pageResponse wraps one facet page with the metadata callers need to build
// pagination controls. Page and PerPage echo the clamped values that paging
// actually honoured; TotalPages is ceil(Total/PerPage).
type pageResponse struct {
	Items      []model.Snippet `json:"items"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PerPage    int             `json:"perPage"`
	TotalPages int             `json:"totalPages"`
}

func newPageResponse(items []model.Snippet, total int, page repository.Page) pageResponse {
	c := page.Clamp()
	return pageResponse{
		Items:      items,
		Total:      total,
		Page:       c.Number,
		PerPage:    c.Size,
		TotalPages: (total + c.Size - 1) / c.Size,
	}
}

// writeJSON sends data with the given status. Headers and status must go out
// before the first body byte, hence the ordering here.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status. Unknown errors become an
// opaque 500 — raw messages can carry SQL fragments or file paths and never
// reach clients.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		kind := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			kind = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			kind = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			kind = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			kind = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			kind = "conflict"
		}

		writeJSON(w, status, ErrorResponse{Error: kind, Message: appErr.Message})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}
