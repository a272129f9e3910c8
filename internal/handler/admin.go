package handler

import (
	"log/slog"
	"net/http"

	"github.com/snipvault/snipvault/internal/service"
)

// AdminHandler serves the admin dashboard endpoints. Every route here is
// mounted behind RequireAuth + RequireAdmin, and the snippet listing bypasses
// the visibility policy entirely.
type AdminHandler struct {
	auth     *service.AuthService
	snippets *service.SnippetService
	logger   *slog.Logger
}

func NewAdminHandler(authSvc *service.AuthService, snippets *service.SnippetService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{auth: authSvc, snippets: snippets, logger: logger}
}

// HandleListUsers serves GET /api/admin/users.
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleApproveUser serves POST /api/admin/users/{id}/approve.
func (h *AdminHandler) HandleApproveUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "user id must be numeric"})
		return
	}

	if err := h.auth.ApproveUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user approved"})
}

// HandleDeleteUser serves DELETE /api/admin/users/{id}. The user's snippets
// go with the account (FK cascade).
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "user id must be numeric"})
		return
	}

	if err := h.auth.DeleteUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListSnippets serves GET /api/admin/snippets: every snippet,
// unfiltered.
func (h *AdminHandler) HandleListSnippets(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	items, total, err := h.snippets.ListUnfiltered(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(items, total, page))
}
