package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/snipvault/snipvault/internal/auth"
	"github.com/snipvault/snipvault/internal/repository"
	"github.com/snipvault/snipvault/internal/service"
)

// SnippetHandler serves the catalog's read facets and the authenticated
// write operations.
type SnippetHandler struct {
	snippets *service.SnippetService
	users    auth.UserLoader
	logger   *slog.Logger
}

func NewSnippetHandler(snippets *service.SnippetService, users auth.UserLoader, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, users: users, logger: logger}
}

// snippetRequest is the write payload. Identifiers, owner, and timestamps are
// server-assigned and absent here on purpose.
type snippetRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Code         string `json:"code"`
	Tags         string `json:"tags"`
	ReferenceURL string `json:"referenceUrl"`
	CategoryID   *int64 `json:"categoryId"`
	LanguageID   *int64 `json:"languageId"`
	IsPrivate    bool   `json:"isPrivate"`
}

func (r snippetRequest) toInput() service.SnippetInput {
	return service.SnippetInput{
		Title:        r.Title,
		Description:  r.Description,
		Code:         r.Code,
		Tags:         r.Tags,
		ReferenceURL: r.ReferenceURL,
		CategoryID:   r.CategoryID,
		LanguageID:   r.LanguageID,
		IsPrivate:    r.IsPrivate,
	}
}

// parsePage reads ?page= and ?limit=. Out-of-range values are left to
// Page.Clamp — the handler never rejects a page number, it just serves an
// empty page past the end.
func parsePage(r *http.Request) repository.Page {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return repository.Page{Number: page, Size: limit}
}

// actor resolves the authenticated user into the mutation identity. The
// admin flag comes from the stored record, never from the request.
func (h *SnippetHandler) actor(r *http.Request) (repository.Actor, error) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		return repository.Actor{}, err
	}
	return repository.Actor{UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

// --- Reads -----------------------------------------------------------------

// HandleList serves GET /api/snippets — the unfiltered facet (visibility
// policy still applies, as everywhere).
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	items, total, err := h.snippets.ListAll(r.Context(), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(items, total, page))
}

// HandleListByCategory serves GET /api/snippets/category/{id}.
func (h *SnippetHandler) HandleListByCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "category id must be numeric"})
		return
	}

	page := parsePage(r)
	items, total, err := h.snippets.ListByCategory(r.Context(), id, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(items, total, page))
}

// HandleListByLanguage serves GET /api/snippets/language/{id}.
func (h *SnippetHandler) HandleListByLanguage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "language id must be numeric"})
		return
	}

	page := parsePage(r)
	items, total, err := h.snippets.ListByLanguage(r.Context(), id, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(items, total, page))
}

// HandleListByAuthor serves GET /api/snippets/author/{username}.
func (h *SnippetHandler) HandleListByAuthor(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	items, total, err := h.snippets.ListByAuthor(r.Context(), r.PathValue("username"), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(items, total, page))
}

// HandleListByTag serves GET /api/snippets/tag/{tag}.
func (h *SnippetHandler) HandleListByTag(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	items, total, err := h.snippets.ListByTag(r.Context(), r.PathValue("tag"), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(items, total, page))
}

// HandleSearch serves GET /api/snippets/search?q=term.
func (h *SnippetHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r)
	items, total, err := h.snippets.Search(r.Context(), r.URL.Query().Get("q"), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(items, total, page))
}

// HandleListMine serves GET /api/snippets/mine — the owner's view, private
// snippets included.
func (h *SnippetHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	page := parsePage(r)
	items, total, err := h.snippets.ListOwn(r.Context(), userID, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(items, total, page))
}

// HandleTags serves GET /api/tags — the derived tag-frequency index.
func (h *SnippetHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	index, err := h.snippets.TagIndex(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, index)
}

// HandleGet serves GET /api/snippets/{identifier} where identifier is a slug
// or a short ID. Mounted behind OptionalAuth: a logged-in viewer resolves
// their own private snippets too.
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())
	snippet, err := h.snippets.Get(r.Context(), r.PathValue("identifier"), viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// --- Writes ----------------------------------------------------------------

// HandleCreate serves POST /api/snippets.
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	snippet, err := h.snippets.Create(r.Context(), req.toInput(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleUpdate serves PUT /api/snippets/{identifier}. Unlike the GET route,
// mutations accept only the numeric ID.
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("identifier"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "snippet id must be numeric"})
		return
	}

	var req snippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	actor, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.snippets.Update(r.Context(), id, req.toInput(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete serves DELETE /api/snippets/{identifier}. Numeric ID only,
// same as HandleUpdate.
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("identifier"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "snippet id must be numeric"})
		return
	}

	actor, err := h.actor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.snippets.Delete(r.Context(), id, actor); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
