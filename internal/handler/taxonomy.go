package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/snipvault/snipvault/internal/service"
)

// TaxonomyHandler serves the category and language reference endpoints.
// Listing is public; create and delete are mounted behind RequireAdmin.
type TaxonomyHandler struct {
	taxonomy *service.TaxonomyService
	logger   *slog.Logger
}

func NewTaxonomyHandler(taxonomy *service.TaxonomyService, logger *slog.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{taxonomy: taxonomy, logger: logger}
}

type taxonRequest struct {
	Name string `json:"name"`
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func (h *TaxonomyHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.taxonomy.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *TaxonomyHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req taxonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	cat, err := h.taxonomy.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (h *TaxonomyHandler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "category id must be numeric"})
		return
	}

	if err := h.taxonomy.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TaxonomyHandler) HandleListLanguages(w http.ResponseWriter, r *http.Request) {
	langs, err := h.taxonomy.ListLanguages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, langs)
}

func (h *TaxonomyHandler) HandleCreateLanguage(w http.ResponseWriter, r *http.Request) {
	var req taxonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid JSON body"})
		return
	}

	lang, err := h.taxonomy.CreateLanguage(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lang)
}

func (h *TaxonomyHandler) HandleDeleteLanguage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "language id must be numeric"})
		return
	}

	if err := h.taxonomy.DeleteLanguage(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
