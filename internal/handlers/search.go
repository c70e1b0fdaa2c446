package handlers

import (
	"net/http"
	"strconv"

	"photo-album/internal/database"
	"photo-album/internal/search"
)

func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	mode := search.Mode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = search.ModeText
	}
	if mode != search.ModeText && mode != search.ModeAI {
		writeJSONError(w, "Invalid search mode", http.StatusBadRequest)
		return
	}

	scope := database.Scope{
		Kind: database.Kind(r.URL.Query().Get("kind")),
	}
	if scope.Kind != "" && !scope.Kind.Valid() {
		writeJSONError(w, "Invalid media kind", http.StatusBadRequest)
		return
	}
	if albumID, err := strconv.ParseInt(r.URL.Query().Get("albumId"), 10, 64); err == nil && albumID > 0 {
		scope.AlbumID = albumID
	}

	response, err := h.engine.Search(r.Context(), r.URL.Query().Get("q"), mode, scope)
	if err != nil {
		writeJSONError(w, "Search failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}
