package handlers

import (
	"net/http"
	"strconv"

	"photo-album/internal/database"
)

// Status reports item counts by processing state, optionally scoped to a
// single album or media kind. Orphaned items are reported separately and
// excluded from the pending count.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
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

	counts, err := h.scheduler.Status(r.Context(), scope)
	if err != nil {
		writeJSONError(w, "Failed to collect status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, counts)
}
