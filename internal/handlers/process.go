package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"photo-album/internal/database"
	"photo-album/internal/scheduler"
)

// ProcessItem queues a single media item for AI analysis. Enqueueing is
// idempotent: an item already claimed by another caller reports skipped.
func (h *Handlers) ProcessItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "Invalid item ID", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetItem(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Item not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "Failed to load item", http.StatusInternalServerError)
		return
	}

	queued, err := h.pipeline.Enqueue(r.Context(), id)
	if err != nil {
		writeJSONError(w, "Failed to queue item", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if !queued {
		writeJSON(w, map[string]interface{}{"id": id, "status": "skipped"})
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]interface{}{"id": id, "status": "queued"})
}

// RetryItem moves a failed (or wedged processing) item back to pending so
// the next batch picks it up again.
func (h *Handlers) RetryItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "Invalid item ID", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetItem(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Item not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "Failed to load item", http.StatusInternalServerError)
		return
	}

	reset, err := h.db.ResetToPending(r.Context(), id)
	if err != nil {
		writeJSONError(w, "Failed to reset item", http.StatusInternalServerError)
		return
	}
	if !reset {
		writeJSONError(w, "Item is not in a retryable state", http.StatusConflict)
		return
	}

	writeJSONStatus(w, "pending")
}

// ProcessBatch queues a batch of pending items. The role parameter caps
// how many items non-site admins may request per call; enforcing who may
// claim which role is the caller's job.
func (h *Handlers) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	kind := database.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = database.KindPhoto
	}
	if !kind.Valid() {
		writeJSONError(w, "Invalid media kind", http.StatusBadRequest)
		return
	}

	role, ok := parseRole(r.URL.Query().Get("role"))
	if !ok {
		writeJSONError(w, "Invalid role", http.StatusBadRequest)
		return
	}

	limit := 0
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	result, err := h.scheduler.RunManualBatch(r.Context(), kind, role, limit)
	if err != nil {
		writeJSONError(w, "Batch processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, result)
}

func parseRole(s string) (scheduler.Role, bool) {
	switch s {
	case "", "album_admin":
		return scheduler.RoleAlbumAdmin, true
	case "site_admin":
		return scheduler.RoleSiteAdmin, true
	}
	return scheduler.RoleAlbumAdmin, false
}
