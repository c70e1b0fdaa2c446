package handlers

import (
	"net/http"
	"runtime"
	"time"

	"photo-album/internal/database"
	"photo-album/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Ready            bool   `json:"ready"`
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
	EmbeddingEnabled bool   `json:"embeddingEnabled"`
	MemoryPaused     bool   `json:"memoryPaused"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalItems int `json:"totalItems,omitempty"`
}

// HealthCheck returns the health status of the service. The service is
// degraded rather than unhealthy when embedding models are missing:
// analysis still works through the remaining backends. A memory pause
// also reports degraded while the pipeline holds tasks.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:           statusHealthy,
		Ready:            true,
		Version:          startup.Version,
		Uptime:           time.Since(h.startedAt).Round(time.Second).String(),
		EmbeddingEnabled: h.embeddingEnabled,
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
	}

	if !h.embeddingEnabled {
		response.Status = statusDegraded
	}
	if h.memory != nil && h.memory.IsPaused() {
		response.Status = statusDegraded
		response.MemoryPaused = true
	}

	stats := h.db.GetStats()
	for _, byStatus := range stats.Counts {
		for _, count := range byStatus {
			response.TotalItems += count
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 once the database answers queries.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := h.db.StatusCounts(r.Context(), database.Scope{}); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{
		"status": "ready",
	})
}
