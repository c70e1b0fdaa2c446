package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"photo-album/internal/analysis"
	"photo-album/internal/database"
	"photo-album/internal/memory"
	"photo-album/internal/pipeline"
	"photo-album/internal/scheduler"
	"photo-album/internal/search"
	"photo-album/internal/startup"
	"photo-album/internal/storage"
)

// stubAnalyzer returns a fixed result for every file.
type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, _ string) (*analysis.Result, error) {
	return &analysis.Result{
		Description: "A photograph of a dog in a park",
		Tags:        []string{"dog", "animals", "park", "nature"},
		Confidence:  0.9,
		Backend:     "stub",
	}, nil
}

// stubEmbedder mimics a deployment without embedding models.
type stubEmbedder struct{}

func (stubEmbedder) EmbedImage(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("models not loaded")
}

func (stubEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("models not loaded")
}

type testEnv struct {
	handlers *Handlers
	db       *database.Database
	pipeline *pipeline.Pipeline
	mediaDir string
	router   *mux.Router
}

// setupTestEnv creates a complete handler setup over a real database and
// an in-process pipeline with stubbed analysis.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tempDir := t.TempDir()
	mediaDir := filepath.Join(tempDir, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatalf("failed to create media directory: %v", err)
	}

	db, err := database.New(context.Background(), filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close database: %v", err)
		}
	})

	files := storage.NewDisk(mediaDir)
	pipe := pipeline.New(pipeline.Config{Workers: 2}, db, stubAnalyzer{}, stubEmbedder{}, files)
	sched := scheduler.New(scheduler.Config{
		BatchSize:       500,
		AlbumAdminLimit: 50,
	}, db, pipe, files)
	engine := search.NewEngine(db, stubEmbedder{})

	h := New(db, pipe, sched, engine, nil, &startup.Config{EmbeddingEnabled: false})

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/process/batch", h.ProcessBatch).Methods(http.MethodPost)
	api.HandleFunc("/process/{id}", h.ProcessItem).Methods(http.MethodPost)
	api.HandleFunc("/process/{id}/retry", h.RetryItem).Methods(http.MethodPost)
	api.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	api.HandleFunc("/status", h.Status).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	return &testEnv{handlers: h, db: db, pipeline: pipe, mediaDir: mediaDir, router: r}
}

// addItem creates a backing file and a pending database row for it.
func (e *testEnv) addItem(t *testing.T, name string, kind database.Kind) *database.MediaItem {
	t.Helper()

	fullPath := filepath.Join(e.mediaDir, name)
	if err := os.WriteFile(fullPath, []byte("media"), 0o644); err != nil {
		t.Fatalf("failed to write media file: %v", err)
	}

	item := &database.MediaItem{
		Kind:     kind,
		FilePath: name,
		Title:    name,
	}
	if err := e.db.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	return item
}

func (e *testEnv) request(method, target string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, r)
	return rec
}

func TestProcessItem(t *testing.T) {
	env := setupTestEnv(t)
	item := env.addItem(t, "photo1.jpg", database.KindPhoto)

	rec := env.request(http.MethodPost, "/api/process/"+itoa(item.ID))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "queued" {
		t.Errorf("status = %v, want queued", resp["status"])
	}

	// Item is now claimed; a second enqueue must be a no-op.
	rec = env.request(http.MethodPost, "/api/process/"+itoa(item.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("second enqueue status = %d, want %d", rec.Code, http.StatusOK)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "skipped" {
		t.Errorf("second enqueue status = %v, want skipped", resp["status"])
	}
}

func TestProcessItemRunsToCompletion(t *testing.T) {
	env := setupTestEnv(t)
	item := env.addItem(t, "photo1.jpg", database.KindPhoto)

	env.pipeline.Start()
	rec := env.request(http.MethodPost, "/api/process/"+itoa(item.ID))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.pipeline.Shutdown(ctx); err != nil {
		t.Fatalf("pipeline shutdown: %v", err)
	}

	got, err := env.db.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.Status != database.StatusCompleted {
		t.Errorf("item status = %q, want %q (error: %q)", got.Status, database.StatusCompleted, got.ProcessingError)
	}
	if got.AIDescription == "" {
		t.Error("AI description not persisted")
	}
}

func TestProcessItemNotFound(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.request(http.MethodPost, "/api/process/9999")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestProcessItemInvalidID(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.request(http.MethodPost, "/api/process/abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestProcessBatch(t *testing.T) {
	env := setupTestEnv(t)
	for i := 0; i < 3; i++ {
		env.addItem(t, "photo"+itoa(int64(i))+".jpg", database.KindPhoto)
	}

	rec := env.request(http.MethodPost, "/api/process/batch?kind=photo&role=site_admin")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var result scheduler.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Queued != 3 {
		t.Errorf("Queued = %d, want 3", result.Queued)
	}
}

func TestProcessBatchCountsOrphans(t *testing.T) {
	env := setupTestEnv(t)
	env.addItem(t, "present.jpg", database.KindPhoto)
	orphan := env.addItem(t, "gone.jpg", database.KindPhoto)
	if err := os.Remove(filepath.Join(env.mediaDir, orphan.FilePath)); err != nil {
		t.Fatal(err)
	}

	rec := env.request(http.MethodPost, "/api/process/batch?kind=photo&role=site_admin")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var result scheduler.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Queued != 1 || result.Orphans != 1 {
		t.Errorf("result = %+v, want Queued 1 Orphans 1", result)
	}
}

func TestProcessBatchValidation(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"invalid kind", "/api/process/batch?kind=audio", http.StatusBadRequest},
		{"invalid role", "/api/process/batch?role=superuser", http.StatusBadRequest},
		{"defaults accepted", "/api/process/batch", http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.request(http.MethodPost, tt.target)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRetryItem(t *testing.T) {
	env := setupTestEnv(t)
	item := env.addItem(t, "photo1.jpg", database.KindPhoto)

	ctx := context.Background()
	if _, err := env.db.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.db.FailItem(ctx, item.ID, "analysis failed"); err != nil {
		t.Fatal(err)
	}

	rec := env.request(http.MethodPost, "/api/process/"+itoa(item.ID)+"/retry")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	got, err := env.db.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != database.StatusPending {
		t.Errorf("item status = %q, want %q", got.Status, database.StatusPending)
	}

	// A pending item has nothing to retry.
	rec = env.request(http.MethodPost, "/api/process/"+itoa(item.ID)+"/retry")
	if rec.Code != http.StatusConflict {
		t.Errorf("retry of pending item status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestRetryItemNotFound(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.request(http.MethodPost, "/api/process/9999/retry")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	item := env.addItem(t, "photo1.jpg", database.KindPhoto)

	ctx := context.Background()
	if _, err := env.db.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.db.CompleteItem(ctx, item.ID, "A photograph of a dog", []string{"dog", "animals"}, 0.9, nil); err != nil {
		t.Fatal(err)
	}

	rec := env.request(http.MethodGet, "/api/search?q=dog&mode=ai")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp search.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Resolution != "exact" {
		t.Errorf("resolution = %q, want exact", resp.Resolution)
	}
	if len(resp.Results) != 1 || resp.Results[0].Item.ID != item.ID {
		t.Errorf("results = %+v, want single hit for item %d", resp.Results, item.ID)
	}
}

func TestSearchInvalidMode(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.request(http.MethodGet, "/api/search?q=dog&mode=psychic")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestStatusEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	env.addItem(t, "photo1.jpg", database.KindPhoto)
	env.addItem(t, "photo2.jpg", database.KindPhoto)

	rec := env.request(http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var counts database.StatusCounts
	if err := json.Unmarshal(rec.Body.Bytes(), &counts); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if counts.Total != 2 || counts.Pending != 2 {
		t.Errorf("counts = %+v, want Total 2 Pending 2", counts)
	}
}

func TestHealthCheck(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.request(http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// Embedding models are absent in the test environment.
	if resp.Status != statusDegraded {
		t.Errorf("status = %q, want %q", resp.Status, statusDegraded)
	}
	if !resp.Ready {
		t.Error("expected ready")
	}
	if resp.MemoryPaused {
		t.Error("memoryPaused = true without a monitor")
	}
}

func TestHealthCheckReportsMemoryPause(t *testing.T) {
	env := setupTestEnv(t)

	// A one-byte limit pauses the monitor on its first check.
	mon := memory.NewMonitor(memory.Config{
		MemoryLimitBytes:  1,
		CriticalWaterMark: 0.85,
		ResumeWaterMark:   0.7,
		CheckInterval:     time.Millisecond,
	})
	mon.Start()
	t.Cleanup(mon.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for !mon.IsPaused() {
		if time.Now().After(deadline) {
			t.Fatal("monitor never paused")
		}
		time.Sleep(time.Millisecond)
	}

	h := New(env.db, env.pipeline, nil, nil, mon, &startup.Config{EmbeddingEnabled: true})
	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != statusDegraded {
		t.Errorf("status = %q, want %q", resp.Status, statusDegraded)
	}
	if !resp.MemoryPaused {
		t.Error("memoryPaused = false while the monitor is paused")
	}
}

func TestLivenessCheck(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.request(http.MethodGet, "/livez")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}

	r := httptest.NewRequest(http.MethodHead, "/livez", nil)
	headRec := httptest.NewRecorder()
	env.router.ServeHTTP(headRec, r)
	if headRec.Code != http.StatusOK {
		t.Errorf("HEAD status = %d", headRec.Code)
	}
	if headRec.Body.Len() != 0 {
		t.Error("HEAD response carried a body")
	}
}

func TestReadinessCheck(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.request(http.MethodGet, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestVersionEndpoint(t *testing.T) {
	env := setupTestEnv(t)

	rec := env.request(http.MethodGet, "/version")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var info startup.BuildInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if info.Version == "" {
		t.Error("version missing from response")
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
