package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"photo-album/internal/database"
)

type fakeStore struct {
	items []database.MediaItem

	lastSelectLimit int
}

// SelectPending returns pending items of the kind in insertion order,
// which stands in for oldest upload first.
func (s *fakeStore) SelectPending(_ context.Context, kind database.Kind, limit int) ([]database.MediaItem, error) {
	s.lastSelectLimit = limit
	var out []database.MediaItem
	for _, item := range s.items {
		if item.Status != database.StatusPending || item.Kind != kind {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) PendingItems(_ context.Context, scope database.Scope) ([]database.MediaItem, error) {
	var out []database.MediaItem
	for _, item := range s.items {
		if item.Status != database.StatusPending {
			continue
		}
		if scope.Kind != "" && item.Kind != scope.Kind {
			continue
		}
		if scope.AlbumID != 0 && item.AlbumID != scope.AlbumID {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *fakeStore) StatusCounts(ctx context.Context, scope database.Scope) (database.StatusCounts, error) {
	var counts database.StatusCounts
	for _, item := range s.items {
		if scope.Kind != "" && item.Kind != scope.Kind {
			continue
		}
		if scope.AlbumID != 0 && item.AlbumID != scope.AlbumID {
			continue
		}
		counts.Total++
		switch item.Status {
		case database.StatusPending:
			counts.Pending++
		case database.StatusProcessing:
			counts.Processing++
		case database.StatusCompleted:
			counts.Completed++
		case database.StatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

type fakeEnqueuer struct {
	queued []int64
	reject map[int64]bool
}

func (e *fakeEnqueuer) Enqueue(_ context.Context, id int64) (bool, error) {
	if e.reject[id] {
		return false, nil
	}
	e.queued = append(e.queued, id)
	return true, nil
}

type fakeFiles struct {
	missing map[string]bool
}

func (f *fakeFiles) Exists(path string) bool { return !f.missing[path] }

func pendingPhotos(n int) []database.MediaItem {
	items := make([]database.MediaItem, n)
	for i := range items {
		items[i] = database.MediaItem{
			ID:       int64(i + 1),
			Kind:     database.KindPhoto,
			FilePath: fmt.Sprintf("photos/%d.jpg", i+1),
			Status:   database.StatusPending,
		}
	}
	return items
}

func testConfig() Config {
	return Config{
		Enabled:         true,
		BatchSize:       500,
		AlbumAdminLimit: 50,
		Hour:            2,
		Minute:          0,
	}
}

func TestManualBatchRespectsLimit(t *testing.T) {
	store := &fakeStore{items: pendingPhotos(100)}
	enqueuer := &fakeEnqueuer{}
	s := New(testConfig(), store, enqueuer, &fakeFiles{})

	result, err := s.RunManualBatch(context.Background(), database.KindPhoto, RoleSiteAdmin, 10)
	if err != nil {
		t.Fatalf("RunManualBatch() error = %v", err)
	}
	if result.Queued != 10 {
		t.Errorf("Queued = %d, want 10", result.Queued)
	}
	if len(enqueuer.queued) != 10 {
		t.Errorf("enqueued %d items, want 10", len(enqueuer.queued))
	}
	// Oldest first means the lowest IDs in insertion order.
	if enqueuer.queued[0] != 1 || enqueuer.queued[9] != 10 {
		t.Errorf("queued IDs = %v, want 1..10", enqueuer.queued)
	}
}

func TestManualBatchRoleClamp(t *testing.T) {
	tests := []struct {
		name  string
		role  Role
		limit int
		want  int
	}{
		{"album admin clamped", RoleAlbumAdmin, 1000, 50},
		{"album admin under limit", RoleAlbumAdmin, 20, 20},
		{"site admin unclamped", RoleSiteAdmin, 1000, 100},
		{"site admin zero defaults to batch size", RoleSiteAdmin, 0, 100},
		{"album admin zero defaults then clamps", RoleAlbumAdmin, 0, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{items: pendingPhotos(100)}
			enqueuer := &fakeEnqueuer{}
			s := New(testConfig(), store, enqueuer, &fakeFiles{})

			result, err := s.RunManualBatch(context.Background(), database.KindPhoto, tt.role, tt.limit)
			if err != nil {
				t.Fatalf("RunManualBatch() error = %v", err)
			}
			if result.Queued != tt.want {
				t.Errorf("Queued = %d, want %d", result.Queued, tt.want)
			}
		})
	}
}

func TestBatchSkipsOrphans(t *testing.T) {
	store := &fakeStore{items: pendingPhotos(5)}
	files := &fakeFiles{missing: map[string]bool{
		"photos/1.jpg": true,
		"photos/3.jpg": true,
	}}
	enqueuer := &fakeEnqueuer{}
	s := New(testConfig(), store, enqueuer, files)

	result, err := s.RunManualBatch(context.Background(), database.KindPhoto, RoleSiteAdmin, 10)
	if err != nil {
		t.Fatalf("RunManualBatch() error = %v", err)
	}
	if result.Queued != 3 {
		t.Errorf("Queued = %d, want 3", result.Queued)
	}
	if result.Orphans != 2 {
		t.Errorf("Orphans = %d, want 2", result.Orphans)
	}
	for _, id := range enqueuer.queued {
		if id == 1 || id == 3 {
			t.Errorf("orphaned item %d was queued", id)
		}
	}
}

func TestBatchOrphansDoNotConsumeCapacity(t *testing.T) {
	store := &fakeStore{items: pendingPhotos(10)}
	// The two oldest items are orphaned; a batch of 3 must still queue
	// three live items.
	files := &fakeFiles{missing: map[string]bool{
		"photos/1.jpg": true,
		"photos/2.jpg": true,
	}}
	enqueuer := &fakeEnqueuer{}
	s := New(testConfig(), store, enqueuer, files)

	result, err := s.RunManualBatch(context.Background(), database.KindPhoto, RoleSiteAdmin, 3)
	if err != nil {
		t.Fatalf("RunManualBatch() error = %v", err)
	}
	if result.Queued != 3 {
		t.Errorf("Queued = %d, want 3", result.Queued)
	}
	if got := enqueuer.queued; got[0] != 3 || got[1] != 4 || got[2] != 5 {
		t.Errorf("queued IDs = %v, want [3 4 5]", got)
	}
}

func TestBatchSelectionBounded(t *testing.T) {
	store := &fakeStore{items: pendingPhotos(500)}
	enqueuer := &fakeEnqueuer{}
	s := New(testConfig(), store, enqueuer, &fakeFiles{})

	result, err := s.RunManualBatch(context.Background(), database.KindPhoto, RoleSiteAdmin, 10)
	if err != nil {
		t.Fatalf("RunManualBatch() error = %v", err)
	}
	if result.Queued != 10 {
		t.Errorf("Queued = %d, want 10", result.Queued)
	}
	// Selection asks the database for the limit plus orphan headroom
	// rather than loading every pending row.
	if want := 10 + orphanMargin; store.lastSelectLimit != want {
		t.Errorf("selection limit = %d, want %d", store.lastSelectLimit, want)
	}
}

func TestBatchCountsConcurrentClaims(t *testing.T) {
	store := &fakeStore{items: pendingPhotos(5)}
	enqueuer := &fakeEnqueuer{reject: map[int64]bool{2: true}}
	s := New(testConfig(), store, enqueuer, &fakeFiles{})

	result, err := s.RunManualBatch(context.Background(), database.KindPhoto, RoleSiteAdmin, 10)
	if err != nil {
		t.Fatalf("RunManualBatch() error = %v", err)
	}
	if result.Queued != 4 {
		t.Errorf("Queued = %d, want 4", result.Queued)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
}

func TestProcessOnUpload(t *testing.T) {
	item := &database.MediaItem{ID: 7, Kind: database.KindPhoto, FilePath: "photos/7.jpg", Status: database.StatusPending}

	t.Run("disabled", func(t *testing.T) {
		enqueuer := &fakeEnqueuer{}
		cfg := testConfig()
		cfg.AutoProcessOnUpload = false
		s := New(cfg, &fakeStore{}, enqueuer, &fakeFiles{})

		queued, err := s.ProcessOnUpload(context.Background(), item)
		if err != nil {
			t.Fatalf("ProcessOnUpload() error = %v", err)
		}
		if queued || len(enqueuer.queued) != 0 {
			t.Errorf("ProcessOnUpload() queued while disabled")
		}
	})

	t.Run("enabled", func(t *testing.T) {
		enqueuer := &fakeEnqueuer{}
		cfg := testConfig()
		cfg.AutoProcessOnUpload = true
		s := New(cfg, &fakeStore{}, enqueuer, &fakeFiles{})

		queued, err := s.ProcessOnUpload(context.Background(), item)
		if err != nil {
			t.Fatalf("ProcessOnUpload() error = %v", err)
		}
		if !queued {
			t.Error("ProcessOnUpload() = false, want true")
		}
		if len(enqueuer.queued) != 1 || enqueuer.queued[0] != 7 {
			t.Errorf("queued = %v, want [7]", enqueuer.queued)
		}
	})
}

func TestStatusExcludesOrphansFromPending(t *testing.T) {
	items := pendingPhotos(4)
	items = append(items, database.MediaItem{
		ID: 5, Kind: database.KindPhoto, FilePath: "photos/5.jpg", Status: database.StatusCompleted,
	})
	store := &fakeStore{items: items}
	files := &fakeFiles{missing: map[string]bool{"photos/2.jpg": true}}
	s := New(testConfig(), store, &fakeEnqueuer{}, files)

	counts, err := s.Status(context.Background(), database.Scope{Kind: database.KindPhoto})
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	want := database.StatusCounts{Total: 5, Pending: 3, Completed: 1, Orphaned: 1}
	if counts != want {
		t.Errorf("Status() = %+v, want %+v", counts, want)
	}
}

func TestNextRun(t *testing.T) {
	s := New(testConfig(), &fakeStore{}, &fakeEnqueuer{}, &fakeFiles{})

	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	next := s.nextRun(now)
	if want := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("nextRun() = %v, want %v", next, want)
	}

	// Past today's slot rolls to tomorrow.
	now = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	next = s.nextRun(now)
	if want := time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("nextRun() = %v, want %v", next, want)
	}
}

func TestRunDisabledReturnsImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	s := New(cfg, &fakeStore{}, &fakeEnqueuer{}, &fakeFiles{})

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return with scheduling disabled")
	}
}
