package scheduler

import (
	"context"
	"fmt"
	"time"

	"photo-album/internal/database"
	"photo-album/internal/logging"
	"photo-album/internal/metrics"
)

// Role describes who requested a manual batch. Album admins get their
// batch size clamped; site admins do not.
type Role int

const (
	RoleAlbumAdmin Role = iota
	RoleSiteAdmin
)

// videoDelay is how long after the photo batch the video batch starts,
// so the two do not compete for workers at the top of the hour.
const videoDelay = 30 * time.Minute

// orphanMargin is extra selection headroom beyond the batch limit, so a
// run whose oldest pending items are orphaned can still fill its batch.
const orphanMargin = 100

// Config tunes batch scheduling.
type Config struct {
	// Enabled gates the daily scheduled runs. Manual batches and
	// on-upload processing work regardless.
	Enabled bool

	// BatchSize caps how many items one scheduled run queues per kind.
	BatchSize int

	// AlbumAdminLimit caps manual batches requested by album admins.
	AlbumAdminLimit int

	// Hour and Minute set the daily photo batch time. Videos follow
	// videoDelay later.
	Hour   int
	Minute int

	// AutoProcessOnUpload queues items immediately after upload.
	AutoProcessOnUpload bool
}

// Store is the database surface the scheduler needs.
type Store interface {
	SelectPending(ctx context.Context, kind database.Kind, limit int) ([]database.MediaItem, error)
	PendingItems(ctx context.Context, scope database.Scope) ([]database.MediaItem, error)
	StatusCounts(ctx context.Context, scope database.Scope) (database.StatusCounts, error)
}

// Enqueuer hands claimed items to the processing pipeline.
type Enqueuer interface {
	Enqueue(ctx context.Context, id int64) (bool, error)
}

// Files checks whether media files still exist on disk.
type Files interface {
	Exists(path string) bool
}

// Scheduler selects pending media for analysis in batches. Selection is
// oldest upload first and skips orphans, items whose file is gone from
// disk, so a wedged file can never occupy batch capacity.
type Scheduler struct {
	cfg      Config
	store    Store
	pipeline Enqueuer
	files    Files
}

func New(cfg Config, store Store, pipeline Enqueuer, files Files) *Scheduler {
	return &Scheduler{cfg: cfg, store: store, pipeline: pipeline, files: files}
}

// BatchResult summarizes one batch run.
type BatchResult struct {
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
	Orphans int `json:"orphans"`
}

// Run executes the daily schedule until the context is cancelled. It is
// a no-op when scheduled processing is disabled.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		logging.Info("Scheduled AI processing disabled")
		return
	}
	logging.Info("Scheduled AI processing daily at %02d:%02d (videos %s later)",
		s.cfg.Hour, s.cfg.Minute, videoDelay)

	for {
		next := s.nextRun(time.Now())
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		s.runScheduled(ctx, database.KindPhoto)

		select {
		case <-ctx.Done():
			return
		case <-time.After(videoDelay):
		}

		s.runScheduled(ctx, database.KindVideo)
	}
}

func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(),
		s.cfg.Hour, s.cfg.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *Scheduler) runScheduled(ctx context.Context, kind database.Kind) {
	result, err := s.runBatch(ctx, kind, "scheduled", s.cfg.BatchSize)
	if err != nil {
		logging.Error("Scheduled %s batch failed: %v", kind, err)
		return
	}
	metrics.SchedulerLastRunTimestamp.SetToCurrentTime()
	logging.Info("Scheduled %s batch queued %d items (%d orphans skipped)",
		kind, result.Queued, result.Orphans)
}

// RunManualBatch queues a batch on demand. Album admins are clamped to
// the configured per-request limit; site admins get exactly what they
// ask for, defaulting to the scheduled batch size.
func (s *Scheduler) RunManualBatch(ctx context.Context, kind database.Kind, role Role, limit int) (BatchResult, error) {
	if limit <= 0 {
		limit = s.cfg.BatchSize
	}
	if role == RoleAlbumAdmin && limit > s.cfg.AlbumAdminLimit {
		logging.Debug("Clamping album admin batch from %d to %d", limit, s.cfg.AlbumAdminLimit)
		limit = s.cfg.AlbumAdminLimit
	}
	return s.runBatch(ctx, kind, "manual", limit)
}

// ProcessOnUpload queues a newly uploaded item when auto processing is
// on. It reports whether the item was queued.
func (s *Scheduler) ProcessOnUpload(ctx context.Context, item *database.MediaItem) (bool, error) {
	if !s.cfg.AutoProcessOnUpload {
		return false, nil
	}
	queued, err := s.pipeline.Enqueue(ctx, item.ID)
	if err != nil {
		return false, err
	}
	if queued {
		metrics.SchedulerRunsTotal.WithLabelValues(string(item.Kind), "upload").Inc()
		metrics.SchedulerItemsQueued.WithLabelValues(string(item.Kind)).Inc()
	}
	return queued, nil
}

func (s *Scheduler) runBatch(ctx context.Context, kind database.Kind, trigger string, limit int) (BatchResult, error) {
	metrics.SchedulerRunsTotal.WithLabelValues(string(kind), trigger).Inc()

	pending, err := s.store.SelectPending(ctx, kind, limit+orphanMargin)
	if err != nil {
		return BatchResult{}, fmt.Errorf("select pending %s items: %w", kind, err)
	}

	var result BatchResult
	for _, item := range pending {
		if result.Queued >= limit {
			break
		}
		if path := item.AnalysisPath(); path == "" || !s.files.Exists(path) {
			result.Orphans++
			metrics.SchedulerOrphansDetected.WithLabelValues(string(kind)).Inc()
			logging.Debug("Skipping orphaned %s %d: %s missing", kind, item.ID, item.AnalysisPath())
			continue
		}
		queued, err := s.pipeline.Enqueue(ctx, item.ID)
		if err != nil {
			return result, fmt.Errorf("enqueue item %d: %w", item.ID, err)
		}
		if !queued {
			// Claimed by a concurrent batch between select and enqueue.
			result.Skipped++
			continue
		}
		result.Queued++
		metrics.SchedulerItemsQueued.WithLabelValues(string(kind)).Inc()
	}
	return result, nil
}

// Status reports item counts by processing state within scope. Orphaned
// pending items are broken out separately so the pending count reflects
// work the next batch can actually do.
func (s *Scheduler) Status(ctx context.Context, scope database.Scope) (database.StatusCounts, error) {
	counts, err := s.store.StatusCounts(ctx, scope)
	if err != nil {
		return database.StatusCounts{}, err
	}

	pending, err := s.store.PendingItems(ctx, scope)
	if err != nil {
		return database.StatusCounts{}, err
	}
	for _, item := range pending {
		if path := item.AnalysisPath(); path == "" || !s.files.Exists(path) {
			counts.Orphaned++
		}
	}
	counts.Pending -= counts.Orphaned

	return counts, nil
}
