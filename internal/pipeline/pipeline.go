package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"photo-album/internal/analysis"
	"photo-album/internal/database"
	"photo-album/internal/logging"
	"photo-album/internal/memory"
	"photo-album/internal/metrics"
)

const queueSize = 1024

// Config tunes task execution. Zero values fall back to the defaults
// used in production.
type Config struct {
	Workers int

	// Retries is the number of additional analysis attempts after the
	// first failure, spaced RetryDelay apart.
	Retries    int
	RetryDelay time.Duration

	// SoftLimit bounds the useful work of a task; when it expires the
	// item is marked failed with a timeout message. HardLimit also
	// covers the bookkeeping around it and must exceed SoftLimit.
	SoftLimit time.Duration
	HardLimit time.Duration

	// Memory optionally delays tasks while heap usage is critical.
	Memory *memory.Monitor
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Minute
	}
	if c.SoftLimit <= 0 {
		c.SoftLimit = 9 * time.Minute
	}
	if c.HardLimit <= c.SoftLimit {
		c.HardLimit = c.SoftLimit + time.Minute
	}
	return c
}

// Store is the database surface a task needs.
type Store interface {
	GetItem(ctx context.Context, id int64) (*database.MediaItem, error)
	MarkProcessing(ctx context.Context, id int64) (bool, error)
	ResetToPending(ctx context.Context, id int64) (bool, error)
	CompleteItem(ctx context.Context, id int64, description string, tags []string, confidence float64, vec []float32) (bool, error)
	FailItem(ctx context.Context, id int64, errMsg string) (bool, error)
}

// Analyzer produces a description for an image file.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (*analysis.Result, error)
}

// Embedder computes image embeddings.
type Embedder interface {
	EmbedImage(ctx context.Context, path string) ([]float32, error)
}

// Files resolves and checks media paths.
type Files interface {
	Exists(path string) bool
	Abs(path string) string
}

// Pipeline runs analysis tasks on a fixed worker pool. Items enter via
// Enqueue, which claims them with a guarded status transition so each
// item is processed at most once no matter how many schedulers race.
type Pipeline struct {
	cfg      Config
	store    Store
	analyzer Analyzer
	embedder Embedder
	files    Files

	jobs chan int64
	wg   sync.WaitGroup

	stopOnce sync.Once
}

func New(cfg Config, store Store, analyzer Analyzer, embedder Embedder, files Files) *Pipeline {
	p := &Pipeline{
		cfg:      cfg.withDefaults(),
		store:    store,
		analyzer: analyzer,
		embedder: embedder,
		files:    files,
		jobs:     make(chan int64, queueSize),
	}
	return p
}

// Start launches the worker pool.
func (p *Pipeline) Start() {
	logging.Info("Starting analysis pipeline with %d workers", p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for id := range p.jobs {
				metrics.PipelineQueueDepth.Set(float64(len(p.jobs)))
				p.runTask(id)
			}
		}()
	}
}

// Shutdown stops accepting work and waits for in-flight tasks, up to
// the context deadline.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.jobs) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline shutdown: %w", ctx.Err())
	}
}

// Enqueue claims a pending item and hands it to the worker pool. It
// reports false without error when the item was not pending, which makes
// repeated enqueues of the same item harmless.
func (p *Pipeline) Enqueue(ctx context.Context, id int64) (bool, error) {
	claimed, err := p.store.MarkProcessing(ctx, id)
	if err != nil {
		return false, fmt.Errorf("claim item %d: %w", id, err)
	}
	if !claimed {
		logging.Debug("Item %d not pending, skipping enqueue", id)
		return false, nil
	}

	select {
	case p.jobs <- id:
		metrics.PipelineQueueDepth.Set(float64(len(p.jobs)))
		return true, nil
	case <-ctx.Done():
		// Undo the claim so the item is picked up by a later batch.
		if _, rerr := p.store.ResetToPending(context.Background(), id); rerr != nil {
			logging.Error("Failed to release claim on item %d: %v", id, rerr)
		}
		return false, ctx.Err()
	}
}

func (p *Pipeline) runTask(id int64) {
	metrics.PipelineTasksInFlight.Inc()
	defer metrics.PipelineTasksInFlight.Dec()

	// A stopped monitor releases all waiters, so tasks drain normally
	// during shutdown.
	if p.cfg.Memory != nil {
		p.cfg.Memory.WaitIfPaused()
	}

	start := time.Now()

	hardCtx, cancelHard := context.WithTimeout(context.Background(), p.cfg.HardLimit)
	defer cancelHard()
	softCtx, cancelSoft := context.WithTimeout(hardCtx, p.cfg.SoftLimit)
	defer cancelSoft()

	item, err := p.store.GetItem(hardCtx, id)
	if errors.Is(err, database.ErrNotFound) {
		// Deleted between claim and execution. Nothing to update.
		logging.Debug("Item %d vanished before processing", id)
		metrics.PipelineTasksTotal.WithLabelValues("unknown", "vanished").Inc()
		return
	}
	if err != nil {
		logging.Error("Failed to load item %d: %v", id, err)
		p.fail(hardCtx, id, "unknown", fmt.Sprintf("load item: %v", err))
		return
	}
	kind := string(item.Kind)
	defer func() {
		metrics.PipelineTaskDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	path := item.AnalysisPath()
	if path == "" || !p.files.Exists(path) {
		p.fail(hardCtx, id, kind, fmt.Sprintf("media file missing: %s", path))
		return
	}
	absPath := p.files.Abs(path)

	result, err := p.analyzeWithRetries(softCtx, absPath)
	if err != nil {
		if softCtx.Err() != nil {
			p.markFailed(hardCtx, id, fmt.Sprintf("analysis timed out after %s", p.cfg.SoftLimit))
			metrics.PipelineTasksTotal.WithLabelValues(kind, "timeout").Inc()
			return
		}
		p.fail(hardCtx, id, kind, fmt.Sprintf("analysis failed: %v", err))
		return
	}

	outcome := "completed"
	vec, err := p.embedder.EmbedImage(softCtx, absPath)
	if err != nil {
		// Analysis succeeded, so the item still completes. It just has
		// no vector and exact or text search must find it instead.
		logging.Warn("Embedding failed for item %d, completing without vector: %v", id, err)
		vec = nil
		outcome = "degraded"
	}

	applied, err := p.store.CompleteItem(hardCtx, id, result.Description, result.Tags, result.Confidence, vec)
	if err != nil {
		logging.Error("Failed to complete item %d: %v", id, err)
		metrics.PipelineTasksTotal.WithLabelValues(kind, "failed").Inc()
		return
	}
	if !applied {
		logging.Debug("Item %d left processing state underneath the task", id)
		metrics.PipelineTasksTotal.WithLabelValues(kind, "vanished").Inc()
		return
	}

	metrics.PipelineTasksTotal.WithLabelValues(kind, outcome).Inc()
	logging.Info("Processed %s %d via %s backend (%s) in %s",
		kind, id, result.Backend, outcome, time.Since(start).Round(time.Millisecond))
}

func (p *Pipeline) analyzeWithRetries(ctx context.Context, path string) (*analysis.Result, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.Retries; attempt++ {
		if attempt > 0 {
			metrics.PipelineTaskRetries.Inc()
			select {
			case <-time.After(p.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		result, err := p.analyzer.Analyze(ctx, path)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.Warn("Analysis attempt %d/%d failed for %s: %v",
			attempt+1, p.cfg.Retries+1, path, err)
	}
	return nil, lastErr
}

func (p *Pipeline) fail(ctx context.Context, id int64, kind, msg string) {
	p.markFailed(ctx, id, msg)
	metrics.PipelineTasksTotal.WithLabelValues(kind, "failed").Inc()
}

func (p *Pipeline) markFailed(ctx context.Context, id int64, msg string) {
	if _, err := p.store.FailItem(ctx, id, msg); err != nil {
		logging.Error("Failed to mark item %d failed: %v", id, err)
	}
}
