package handlers

import (
	"time"

	"photo-album/internal/database"
	"photo-album/internal/memory"
	"photo-album/internal/pipeline"
	"photo-album/internal/scheduler"
	"photo-album/internal/search"
	"photo-album/internal/startup"
)

type Handlers struct {
	db        *database.Database
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
	engine    *search.Engine
	memory    *memory.Monitor

	embeddingEnabled bool
	startedAt        time.Time
}

func New(db *database.Database, pipe *pipeline.Pipeline, sched *scheduler.Scheduler, engine *search.Engine, monitor *memory.Monitor, config *startup.Config) *Handlers {
	return &Handlers{
		db:               db,
		pipeline:         pipe,
		scheduler:        sched,
		engine:           engine,
		memory:           monitor,
		embeddingEnabled: config.EmbeddingEnabled,
		startedAt:        time.Now(),
	}
}
