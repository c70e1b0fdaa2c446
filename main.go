package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photo-album/internal/analysis"
	"photo-album/internal/database"
	"photo-album/internal/embedding"
	"photo-album/internal/handlers"
	"photo-album/internal/logging"
	"photo-album/internal/memory"
	"photo-album/internal/metrics"
	"photo-album/internal/middleware"
	"photo-album/internal/pipeline"
	"photo-album/internal/scheduler"
	"photo-album/internal/search"
	"photo-album/internal/startup"
	"photo-album/internal/storage"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Configure GOMEMLIMIT from container limits before anything allocates
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Pre-register metric label combinations so dashboards see zeroes
	// instead of absent series
	metrics.InitializeMetrics()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Embedding service: models load lazily on first use, so a missing
	// model directory degrades to the remaining analysis backends
	embedder := embedding.NewService(config.ModelDir)

	files := storage.NewDisk(config.MediaDir)

	// Analysis backend chain, ordered by preference
	analyzer := analysis.NewChain(
		analysis.NewLocal(embedder),
		analysis.NewAPI(config.HFAPIURL, config.HFToken, files),
		analysis.NewHeuristic(),
	)

	// Memory backpressure for the analysis workers
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Processing pipeline
	pipe := pipeline.New(pipeline.Config{
		Workers:   config.AnalysisWorkers,
		SoftLimit: config.TaskSoftLimit,
		HardLimit: config.TaskHardLimit,
		Memory:    monitor,
	}, db, analyzer, embedder, files)
	pipe.Start()
	startup.LogPipelineInit(config.AnalysisWorkers, config.TaskSoftLimit, config.TaskHardLimit)

	// Batch scheduler
	sched := scheduler.New(scheduler.Config{
		Enabled:             config.ScheduledProcessing,
		BatchSize:           config.BatchSize,
		AlbumAdminLimit:     config.AlbumAdminLimit,
		Hour:                config.ScheduleHour,
		Minute:              config.ScheduleMinute,
		AutoProcessOnUpload: config.AutoProcessOnUpload,
	}, db, pipe, files)
	schedCtx, stopScheduler := context.WithCancel(context.Background())
	go sched.Run(schedCtx)
	startup.LogSchedulerInit(config.ScheduledProcessing, config.ScheduleHour, config.ScheduleMinute, config.BatchSize)

	// Search engine
	engine := search.NewEngine(db, embedder)

	// Initialize handlers
	h := handlers.New(db, pipe, sched, engine, monitor, config)

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply metrics middleware
	metricsHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(router)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(metricsHandler)

	// Apply compression middleware
	compressionConfig := middleware.DefaultCompressionConfig()
	handler := middleware.Compression(compressionConfig)(loggedHandler)

	// Periodic item-status gauge collection
	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(db, time.Minute)
		collector.Start()
		go serveMetrics(h, config.MetricsPort)
	}

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, pipe, stopScheduler, collector, monitor, embedder)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/process/batch", h.ProcessBatch).Methods("POST")
	api.HandleFunc("/process/{id}", h.ProcessItem).Methods("POST")
	api.HandleFunc("/process/{id}/retry", h.RetryItem).Methods("POST")
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/status", h.Status).Methods("GET")

	return r
}

// serveMetrics exposes Prometheus metrics on a dedicated port so the
// scrape endpoint never shares the public listener.
func serveMetrics(h *handlers.Handlers, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h.MetricsHandler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logging.Error("Metrics server error: %v", err)
	}
}

func handleShutdown(srv *http.Server, pipe *pipeline.Pipeline, stopScheduler context.CancelFunc, collector *metrics.Collector, monitor *memory.Monitor, embedder *embedding.Service) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping scheduler")
	stopScheduler()
	startup.LogShutdownStepComplete("Scheduler stopped")

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	// Release any tasks waiting on memory pressure before draining
	monitor.Stop()

	startup.LogShutdownStep("Draining analysis pipeline")
	if err := pipe.Shutdown(ctx); err != nil {
		logging.Warn("Pipeline shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Pipeline drained")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Releasing embedding models")
	embedder.Close()
	startup.LogShutdownStepComplete("Embedding models released")

	startup.LogShutdownComplete()
}
